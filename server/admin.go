package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats 服务端计数快照
type Stats struct {
	Variant     string `json:"variant"`
	Connections int    `json:"connections"`
	Received    int64  `json:"received"`
	Rejected    int64  `json:"rejected"`
}

type statsSource interface {
	Stats() Stats
}

func adminRouter(src statsSource, started time.Time) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(started).String(),
			"stats":  src.Stats(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// serveAdmin 运行管理端口直到ctx结束
func serveAdmin(ctx context.Context, addr string, src statsSource) {
	RegisterMetrics()
	srv := &http.Server{
		Addr:              addr,
		Handler:           adminRouter(src, time.Now()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Infof("[%-9s] admin endpoint on %s", "Admin", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("[%-9s] admin endpoint exits with error: %v", "Admin", err)
	}
}
