package server

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aaronwong1989/gomodbus/codec"
)

var (
	registerOnce sync.Once

	aduTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mbgw",
			Subsystem: "framing",
			Name:      "adus_total",
			Help:      "Request ADUs framed from client connections.",
		},
		[]string{"variant"},
	)
	framingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mbgw",
			Subsystem: "framing",
			Name:      "errors_total",
			Help:      "Connections closed on a framing or header error.",
		},
		[]string{"variant", "kind"},
	)
	busyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mbgw",
			Subsystem: "server",
			Name:      "busy_total",
			Help:      "Requests answered with server device busy.",
		},
		[]string{"variant"},
	)
	connections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mbgw",
			Subsystem: "server",
			Name:      "connections",
			Help:      "Open client connections.",
		},
		[]string{"variant"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(aduTotal, framingErrors, busyTotal, connections)
	})
}

// errorKind 错误分类标签
func errorKind(err error) string {
	switch {
	case errors.Is(err, codec.ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, codec.ErrInvalidLength):
		return "length"
	case errors.Is(err, codec.ErrAduTooLong):
		return "too_long"
	case errors.Is(err, errBadHeader):
		return "header"
	default:
		return "other"
	}
}
