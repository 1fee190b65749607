package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aaronwong1989/gomodbus/comm"
	"github.com/aaronwong1989/gomodbus/comm/logging"
	"github.com/aaronwong1989/gomodbus/comm/yml_config"
	"github.com/aaronwong1989/gomodbus/server"
)

func newServeCmd() *cobra.Command {
	var (
		confPath string
		pidFile  string
		echo     bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := yml_config.Load(confPath)
			if err != nil {
				return err
			}
			if pidFile != "" {
				pid := comm.SavePid(pidFile)
				logging.Infof("pid %s saved to %s", pid, pidFile)
			}
			var handler server.Handler = server.Unsupported
			if echo {
				handler = server.HandlerFunc(func(_ uint8, pdu []byte) []byte { return pdu })
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, conf, handler)
		},
	}
	cmd.Flags().StringVar(&confPath, "config", "", "config file (.yaml or .toml), defaults to $"+yml_config.EnvConfPath)
	cmd.Flags().StringVar(&pidFile, "pid", "", "write the process id to this file")
	cmd.Flags().BoolVar(&echo, "echo", false, "answer every request with its own pdu")
	return cmd
}
