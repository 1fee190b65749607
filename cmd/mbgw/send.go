package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/aaronwong1989/gomodbus/client"
	"github.com/aaronwong1989/gomodbus/comm/yml_config"
)

func newSendCmd() *cobra.Command {
	var (
		confPath string
		addr     string
		unitId   uint8
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send <pdu-hex>",
		Short: "Send one request pdu and print the response pdu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pdu, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("decode pdu: %w", err)
			}
			conf, err := yml_config.Load(confPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			cli, err := client.Dial(ctx, addr, client.WithMaxOutstanding(conf.MaxOutstanding))
			if err != nil {
				return err
			}
			defer func() { _ = cli.Close() }()
			resp, err := cli.Send(ctx, unitId, pdu)
			if err != nil {
				return err
			}
			pterm.Success.Printfln("%x", resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&confPath, "config", "", "config file (.yaml or .toml)")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:502", "server address")
	cmd.Flags().Uint8Var(&unitId, "unit", 1, "unit id")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
	return cmd
}
