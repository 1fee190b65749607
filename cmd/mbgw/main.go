package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aaronwong1989/gomodbus/comm/logging"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mbgw",
		Short:         "Modbus gateway",
		Long:          `mbgw frames Modbus/TCP and RTU-over-TCP traffic: a gnet server, a test client and a pcap inspector.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newSendCmd())
	return rootCmd
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		logging.Errorf("mbgw exits with error: %v", err)
	}
	logging.Cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
