package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/aaronwong1989/gomodbus/capture"
)

func newInspectCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect <pcap>",
		Short: "Frame the Modbus/TCP ADUs found in a pcap file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := capture.ExtractFile(args[0])
			if err != nil {
				return err
			}
			return pterm.DefaultTable.WithHasHeader().WithData(frameTable(res, limit)).Render()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many frames (0 = all)")
	return cmd
}

func frameTable(res capture.Result, limit int) pterm.TableData {
	data := pterm.TableData{{"Time", "Src", "Dst", "Dir", "Tid", "Unit", "FC", "PDU"}}
	for i, f := range res.Frames {
		if limit > 0 && i >= limit {
			break
		}
		dir := "rsp"
		if f.IsRequest {
			dir = "req"
		}
		fc := fmt.Sprintf("0x%02x", f.Function())
		if f.IsException() {
			fc += " exc"
		}
		data = append(data, []string{
			f.Timestamp.Format("15:04:05.000"),
			f.Src,
			f.Dst,
			dir,
			fmt.Sprintf("%d", f.Header.TransactionId),
			fmt.Sprintf("%d", f.Header.UnitId),
			fc,
			fmt.Sprintf("%x", f.Pdu),
		})
	}
	pterm.Info.Printfln("%d frames, %d bytes skipped, %d bytes pending", len(res.Frames), res.Skipped, res.Pending)
	return data
}
