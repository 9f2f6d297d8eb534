package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/nihongo/internal/excel"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a device's progress as an Excel workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		device, _ := cmd.Flags().GetString("device")
		out, _ := cmd.Flags().GetString("out")

		a, err := loadApp()
		if err != nil {
			return err
		}
		db, err := a.openDevice()
		if err != nil {
			return err
		}
		defer db.Close()

		engine, err := a.openDeviceProgress(db, device)
		if err != nil {
			return err
		}
		defer engine.Close(context.Background())

		if out == "" {
			out = fmt.Sprintf("progress-%s-%s.xlsx", device, time.Now().Format("20060102"))
		}
		if err := excel.SaveProgress(out, engine.Snapshot(), time.Local); err != nil {
			return err
		}
		cmd.Printf("Exported %s to %s\n", device, out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("device", "", "device ID, e.g. tg-<chat id>")
	exportCmd.Flags().StringP("out", "o", "", "output file (default progress-<device>-<date>.xlsx)")
}
