package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/nihongo/internal/database"
	"github.com/example/nihongo/internal/progress"
	"github.com/example/nihongo/pkg/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a device's learning progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		device, _ := cmd.Flags().GetString("device")
		asJSON, _ := cmd.Flags().GetBool("json")

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

		summary := struct {
			Device string            `json:"device"`
			Report progress.Report   `json:"report"`
			Streak int               `json:"streak"`
			Today  models.TodayStats `json:"today"`
		}{device, engine.Report(), engine.StudyStreak(), engine.TodayStats()}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		r := summary.Report
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Device:          %s\n", device)
		fmt.Fprintf(out, "Learned kanji:   %d\n", r.LearnedKanji)
		fmt.Fprintf(out, "Hiragana:        %d/%d (%d%%)\n", r.Hiragana.Learned, r.Hiragana.Total, r.Hiragana.Percentage)
		fmt.Fprintf(out, "Katakana:        %d/%d (%d%%)\n", r.Katakana.Learned, r.Katakana.Total, r.Katakana.Percentage)
		fmt.Fprintf(out, "Quizzes:         %d (average %d%%, best %d%%)\n", r.Quizzes.TotalQuizzes, r.Quizzes.AverageScore, r.Quizzes.BestScore)
		for _, level := range models.Levels {
			s := r.ByLevel[level]
			fmt.Fprintf(out, "  %-6s         %d (average %d%%)\n", level, s.TotalQuizzes, s.AverageScore)
		}
		fmt.Fprintf(out, "Streak:          %d day(s)\n", summary.Streak)
		fmt.Fprintf(out, "Studied today:   %d\n", summary.Today.Total)
		return nil
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices with stored progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		db, err := a.openDevice()
		if err != nil {
			return err
		}
		defer db.Close()

		devices, err := database.ListDevices(db)
		if err != nil {
			return err
		}
		for _, d := range devices {
			cmd.Println(d)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(devicesCmd)

	statsCmd.Flags().String("device", "", "device ID, e.g. tg-<chat id>")
	statsCmd.Flags().Bool("json", false, "print JSON")
}
