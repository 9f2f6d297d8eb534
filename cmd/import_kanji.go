package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/example/nihongo/internal/database"
	"github.com/example/nihongo/internal/excel"
)

var importKanjiCmd = &cobra.Command{
	Use:   "import-kanji",
	Short: "Load a kanji deck (xlsx or csv) into the device catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		importConfig := excel.DefaultImportConfig()
		importConfig.FilePath, _ = cmd.Flags().GetString("file")
		importConfig.SheetName, _ = cmd.Flags().GetString("sheet")
		importConfig.StartRow, _ = cmd.Flags().GetInt("start-row")
		if importConfig.FilePath == "" {
			return errors.New("--file is required")
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		db, err := a.openDevice()
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := excel.ImportKanji(cmd.Context(), database.NewKanjiRepository(db), importConfig)
		if err != nil {
			return err
		}

		cmd.Printf("Processed %d rows: %d created, %d updated, %d skipped\n",
			result.TotalProcessed, result.Created, result.Updated, result.Skipped)
		for _, msg := range result.Errors {
			a.logger.Warn(msg)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importKanjiCmd)

	importKanjiCmd.Flags().StringP("file", "f", "", "xlsx or csv file")
	importKanjiCmd.Flags().String("sheet", "", "sheet name (default first sheet)")
	importKanjiCmd.Flags().Int("start-row", 2, "first data row, 1-based")
}
