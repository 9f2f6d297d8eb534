// Package excel imports kanji decks and exports learning progress as spreadsheets.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/example/nihongo/pkg/models"
)

// KanjiStore receives imported kanji
type KanjiStore interface {
	UpsertMany(ctx context.Context, entries []models.Kanji) (created, updated int, err error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath              string // Path to the Excel or CSV file
	CharacterColumn       string
	MeaningColumn         string
	OnyomiKatakanaColumn  string
	OnyomiRomajiColumn    string
	KunyomiHiraganaColumn string
	KunyomiRomajiColumn   string
	StrokesColumn         string
	GradeColumn           string
	SheetName             string // Empty means the first sheet
	StartRow              int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		CharacterColumn:       "A",
		MeaningColumn:         "B",
		OnyomiKatakanaColumn:  "C",
		OnyomiRomajiColumn:    "D",
		KunyomiHiraganaColumn: "E",
		KunyomiRomajiColumn:   "F",
		StrokesColumn:         "G",
		GradeColumn:           "H",
		StartRow:              2, // skip header
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// ImportKanji imports a kanji deck from an Excel or CSV file
func ImportKanji(ctx context.Context, store KanjiStore, config ImportConfig) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, err
	}

	columns, err := config.columnIndexes()
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	entries := make([]models.Kanji, 0, len(rows))
	seen := make(map[string]bool)

	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow {
			continue
		}
		if isBlank(row) {
			continue
		}
		result.TotalProcessed++

		k, err := parseRow(row, columns)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		if seen[k.Character] {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: duplicate kanji %s", rowNum, k.Character))
			continue
		}
		seen[k.Character] = true
		entries = append(entries, k)
	}

	if len(entries) == 0 {
		return result, nil
	}

	result.Created, result.Updated, err = store.UpsertMany(ctx, entries)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store kanji")
	}
	return result, nil
}

type columnIndexes struct {
	character, meaning, onKatakana, onRomaji, kunHiragana, kunRomaji, strokes, grade int
}

func (c ImportConfig) columnIndexes() (columnIndexes, error) {
	var idx columnIndexes
	targets := []struct {
		name string
		dst  *int
	}{
		{c.CharacterColumn, &idx.character},
		{c.MeaningColumn, &idx.meaning},
		{c.OnyomiKatakanaColumn, &idx.onKatakana},
		{c.OnyomiRomajiColumn, &idx.onRomaji},
		{c.KunyomiHiraganaColumn, &idx.kunHiragana},
		{c.KunyomiRomajiColumn, &idx.kunRomaji},
		{c.StrokesColumn, &idx.strokes},
		{c.GradeColumn, &idx.grade},
	}
	for _, t := range targets {
		if t.name == "" {
			*t.dst = -1
			continue
		}
		n, err := excelize.ColumnNameToNumber(t.name)
		if err != nil {
			return idx, errors.Wrapf(err, "invalid column %q", t.name)
		}
		*t.dst = n - 1
	}
	if idx.character < 0 {
		return idx, errors.New("character column is required")
	}
	return idx, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseRow(row []string, c columnIndexes) (models.Kanji, error) {
	k := models.Kanji{
		Character:       cell(row, c.character),
		Meaning:         cell(row, c.meaning),
		OnyomiKatakana:  cell(row, c.onKatakana),
		OnyomiRomaji:    cell(row, c.onRomaji),
		KunyomiHiragana: cell(row, c.kunHiragana),
		KunyomiRomaji:   cell(row, c.kunRomaji),
	}
	if k.Character == "" {
		return k, errors.New("missing kanji")
	}
	if n := len([]rune(k.Character)); n != 1 {
		return k, errors.Errorf("%q is not a single character", k.Character)
	}

	var err error
	if k.Strokes, err = optionalInt(cell(row, c.strokes)); err != nil {
		return k, errors.Wrap(err, "invalid strokes")
	}
	if k.Grade, err = optionalInt(cell(row, c.grade)); err != nil {
		return k, errors.Wrap(err, "invalid grade")
	}
	return k, nil
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.Errorf("%q is not a non-negative number", s)
	}
	return n, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows")
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "error reading CSV")
		}
		rows = append(rows, row)
	}
	return rows, nil
}
