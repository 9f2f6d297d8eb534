package excel

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/example/nihongo/internal/progress"
	"github.com/example/nihongo/pkg/models"
)

// Sheet names used by the progress export
const (
	SummarySheet  = "Summary"
	KanjiSheet    = "Kanji"
	KanaSheet     = "Kana"
	QuizzesSheet  = "Quizzes"
	ActivitySheet = "Activity"
)

const dateLayout = "2006-01-02 15:04"

// ExportProgress writes snap as an xlsx workbook to w. Dates are shown in loc.
func ExportProgress(w io.Writer, snap models.ProgressSnapshot, loc *time.Location) error {
	f, err := buildWorkbook(snap, loc)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}
	return nil
}

// SaveProgress writes snap as an xlsx workbook at path
func SaveProgress(path string, snap models.ProgressSnapshot, loc *time.Location) error {
	f, err := buildWorkbook(snap, loc)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "failed to save workbook to %s", path)
	}
	return nil
}

func buildWorkbook(snap models.ProgressSnapshot, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.Local
	}

	f := excelize.NewFile()
	// A new workbook starts with Sheet1
	f.SetSheetName("Sheet1", SummarySheet)
	for _, name := range []string{KanjiSheet, KanaSheet, QuizzesSheet, ActivitySheet} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "failed to create sheet %s", name)
		}
	}

	writers := []func(*excelize.File, models.ProgressSnapshot, *time.Location) error{
		writeSummary,
		writeKanji,
		writeKana,
		writeQuizzes,
		writeActivity,
	}
	for _, write := range writers {
		if err := write(f, snap, loc); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "failed to write %s row %d", sheet, i+1)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, snap models.ProgressSnapshot, _ *time.Location) error {
	r := progress.NewReport(snap)
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Learned kanji", r.LearnedKanji},
		{"Hiragana learned", r.Hiragana.Learned},
		{"Hiragana %", r.Hiragana.Percentage},
		{"Katakana learned", r.Katakana.Learned},
		{"Katakana %", r.Katakana.Percentage},
		{"Quizzes taken", r.Quizzes.TotalQuizzes},
		{"Questions answered", r.Quizzes.TotalQuestions},
		{"Average score %", r.Quizzes.AverageScore},
		{"Best score %", r.Quizzes.BestScore},
	}
	for _, level := range models.Levels {
		rows = append(rows, []interface{}{"Quizzes " + string(level), r.ByLevel[level].TotalQuizzes})
	}
	return writeRows(f, SummarySheet, rows)
}

func writeKanji(f *excelize.File, snap models.ProgressSnapshot, _ *time.Location) error {
	rows := [][]interface{}{{"Kanji"}}
	for _, k := range snap.LearnedKanji.Sorted() {
		rows = append(rows, []interface{}{k})
	}
	return writeRows(f, KanjiSheet, rows)
}

func writeKana(f *excelize.File, snap models.ProgressSnapshot, _ *time.Location) error {
	rows := [][]interface{}{{"Hiragana", "Learned", "Katakana", "Learned"}}
	for i := 0; i < models.KanaAlphabetSize; i++ {
		h, k := models.HiraganaAlphabet[i], models.KatakanaAlphabet[i]
		rows = append(rows, []interface{}{
			h, yesNo(snap.LearnedHiragana.Has(h)),
			k, yesNo(snap.LearnedKatakana.Has(k)),
		})
	}
	return writeRows(f, KanaSheet, rows)
}

func writeQuizzes(f *excelize.File, snap models.ProgressSnapshot, loc *time.Location) error {
	rows := [][]interface{}{{"ID", "Date", "Level", "Score", "Questions"}}
	for _, q := range snap.QuizHistory {
		rows = append(rows, []interface{}{
			q.ID, q.Date.In(loc).Format(dateLayout), string(q.Level), q.Score, q.TotalQuestions,
		})
	}
	return writeRows(f, QuizzesSheet, rows)
}

func writeActivity(f *excelize.File, snap models.ProgressSnapshot, loc *time.Location) error {
	rows := [][]interface{}{{"Date", "Type", "Item"}}
	for _, ev := range snap.StudySessions {
		rows = append(rows, []interface{}{ev.Date.In(loc).Format(dateLayout), string(ev.Type), ev.Item})
	}
	return writeRows(f, ActivitySheet, rows)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
