package excel

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/nihongo/pkg/models"
)

type fakeKanjiStore struct {
	got []models.Kanji
	err error
}

func (s *fakeKanjiStore) UpsertMany(_ context.Context, entries []models.Kanji) (int, int, error) {
	if s.err != nil {
		return 0, 0, s.err
	}
	s.got = append(s.got, entries...)
	return len(entries), 0, nil
}

func TestImportKanjiFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.csv")
	data := "kanji,meaning,on,on_romaji,kun,kun_romaji,strokes,grade\n" +
		"水,water,スイ,sui,みず,mizu,4,1\n" +
		"\n" +
		"火,fire,カ,ka,ひ,hi,4,1\n" +
		"水,water again,,,,,,\n" +
		"ab,bad,,,,,,\n" +
		"木,tree,モク,moku,き,ki,four,1\n" +
		",no kanji\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	store := &fakeKanjiStore{}

	res, err := ImportKanji(context.Background(), store, cfg)
	require.NoError(t, err)

	assert.Equal(t, 6, res.TotalProcessed)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 4, res.Skipped)
	assert.Len(t, res.Errors, 4)
	require.Len(t, store.got, 2)
	assert.Equal(t, models.Kanji{
		Character: "水", Meaning: "water",
		OnyomiKatakana: "スイ", OnyomiRomaji: "sui",
		KunyomiHiragana: "みず", KunyomiRomaji: "mizu",
		Strokes: 4, Grade: 1,
	}, store.got[0])
	assert.Equal(t, "火", store.got[1].Character)
}

func TestImportKanjiFromExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"kanji", "meaning"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"山", "mountain", "サン", "san", "やま", "yama", 3, 1}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	store := &fakeKanjiStore{}

	res, err := ImportKanji(context.Background(), store, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	require.Len(t, store.got, 1)
	assert.Equal(t, "山", store.got[0].Character)
	assert.Equal(t, 3, store.got[0].Strokes)
}

func TestImportKanjiStoreFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.csv")
	require.NoError(t, os.WriteFile(path, []byte("h\n水,water\n"), 0o644))

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	_, err := ImportKanji(context.Background(), &fakeKanjiStore{err: errors.New("disk full")}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestImportKanjiBadColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.csv")
	require.NoError(t, os.WriteFile(path, []byte("h\n"), 0o644))

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	cfg.CharacterColumn = "1"
	_, err := ImportKanji(context.Background(), &fakeKanjiStore{}, cfg)
	assert.Error(t, err)
}

func TestExportProgress(t *testing.T) {
	date := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	snap := models.NewProgressSnapshot()
	snap.LearnedKanji.Add("水")
	snap.LearnedKanji.Add("火")
	snap.LearnedHiragana.Add("あ")
	snap.QuizHistory = []models.QuizResult{{ID: 1, Level: models.LevelN5, Score: 3, TotalQuestions: 4, Date: date}}
	snap.StudySessions = []models.StudyEvent{{ID: "e1", Type: models.StudyKanji, Item: "水", Date: date}}

	var buf bytes.Buffer
	require.NoError(t, ExportProgress(&buf, snap, time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, KanjiSheet, KanaSheet, QuizzesSheet, ActivitySheet}, f.GetSheetList())

	kanji, err := f.GetRows(KanjiSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Kanji"}, {"水"}, {"火"}}, kanji)

	kana, err := f.GetRows(KanaSheet)
	require.NoError(t, err)
	require.Len(t, kana, models.KanaAlphabetSize+1)
	assert.Equal(t, []string{"あ", "yes", "ア", "no"}, kana[1])

	quizzes, err := f.GetRows(QuizzesSheet)
	require.NoError(t, err)
	require.Len(t, quizzes, 2)
	assert.Equal(t, "2024-03-10 06:00", quizzes[1][1])
	assert.Equal(t, "N5", quizzes[1][2])

	activity, err := f.GetRows(ActivitySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-10 06:00", "kanji", "水"}, activity[1])
}

func TestSaveProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.xlsx")
	require.NoError(t, SaveProgress(path, models.NewProgressSnapshot(), nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Learned kanji", "0"}, rows[1])
}
