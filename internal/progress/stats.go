package progress

import (
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/example/nihongo/pkg/models"
)

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(100*float64(part)/float64(total) + 0.5))
}

func listProgress(learned models.CharSet, list []string) models.ProgressSummary {
	n := lo.CountBy(list, learned.Has)
	return models.ProgressSummary{
		Learned:    n,
		Total:      len(list),
		Percentage: percent(n, len(list)),
	}
}

// kanaProgress counts every learned kana of a syllabary, including ones
// outside the basic alphabet, capped at the alphabet size.
func kanaProgress(learned models.CharSet) models.ProgressSummary {
	n := min(learned.Len(), models.KanaAlphabetSize)
	return models.ProgressSummary{
		Learned:    n,
		Total:      models.KanaAlphabetSize,
		Percentage: percent(n, models.KanaAlphabetSize),
	}
}

func quizStats(history []models.QuizResult, level models.Level) models.QuizStats {
	quizzes := lo.Filter(history, func(r models.QuizResult, _ int) bool {
		return level == "" || r.Level == level
	})
	if len(quizzes) == 0 {
		return models.QuizStats{}
	}

	score := lo.SumBy(quizzes, func(r models.QuizResult) int { return r.Score })
	questions := lo.SumBy(quizzes, func(r models.QuizResult) int { return r.TotalQuestions })
	best := lo.Max(lo.Map(quizzes, func(r models.QuizResult, _ int) int {
		return percent(r.Score, r.TotalQuestions)
	}))

	return models.QuizStats{
		TotalQuizzes:   len(quizzes),
		AverageScore:   percent(score, questions),
		BestScore:      best,
		TotalQuestions: questions,
	}
}

// midnight returns the start of t's day in loc
func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func studyStreak(events []models.StudyEvent, now time.Time, loc *time.Location) int {
	days := make(map[time.Time]struct{}, len(events))
	for _, ev := range events {
		days[midnight(ev.Date, loc)] = struct{}{}
	}

	streak := 0
	for day := midnight(now, loc); ; day = day.AddDate(0, 0, -1) {
		if _, ok := days[day]; !ok {
			return streak
		}
		streak++
	}
}

func todayStats(events []models.StudyEvent, now time.Time, loc *time.Location) models.TodayStats {
	today := midnight(now, loc)
	var stats models.TodayStats
	for _, ev := range events {
		if !midnight(ev.Date, loc).Equal(today) {
			continue
		}
		stats.Total++
		switch ev.Type {
		case models.StudyKanji:
			stats.Kanji++
		case models.StudyHiragana:
			stats.Hiragana++
		case models.StudyKatakana:
			stats.Katakana++
		}
	}
	return stats
}

// Report is a point-in-time summary of a snapshot
type Report struct {
	LearnedKanji int                               `json:"learnedKanji"`
	Hiragana     models.ProgressSummary            `json:"hiragana"`
	Katakana     models.ProgressSummary            `json:"katakana"`
	Quizzes      models.QuizStats                  `json:"quizzes"`
	ByLevel      map[models.Level]models.QuizStats `json:"byLevel"`
}

// NewReport summarises snap without an engine
func NewReport(snap models.ProgressSnapshot) Report {
	r := Report{
		LearnedKanji: snap.LearnedKanji.Len(),
		Hiragana:     kanaProgress(snap.LearnedHiragana),
		Katakana:     kanaProgress(snap.LearnedKatakana),
		Quizzes:      quizStats(snap.QuizHistory, ""),
		ByLevel:      make(map[models.Level]models.QuizStats, len(models.Levels)),
	}
	for _, level := range models.Levels {
		r.ByLevel[level] = quizStats(snap.QuizHistory, level)
	}
	return r
}
