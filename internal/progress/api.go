package progress

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/nihongo/pkg/models"
)

var (
	// ErrEmptyCharacter is returned when a blank character is marked
	ErrEmptyCharacter = errors.New("character is empty")
	// ErrInvalidKana is returned for an unknown syllabary or a character outside it
	ErrInvalidKana = errors.New("invalid kana")
	// ErrInvalidQuizResult is returned for an unknown level or an impossible score
	ErrInvalidQuizResult = errors.New("invalid quiz result")
)

// DefaultActivityLimit is used by RecentActivity when no positive limit is given
const DefaultActivityLimit = 10

// MarkLearned adds a kanji to the learned set. Marking an already learned
// kanji changes nothing.
func (e *Engine) MarkLearned(kanji string) error {
	kanji = strings.TrimSpace(kanji)
	if kanji == "" {
		return ErrEmptyCharacter
	}
	return e.mutate(func(p *models.ProgressSnapshot) (bool, error) {
		if !p.LearnedKanji.Add(kanji) {
			return false, nil
		}
		e.recordStudy(p, models.StudyKanji, kanji)
		return true, nil
	})
}

// UnmarkLearned removes a kanji from the learned set
func (e *Engine) UnmarkLearned(kanji string) error {
	kanji = strings.TrimSpace(kanji)
	if kanji == "" {
		return ErrEmptyCharacter
	}
	return e.mutate(func(p *models.ProgressSnapshot) (bool, error) {
		return p.LearnedKanji.Remove(kanji), nil
	})
}

// MarkKanaLearned adds a basic kana to the learned set of its syllabary
func (e *Engine) MarkKanaLearned(char string, kind models.KanaKind) error {
	char = strings.TrimSpace(char)
	if !kind.Valid() {
		return errors.Wrapf(ErrInvalidKana, "unknown syllabary %q", kind)
	}
	if !kind.Contains(char) {
		return errors.Wrapf(ErrInvalidKana, "%q is not basic %s", char, kind)
	}
	return e.mutate(func(p *models.ProgressSnapshot) (bool, error) {
		if !p.KanaSet(kind).Add(char) {
			return false, nil
		}
		e.recordStudy(p, models.StudyType(kind), char)
		return true, nil
	})
}

// IsLearned reports whether the kanji is in the learned set
func (e *Engine) IsLearned(kanji string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.LearnedKanji.Has(strings.TrimSpace(kanji))
}

// IsKanaLearned reports whether the kana is in the learned set of its syllabary
func (e *Engine) IsKanaLearned(char string, kind models.KanaKind) bool {
	if !kind.Valid() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.KanaSet(kind).Has(strings.TrimSpace(char))
}

// Progress reports how many kanji of the list are learned
func (e *Engine) Progress(kanji []string) models.ProgressSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return listProgress(e.snap.LearnedKanji, kanji)
}

// KanaProgress reports how much of a syllabary is learned. Kana merged in
// from elsewhere count even when they are not in the basic alphabet.
func (e *Engine) KanaProgress(kind models.KanaKind) models.ProgressSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !kind.Valid() {
		return models.ProgressSummary{}
	}
	return kanaProgress(e.snap.KanaSet(kind))
}

// AddQuizResult stores a finished quiz. The ID and date are assigned here;
// the stored result is returned.
func (e *Engine) AddQuizResult(result models.QuizResult) (models.QuizResult, error) {
	if err := validateQuizResult(result); err != nil {
		return models.QuizResult{}, err
	}

	var stored models.QuizResult
	err := e.mutate(func(p *models.ProgressSnapshot) (bool, error) {
		now := e.cfg.Clock()
		id := now.UnixMilli()
		if id <= e.lastQuizID {
			id = e.lastQuizID + 1
		}
		e.lastQuizID = id

		stored = result.Clone()
		stored.ID = id
		stored.Date = now

		history := make([]models.QuizResult, 0, len(p.QuizHistory)+1)
		history = append(history, stored)
		history = append(history, p.QuizHistory...)
		if len(history) > models.QuizHistoryLimit {
			history = history[:models.QuizHistoryLimit]
		}
		p.QuizHistory = history
		return true, nil
	})
	if err != nil {
		return models.QuizResult{}, err
	}
	return stored.Clone(), nil
}

// QuizStats summarises quiz history. An empty level covers every quiz.
func (e *Engine) QuizStats(level models.Level) models.QuizStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return quizStats(e.snap.QuizHistory, level)
}

// RecentActivity returns the newest study events, DefaultActivityLimit when limit <= 0
func (e *Engine) RecentActivity(limit int) []models.StudyEvent {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit > len(e.snap.StudySessions) {
		limit = len(e.snap.StudySessions)
	}
	return append([]models.StudyEvent{}, e.snap.StudySessions[:limit]...)
}

// StudyStreak counts consecutive days, ending today, with at least one study event
func (e *Engine) StudyStreak() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return studyStreak(e.snap.StudySessions, e.cfg.Clock(), e.cfg.Location)
}

// StreakAtRisk returns the streak that ends yesterday when nothing has been
// studied today yet, and 0 otherwise
func (e *Engine) StreakAtRisk() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.cfg.Clock()
	if todayStats(e.snap.StudySessions, now, e.cfg.Location).Total > 0 {
		return 0
	}
	return studyStreak(e.snap.StudySessions, now.AddDate(0, 0, -1), e.cfg.Location)
}

// TodayStats counts today's study events by type
func (e *Engine) TodayStats() models.TodayStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return todayStats(e.snap.StudySessions, e.cfg.Clock(), e.cfg.Location)
}

// Reset empties all progress on this device. Like any mutation it is
// saved locally and, when signed in, pushed to the cloud.
func (e *Engine) Reset() error {
	return e.mutate(func(p *models.ProgressSnapshot) (bool, error) {
		*p = models.NewProgressSnapshot()
		return true, nil
	})
}

// recordStudy runs under the engine lock
func (e *Engine) recordStudy(p *models.ProgressSnapshot, kind models.StudyType, item string) {
	event := models.StudyEvent{
		ID:   uuid.NewString(),
		Type: kind,
		Item: item,
		Date: e.cfg.Clock(),
	}
	sessions := make([]models.StudyEvent, 0, len(p.StudySessions)+1)
	sessions = append(sessions, event)
	sessions = append(sessions, p.StudySessions...)
	if len(sessions) > models.StudySessionLimit {
		sessions = sessions[:models.StudySessionLimit]
	}
	p.StudySessions = sessions
}

func validateQuizResult(r models.QuizResult) error {
	switch {
	case !r.Level.Valid():
		return errors.Wrapf(ErrInvalidQuizResult, "unknown level %q", r.Level)
	case r.TotalQuestions <= 0:
		return errors.Wrap(ErrInvalidQuizResult, "no questions")
	case r.Score < 0 || r.Score > r.TotalQuestions:
		return errors.Wrapf(ErrInvalidQuizResult, "score %d out of %d", r.Score, r.TotalQuestions)
	}
	return nil
}

// Report summarises the current snapshot
func (e *Engine) Report() Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return NewReport(e.snap)
}
