package progress

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/nihongo/internal/merge"
	"github.com/example/nihongo/pkg/models"
)

// Keys under which a snapshot is kept in the local store
const (
	KeyLearnedKanji    = "learnedKanji"
	KeyLearnedHiragana = "learnedHiragana"
	KeyLearnedKatakana = "learnedKatakana"
	KeyQuizHistory     = "quizHistory"
	KeyStudySessions   = "studySessions"
)

// StorageKeys lists every local store key owned by the engine
var StorageKeys = []string{
	KeyLearnedKanji,
	KeyLearnedHiragana,
	KeyLearnedKatakana,
	KeyQuizHistory,
	KeyStudySessions,
}

func encodeSnapshot(p models.ProgressSnapshot) (map[string][]byte, error) {
	values := map[string]interface{}{
		KeyLearnedKanji:    p.LearnedKanji,
		KeyLearnedHiragana: p.LearnedHiragana,
		KeyLearnedKatakana: p.LearnedKatakana,
		KeyQuizHistory:     nonNilHistory(p.QuizHistory),
		KeyStudySessions:   nonNilSessions(p.StudySessions),
	}

	out := make(map[string][]byte, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s", key)
		}
		out[key] = data
	}
	return out, nil
}

// decodeSnapshot reads every key independently. Missing, unreadable and
// malformed values fall back to empty defaults.
func decodeSnapshot(store LocalStore, logger logrus.FieldLogger) models.ProgressSnapshot {
	p := models.NewProgressSnapshot()
	targets := map[string]interface{}{
		KeyLearnedKanji:    &p.LearnedKanji,
		KeyLearnedHiragana: &p.LearnedHiragana,
		KeyLearnedKatakana: &p.LearnedKatakana,
		KeyQuizHistory:     &p.QuizHistory,
		KeyStudySessions:   &p.StudySessions,
	}

	for _, key := range StorageKeys {
		log := logger.WithField("key", key)
		data, ok, err := store.Get(key)
		if err != nil {
			log.WithError(err).Error("Failed to read local progress, using empty value")
			continue
		}
		if !ok {
			continue
		}
		if err := json.Unmarshal(data, targets[key]); err != nil {
			log.WithError(err).Warn("Malformed local progress, using empty value")
			resetField(&p, key)
		}
	}

	normalizeSnapshot(&p)
	return p
}

func resetField(p *models.ProgressSnapshot, key string) {
	empty := models.NewProgressSnapshot()
	switch key {
	case KeyLearnedKanji:
		p.LearnedKanji = empty.LearnedKanji
	case KeyLearnedHiragana:
		p.LearnedHiragana = empty.LearnedHiragana
	case KeyLearnedKatakana:
		p.LearnedKatakana = empty.LearnedKatakana
	case KeyQuizHistory:
		p.QuizHistory = empty.QuizHistory
	case KeyStudySessions:
		p.StudySessions = empty.StudySessions
	}
}

func normalizeSnapshot(p *models.ProgressSnapshot) {
	if p.LearnedKanji == nil {
		p.LearnedKanji = models.CharSet{}
	}
	if p.LearnedHiragana == nil {
		p.LearnedHiragana = models.CharSet{}
	}
	if p.LearnedKatakana == nil {
		p.LearnedKatakana = models.CharSet{}
	}
	p.QuizHistory = nonNilHistory(p.QuizHistory)
	merge.SortHistory(p.QuizHistory)
	if len(p.QuizHistory) > models.QuizHistoryLimit {
		p.QuizHistory = p.QuizHistory[:models.QuizHistoryLimit]
	}
	p.StudySessions = nonNilSessions(p.StudySessions)
	if len(p.StudySessions) > models.StudySessionLimit {
		p.StudySessions = p.StudySessions[:models.StudySessionLimit]
	}
}

func nonNilHistory(h []models.QuizResult) []models.QuizResult {
	if h == nil {
		return []models.QuizResult{}
	}
	return h
}

func nonNilSessions(s []models.StudyEvent) []models.StudyEvent {
	if s == nil {
		return []models.StudyEvent{}
	}
	return s
}
