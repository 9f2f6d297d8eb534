// Package merge reconciles a device's progress with the copy stored in the cloud.
package merge

import (
	"sort"

	"github.com/example/nihongo/pkg/models"
)

// Merge combines local and cloud progress.
//
// Learned sets are unioned. Quiz history keeps every cloud entry plus the
// local entries whose ID the cloud does not know, newest first, capped at
// models.QuizHistoryLimit. Study sessions are device local and always come
// from local. A nil side yields a copy of the other.
func Merge(local, cloud *models.ProgressSnapshot) models.ProgressSnapshot {
	switch {
	case local == nil && cloud == nil:
		return models.NewProgressSnapshot()
	case cloud == nil:
		return normalize(local.Clone())
	case local == nil:
		return normalize(cloud.Clone())
	}

	out := models.ProgressSnapshot{
		LearnedKanji:    local.LearnedKanji.Union(cloud.LearnedKanji),
		LearnedHiragana: local.LearnedHiragana.Union(cloud.LearnedHiragana),
		LearnedKatakana: local.LearnedKatakana.Union(cloud.LearnedKatakana),
		QuizHistory:     mergeHistory(local.QuizHistory, cloud.QuizHistory),
		StudySessions:   append([]models.StudyEvent{}, local.StudySessions...),
	}
	return out
}

func mergeHistory(local, cloud []models.QuizResult) []models.QuizResult {
	seen := make(map[int64]struct{}, len(local)+len(cloud))
	out := make([]models.QuizResult, 0, len(local)+len(cloud))
	for _, list := range [][]models.QuizResult{cloud, local} {
		for _, r := range list {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r.Clone())
		}
	}
	SortHistory(out)
	if len(out) > models.QuizHistoryLimit {
		out = out[:models.QuizHistoryLimit]
	}
	return out
}

// SortHistory orders quiz results newest first; equal dates fall back to ID.
func SortHistory(history []models.QuizResult) {
	sort.SliceStable(history, func(i, j int) bool {
		a, b := history[i], history[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID > b.ID
	})
}

func normalize(p models.ProgressSnapshot) models.ProgressSnapshot {
	if p.LearnedKanji == nil {
		p.LearnedKanji = models.CharSet{}
	}
	if p.LearnedHiragana == nil {
		p.LearnedHiragana = models.CharSet{}
	}
	if p.LearnedKatakana == nil {
		p.LearnedKatakana = models.CharSet{}
	}
	if p.QuizHistory == nil {
		p.QuizHistory = []models.QuizResult{}
	}
	if p.StudySessions == nil {
		p.StudySessions = []models.StudyEvent{}
	}
	return p
}

// FromCloud converts a stored cloud document into a snapshot without study sessions.
func FromCloud(p models.CloudProgress) *models.ProgressSnapshot {
	snap := models.ProgressSnapshot{
		LearnedKanji:    models.NewCharSet(p.LearnedKanji...),
		LearnedHiragana: models.NewCharSet(p.LearnedHiragana...),
		LearnedKatakana: models.NewCharSet(p.LearnedKatakana...),
		QuizHistory:     make([]models.QuizResult, 0, len(p.QuizHistory)),
		StudySessions:   []models.StudyEvent{},
	}
	for _, r := range p.QuizHistory {
		snap.QuizHistory = append(snap.QuizHistory, r.Clone())
	}
	return &snap
}

// ToCloud extracts the cloud-visible part of a snapshot.
func ToCloud(p models.ProgressSnapshot) models.CloudProgress {
	out := models.CloudProgress{
		LearnedKanji:    p.LearnedKanji.Sorted(),
		LearnedHiragana: p.LearnedHiragana.Sorted(),
		LearnedKatakana: p.LearnedKatakana.Sorted(),
		QuizHistory:     make([]models.QuizResult, 0, len(p.QuizHistory)),
	}
	for _, r := range p.QuizHistory {
		out.QuizHistory = append(out.QuizHistory, r.Clone())
	}
	return out
}
