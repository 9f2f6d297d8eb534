package models

import "time"

// ProgressSnapshot is the whole learning progress held by a device
type ProgressSnapshot struct {
	LearnedKanji    CharSet      `json:"learnedKanji"`
	LearnedHiragana CharSet      `json:"learnedHiragana"`
	LearnedKatakana CharSet      `json:"learnedKatakana"`
	QuizHistory     []QuizResult `json:"quizHistory"`   // newest first
	StudySessions   []StudyEvent `json:"studySessions"` // newest first, never leaves the device
}

// NewProgressSnapshot returns an empty snapshot with all sets allocated
func NewProgressSnapshot() ProgressSnapshot {
	return ProgressSnapshot{
		LearnedKanji:    CharSet{},
		LearnedHiragana: CharSet{},
		LearnedKatakana: CharSet{},
		QuizHistory:     []QuizResult{},
		StudySessions:   []StudyEvent{},
	}
}

// Clone returns a deep copy of the snapshot
func (p ProgressSnapshot) Clone() ProgressSnapshot {
	out := ProgressSnapshot{
		LearnedKanji:    p.LearnedKanji.Clone(),
		LearnedHiragana: p.LearnedHiragana.Clone(),
		LearnedKatakana: p.LearnedKatakana.Clone(),
		QuizHistory:     make([]QuizResult, len(p.QuizHistory)),
		StudySessions:   append([]StudyEvent{}, p.StudySessions...),
	}
	for i, r := range p.QuizHistory {
		out.QuizHistory[i] = r.Clone()
	}
	return out
}

// KanaSet returns the learned set for the given syllabary
func (p ProgressSnapshot) KanaSet(kind KanaKind) CharSet {
	if kind == Katakana {
		return p.LearnedKatakana
	}
	return p.LearnedHiragana
}

// CloudProgress is the part of a snapshot that is stored per user in the cloud
type CloudProgress struct {
	LearnedKanji    []string     `json:"learnedKanji"`
	LearnedHiragana []string     `json:"learnedHiragana"`
	LearnedKatakana []string     `json:"learnedKatakana"`
	QuizHistory     []QuizResult `json:"quizHistory"`
}

// CloudDocument is a user's progress document as returned by the cloud store
type CloudDocument struct {
	Progress    CloudProgress `json:"progress"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// ProgressSummary reports how much of a list has been learned
type ProgressSummary struct {
	Learned    int `json:"learned"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}
