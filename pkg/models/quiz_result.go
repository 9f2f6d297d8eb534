package models

import "time"

// Level is the JLPT level a quiz was drawn from
type Level string

const (
	LevelN5    Level = "N5"
	LevelN4    Level = "N4"
	LevelN3    Level = "N3"
	LevelMixed Level = "mixed"
)

// Levels lists the levels a quiz can be taken at
var Levels = []Level{LevelN5, LevelN4, LevelN3, LevelMixed}

// Valid reports whether l is one of the supported quiz levels
func (l Level) Valid() bool {
	switch l {
	case LevelN5, LevelN4, LevelN3, LevelMixed:
		return true
	}
	return false
}

// QuizHistoryLimit is the number of quiz results kept in history
const QuizHistoryLimit = 50

// Answer is a single graded quiz question
type Answer struct {
	Kanji     string `json:"kanji"`
	Selected  string `json:"selected"`
	Correct   string `json:"correct"`
	IsCorrect bool   `json:"isCorrect"`
}

// QuizResult is a completed quiz attempt
type QuizResult struct {
	ID             int64     `json:"id"` // creation time in ms, unique per history
	Level          Level     `json:"level"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Answers        []Answer  `json:"answers"`
	Date           time.Time `json:"date"`
}

// Clone returns a copy that shares no slices with r
func (r QuizResult) Clone() QuizResult {
	out := r
	if r.Answers != nil {
		out.Answers = append([]Answer(nil), r.Answers...)
	}
	return out
}

// QuizStats summarises quiz history, optionally filtered by level
type QuizStats struct {
	TotalQuizzes   int `json:"totalQuizzes"`
	AverageScore   int `json:"averageScore"` // percent, weighted by question count
	BestScore      int `json:"bestScore"`    // percent
	TotalQuestions int `json:"totalQuestions"`
}
