// Package quiz builds multiple-choice kanji quizzes and grades them.
package quiz

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/example/nihongo/pkg/models"
)

var (
	// ErrNotEnoughKanji is returned when a level has too few usable kanji
	ErrNotEnoughKanji = errors.New("not enough kanji for a quiz")
	// ErrFinished is returned when answering a quiz with no questions left
	ErrFinished = errors.New("quiz already finished")
	// ErrInvalidOption is returned for an option index out of range
	ErrInvalidOption = errors.New("invalid option")
	// ErrNoAnswers is returned when a result is requested before any answer
	ErrNoAnswers = errors.New("quiz has no answers")
)

// QuestionType represents different kinds of questions
type QuestionType string

const (
	// MeaningQuestion asks for the English meaning of a kanji
	MeaningQuestion QuestionType = "meaning"
	// ReadingQuestion asks for a reading of a kanji
	ReadingQuestion QuestionType = "reading"
)

// DefaultOptions is the number of choices per question
const DefaultOptions = 4

// Provider supplies kanji for a level
type Provider interface {
	ByLevel(ctx context.Context, level models.Level) ([]models.Kanji, error)
}

// Question represents a single quiz question
type Question struct {
	Kanji        models.Kanji
	Type         QuestionType
	Options      []string
	CorrectIndex int
}

// Correct returns the text of the right option
func (q Question) Correct() string {
	return q.Options[q.CorrectIndex]
}

// Prompt returns what the user is asked
func (q Question) Prompt() string {
	if q.Type == ReadingQuestion {
		return "How is " + q.Kanji.Character + " read?"
	}
	return "What does " + q.Kanji.Character + " mean?"
}

// Generator creates quizzes
type Generator struct {
	provider Provider

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator creates a generator. A zero seed uses the current time.
func NewGenerator(provider Provider, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		provider: provider,
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

// answerText is the text a question of type t expects for k
func answerText(k models.Kanji, t QuestionType) string {
	if t == ReadingQuestion {
		return firstNonEmpty(k.OnyomiKatakana, k.KunyomiHiragana)
	}
	return strings.TrimSpace(k.Meaning)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Create builds a quiz of up to count questions from the level's kanji
func (g *Generator) Create(ctx context.Context, level models.Level, count int, qtype QuestionType) (*Quiz, error) {
	if !level.Valid() {
		return nil, errors.Errorf("unknown level %q", level)
	}
	if count <= 0 {
		count = 10
	}
	if qtype == "" {
		qtype = MeaningQuestion
	}

	pool, err := g.provider.ByLevel(ctx, level)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get kanji")
	}
	pool = lo.Filter(pool, func(k models.Kanji, _ int) bool {
		return k.Character != "" && answerText(k, qtype) != ""
	})
	pool = lo.UniqBy(pool, func(k models.Kanji) string { return k.Character })

	answers := lo.Uniq(lo.Map(pool, func(k models.Kanji, _ int) string { return answerText(k, qtype) }))
	if len(answers) < 2 {
		return nil, ErrNotEnoughKanji
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > count {
		pool = pool[:count]
	}

	questions := make([]Question, 0, len(pool))
	for _, k := range pool {
		questions = append(questions, g.buildQuestion(k, qtype, answers))
	}
	return &Quiz{Level: level, Questions: questions}, nil
}

// buildQuestion must be called with mu held
func (g *Generator) buildQuestion(k models.Kanji, qtype QuestionType, answers []string) Question {
	correct := answerText(k, qtype)
	distractors := lo.Without(answers, correct)
	g.rnd.Shuffle(len(distractors), func(i, j int) {
		distractors[i], distractors[j] = distractors[j], distractors[i]
	})
	if len(distractors) > DefaultOptions-1 {
		distractors = distractors[:DefaultOptions-1]
	}

	options := append(distractors, correct)
	correctIndex := len(options) - 1
	g.rnd.Shuffle(len(options), func(i, j int) {
		if i == correctIndex {
			correctIndex = j
		} else if j == correctIndex {
			correctIndex = i
		}
		options[i], options[j] = options[j], options[i]
	})

	return Question{
		Kanji:        k,
		Type:         qtype,
		Options:      options,
		CorrectIndex: correctIndex,
	}
}

// Quiz is a quiz in progress. It is not safe for concurrent use.
type Quiz struct {
	Level     models.Level
	Questions []Question
	answers   []models.Answer
}

// Current returns the next unanswered question
func (q *Quiz) Current() (Question, bool) {
	if q.Done() {
		return Question{}, false
	}
	return q.Questions[len(q.answers)], true
}

// Position returns the 1-based number of the current question
func (q *Quiz) Position() int {
	return len(q.answers) + 1
}

// Done reports whether every question has been answered
func (q *Quiz) Done() bool {
	return len(q.answers) >= len(q.Questions)
}

// Answer grades the current question with the chosen option
func (q *Quiz) Answer(option int) (models.Answer, error) {
	question, ok := q.Current()
	if !ok {
		return models.Answer{}, ErrFinished
	}
	if option < 0 || option >= len(question.Options) {
		return models.Answer{}, ErrInvalidOption
	}

	answer := models.Answer{
		Kanji:     question.Kanji.Character,
		Selected:  question.Options[option],
		Correct:   question.Correct(),
		IsCorrect: option == question.CorrectIndex,
	}
	q.answers = append(q.answers, answer)
	return answer, nil
}

// Score returns the number of correct answers so far
func (q *Quiz) Score() int {
	return lo.CountBy(q.answers, func(a models.Answer) bool { return a.IsCorrect })
}

// Result converts the answered questions into a result ready to be stored.
// ID and date are left for the progress engine to assign.
func (q *Quiz) Result() (models.QuizResult, error) {
	if len(q.answers) == 0 {
		return models.QuizResult{}, ErrNoAnswers
	}
	return models.QuizResult{
		Level:          q.Level,
		Score:          q.Score(),
		TotalQuestions: len(q.answers),
		Answers:        append([]models.Answer(nil), q.answers...),
	}, nil
}
