package bot

import (
	"time"

	"github.com/example/nihongo/internal/quiz"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Number of questions in a quiz
	QuizLength int
	// Kind of question asked when /quiz names none
	QuestionType quiz.QuestionType
	// Long polling timeout in seconds
	UpdateTimeout int
	// Upper bound for handling one update
	HandlerTimeout time.Duration
	// Log every request to the Telegram API
	Debug bool
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		QuizLength:     10,
		QuestionType:   quiz.MeaningQuestion,
		UpdateTimeout:  60,
		HandlerTimeout: 30 * time.Second,
	}
}
