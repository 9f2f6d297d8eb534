package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/nihongo/internal/database"
	"github.com/example/nihongo/internal/progress"
	"github.com/example/nihongo/internal/quiz"
	"github.com/example/nihongo/pkg/models"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if msg, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return msg
		}
	}
	t.Fatal("no message sent")
	return tgbotapi.MessageConfig{}
}

type levelProvider []models.Kanji

func (p levelProvider) ByLevel(context.Context, models.Level) ([]models.Kanji, error) {
	return append([]models.Kanji(nil), p...), nil
}

var deck = levelProvider{
	{Character: "一", Meaning: "one"},
	{Character: "二", Meaning: "two"},
	{Character: "三", Meaning: "three"},
	{Character: "水", Meaning: "water"},
	{Character: "火", Meaning: "fire"},
}

func openDeviceDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenDevice(filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestBot(t *testing.T, db *sqlx.DB) (*Bot, *fakeSender) {
	t.Helper()
	api := &fakeSender{}
	b, err := newBot(api, Deps{
		DeviceDB: db,
		Quizzes:  quiz.NewGenerator(deck, 3),
		Progress: progress.Config{DebounceWindow: 20 * time.Millisecond, Location: time.UTC},
		AdminIDs: []int64{99},
	}, &BotConfig{QuizLength: 2})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		b.Stop(ctx)
	})
	return b, api
}

func command(chatID, userID int64, text string) *tgbotapi.Message {
	cmd := strings.SplitN(text, " ", 2)[0]
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: userID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func callback(chatID, userID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}
}

func TestParseCharacters(t *testing.T) {
	assert.Equal(t, []string{"水", "火", "木"}, parseCharacters(" 水火, 木 水"))
	assert.Empty(t, parseCharacters("  ,. "))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]models.Level{"n5": models.LevelN5, "N3": models.LevelN3, "Mixed": models.LevelMixed} {
		got, ok := parseLevel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := parseLevel("N1")
	assert.False(t, ok)
}

func TestParseQuizArgs(t *testing.T) {
	level, qtype, err := parseQuizArgs("reading n4", quiz.MeaningQuestion)
	require.NoError(t, err)
	assert.Equal(t, models.LevelN4, level)
	assert.Equal(t, quiz.ReadingQuestion, qtype)

	level, qtype, err = parseQuizArgs("", quiz.MeaningQuestion)
	require.NoError(t, err)
	assert.Equal(t, models.LevelN5, level)
	assert.Equal(t, quiz.MeaningQuestion, qtype)

	_, _, err = parseQuizArgs("hard", quiz.MeaningQuestion)
	assert.Error(t, err)
}

func TestAnswerData(t *testing.T) {
	position, option, ok := parseAnswerData(answerData(3, 1))
	require.True(t, ok)
	assert.Equal(t, 3, position)
	assert.Equal(t, 1, option)

	_, _, ok = parseAnswerData("answer:x")
	assert.False(t, ok)
}

func TestDeviceID(t *testing.T) {
	id, ok := chatIDFromDevice(deviceID(-1001))
	require.True(t, ok)
	assert.Equal(t, int64(-1001), id)

	_, ok = chatIDFromDevice("cli")
	assert.False(t, ok)
}

func TestLearnCommand(t *testing.T) {
	b, api := newTestBot(t, openDeviceDB(t))
	ctx := context.Background()

	require.NoError(t, b.HandleCommand(ctx, command(1, 10, "/learn 水火")))
	assert.Equal(t, "✅ Learned: 水 火", api.last(t).Text)

	require.NoError(t, b.HandleCommand(ctx, command(1, 10, "/learn 水")))
	assert.Contains(t, api.last(t).Text, "Already learned")

	require.NoError(t, b.HandleCommand(ctx, command(1, 10, "/unlearn 火")))
	assert.Equal(t, "Removed: 火", api.last(t).Text)

	s, err := b.session(1)
	require.NoError(t, err)
	assert.True(t, s.engine.IsLearned("水"))
	assert.False(t, s.engine.IsLearned("火"))
}

func TestKanaCommand(t *testing.T) {
	b, api := newTestBot(t, openDeviceDB(t))

	require.NoError(t, b.HandleCommand(context.Background(), command(1, 10, "/kana あア x")))
	text := api.last(t).Text
	assert.Contains(t, text, "Learned: あ ア")
	assert.Contains(t, text, "Not basic kana: x")
	assert.Contains(t, text, "Hiragana: 1/46 (2%)")
}

func TestQuizFlow(t *testing.T) {
	b, api := newTestBot(t, openDeviceDB(t))
	ctx := context.Background()

	require.NoError(t, b.HandleCommand(ctx, command(1, 10, "/quiz N5")))
	first := api.last(t)
	assert.True(t, strings.HasPrefix(first.Text, "Question 1/2"))
	keyboard, ok := first.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, keyboard.InlineKeyboard, quiz.DefaultOptions)

	s, err := b.session(1)
	require.NoError(t, err)
	q := s.quiz
	require.NotNil(t, q)

	// correct answer, then a stale tap on question 1, then a wrong answer
	require.NoError(t, b.HandleCallback(ctx, callback(1, 10, answerData(1, q.Questions[0].CorrectIndex))))
	require.NoError(t, b.HandleCallback(ctx, callback(1, 10, answerData(1, 0))))
	wrong := (q.Questions[1].CorrectIndex + 1) % len(q.Questions[1].Options)
	require.NoError(t, b.HandleCallback(ctx, callback(1, 10, answerData(2, wrong))))

	assert.Contains(t, api.last(t).Text, "Quiz finished: 1/2 (50%)")
	assert.Nil(t, s.quiz)

	stats := s.engine.QuizStats(models.LevelN5)
	assert.Equal(t, 1, stats.TotalQuizzes)
	assert.Equal(t, 50, stats.AverageScore)
}

func TestLoginSurvivesRestartAndLogoutWipes(t *testing.T) {
	db := openDeviceDB(t)
	b, _ := newTestBot(t, db)
	ctx := context.Background()

	require.NoError(t, b.HandleCommand(ctx, command(5, 42, "/login")))
	require.NoError(t, b.HandleCommand(ctx, command(5, 42, "/learn 山")))

	restarted, api := newTestBot(t, db)
	require.NoError(t, restarted.restoreSessions())
	s, err := restarted.session(5)
	require.NoError(t, err)
	assert.Equal(t, userKey(42), s.engine.AuthStatus().UserID)
	assert.True(t, s.engine.IsLearned("山"))

	learners := restarted.Learners()
	require.Len(t, learners, 1)
	assert.Equal(t, int64(5), learners[0].ChatID)

	require.NoError(t, restarted.HandleCommand(ctx, command(5, 42, "/logout")))
	assert.Contains(t, api.last(t).Text, "Signed out")
	assert.False(t, s.engine.IsLearned("山"))
	assert.False(t, s.engine.AuthStatus().IsAuthenticated())

	_, ok, err := s.local.Get(authKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetNeedsConfirmation(t *testing.T) {
	b, api := newTestBot(t, openDeviceDB(t))
	ctx := context.Background()

	require.NoError(t, b.HandleCommand(ctx, command(1, 10, "/learn 水")))
	require.NoError(t, b.HandleCommand(ctx, command(1, 10, "/reset")))
	require.NoError(t, b.HandleCallback(ctx, callback(1, 10, callbackResetCancel)))

	s, err := b.session(1)
	require.NoError(t, err)
	assert.True(t, s.engine.IsLearned("水"))

	require.NoError(t, b.HandleCallback(ctx, callback(1, 10, callbackResetConfirm)))
	assert.Equal(t, "Progress cleared.", api.last(t).Text)
	assert.False(t, s.engine.IsLearned("水"))
}

func TestSyncStatusIsAdminOnly(t *testing.T) {
	b, api := newTestBot(t, openDeviceDB(t))
	ctx := context.Background()

	require.NoError(t, b.HandleCommand(ctx, command(1, 10, "/sync")))
	assert.Contains(t, api.last(t).Text, "only available for administrators")

	require.NoError(t, b.HandleCommand(ctx, command(1, 99, "/sync")))
	assert.Contains(t, api.last(t).Text, "State: local_loaded")
}

func TestExportSendsWorkbook(t *testing.T) {
	b, api := newTestBot(t, openDeviceDB(t))
	require.NoError(t, b.HandleCommand(context.Background(), command(1, 10, "/export")))

	api.mu.Lock()
	defer api.mu.Unlock()
	doc, ok := api.sent[len(api.sent)-1].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(file.Name, ".xlsx"))
	assert.NotEmpty(t, file.Bytes)
}

func TestSendStreakReminder(t *testing.T) {
	b, api := newTestBot(t, openDeviceDB(t))
	require.NoError(t, b.SendStreakReminder(7, 3))
	msg := api.last(t)
	assert.Equal(t, int64(7), msg.ChatID)
	assert.Contains(t, msg.Text, "3 days")
}

func TestUnknownCommand(t *testing.T) {
	b, api := newTestBot(t, openDeviceDB(t))
	require.NoError(t, b.HandleCommand(context.Background(), command(1, 10, "/dance")))
	assert.Contains(t, api.last(t).Text, "Unknown command")
}
