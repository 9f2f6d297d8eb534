// Package bot is the Telegram front end. Every chat is a device with its
// own progress engine.
package bot

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/nihongo/internal/auth"
	"github.com/example/nihongo/internal/database"
	"github.com/example/nihongo/internal/kanji"
	"github.com/example/nihongo/internal/progress"
	"github.com/example/nihongo/internal/quiz"
	"github.com/example/nihongo/internal/scheduler"
)

// authKey stores the signed-in Telegram user next to the chat's progress
const authKey = "tg_auth_user"

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// sender is the part of the Telegram API the bot talks to
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Deps are the services the bot is built on
type Deps struct {
	// DeviceDB holds the local progress of every chat
	DeviceDB *sqlx.DB
	// Cloud may be nil, then progress stays on the device
	Cloud    progress.CloudStore
	Catalog  *kanji.Catalog
	Quizzes  *quiz.Generator
	Progress progress.Config
	Logger   logrus.FieldLogger
	AdminIDs []int64
}

// session is the state kept for one chat
type session struct {
	chatID int64
	engine *progress.Engine
	local  *database.LocalStore

	mu   sync.Mutex
	quiz *quiz.Quiz
}

// Bot represents the Telegram bot application
type Bot struct {
	api    sender
	token  string
	deps   Deps
	config *BotConfig
	logger logrus.FieldLogger
	admins map[int64]bool

	mu       sync.Mutex
	sessions map[int64]*session
	stop     func()
	wg       sync.WaitGroup
}

// New creates a new bot instance. The Telegram connection is made by Start.
func New(token string, deps Deps, config *BotConfig) (*Bot, error) {
	if token == "" {
		return nil, errors.New("telegram token is not set")
	}
	b, err := newBot(nil, deps, config)
	if err != nil {
		return nil, err
	}
	b.token = token
	return b, nil
}

func newBot(api sender, deps Deps, config *BotConfig) (*Bot, error) {
	if deps.DeviceDB == nil {
		return nil, errors.New("device database is not set")
	}
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.QuizLength <= 0 {
		config.QuizLength = defaults.QuizLength
	}
	if config.QuestionType == "" {
		config.QuestionType = defaults.QuestionType
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = defaults.HandlerTimeout
	}
	logger := deps.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	b := &Bot{
		api:      api,
		deps:     deps,
		config:   config,
		logger:   logger.WithField("component", "bot"),
		admins:   make(map[int64]bool, len(deps.AdminIDs)),
		sessions: make(map[int64]*session),
	}
	for _, id := range deps.AdminIDs {
		b.admins[id] = true
	}
	return b, nil
}

// Start connects to Telegram and handles updates until ctx is done or
// Stop is called
func (b *Bot) Start(ctx context.Context) error {
	if err := b.restoreSessions(); err != nil {
		b.logger.WithError(err).Warn("Failed to restore chat sessions")
	}

	botAPI, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return errors.Wrap(err, "unable to create bot")
	}
	botAPI.Debug = b.config.Debug
	b.api = botAPI
	b.logger.WithField("account", botAPI.Self.UserName).Info("Authorized on Telegram")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.mu.Lock()
	b.stop = cancel
	b.mu.Unlock()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.UpdateTimeout
	updates := botAPI.GetUpdatesChan(updateConfig)
	defer botAPI.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// Stop stops receiving updates, waits for running handlers and closes every
// chat engine, flushing pending cloud writes
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.stop != nil {
		b.stop()
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("Timed out waiting for update handlers")
	}

	b.mu.Lock()
	sessions := make([]*session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.engine.Close(ctx); err != nil {
			b.logger.WithError(err).WithField("chat_id", s.chatID).Error("Failed to close progress engine")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	b.logger.Info("Bot stopped")
	return firstErr
}

// deviceID names the chat in the device database
func deviceID(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

// chatIDFromDevice is the inverse of deviceID
func chatIDFromDevice(device string) (int64, bool) {
	if len(device) < 4 || device[:3] != "tg-" {
		return 0, false
	}
	id, err := strconv.ParseInt(device[3:], 10, 64)
	return id, err == nil
}

// userKey is the cloud identity of a Telegram user
func userKey(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}

// session returns the chat's session, loading its progress on first use
func (b *Bot) session(chatID int64) (*session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessions[chatID]; ok {
		return s, nil
	}

	local := database.NewLocalStore(b.deps.DeviceDB, deviceID(chatID))
	log := b.logger.WithField("chat_id", chatID)
	engine := progress.New(local, b.deps.Cloud, log, b.deps.Progress)
	if err := engine.Load(); err != nil {
		return nil, errors.Wrapf(err, "failed to load progress for chat %d", chatID)
	}

	// Restore who was signed in before a restart
	user, ok, err := local.Get(authKey)
	switch {
	case err != nil:
		log.WithError(err).Warn("Failed to read signed-in user")
		engine.HandleAuth(auth.Unauthenticated())
	case ok && len(user) > 0:
		engine.HandleAuth(auth.Authenticated(string(user)))
	default:
		engine.HandleAuth(auth.Unauthenticated())
	}

	s := &session{chatID: chatID, engine: engine, local: local}
	b.sessions[chatID] = s
	return s, nil
}

// restoreSessions opens every chat that has progress on this device so
// reminders reach chats that have not written since the last restart
func (b *Bot) restoreSessions() error {
	devices, err := database.ListDevices(b.deps.DeviceDB)
	if err != nil {
		return err
	}
	for _, device := range devices {
		chatID, ok := chatIDFromDevice(device)
		if !ok {
			continue
		}
		if _, err := b.session(chatID); err != nil {
			b.logger.WithError(err).WithField("device", device).Warn("Failed to restore session")
		}
	}
	return nil
}

// signIn emits an authenticated event for the chat and remembers the user
func (b *Bot) signIn(s *session, userID int64) error {
	key := userKey(userID)
	if err := s.local.SetMany(map[string][]byte{authKey: []byte(key)}); err != nil {
		return errors.Wrap(err, "failed to remember signed-in user")
	}
	s.engine.HandleAuth(auth.Authenticated(key))
	return nil
}

// signOut emits an unauthenticated event, which wipes the chat's progress
func (b *Bot) signOut(s *session) error {
	s.engine.HandleAuth(auth.Unauthenticated())
	if err := s.local.Remove(authKey); err != nil {
		return errors.Wrap(err, "failed to forget signed-in user")
	}
	return nil
}

// Learners implements scheduler.Directory
func (b *Bot) Learners() []scheduler.Learner {
	b.mu.Lock()
	defer b.mu.Unlock()
	learners := make([]scheduler.Learner, 0, len(b.sessions))
	for _, s := range b.sessions {
		learners = append(learners, scheduler.Learner{ChatID: s.chatID, Progress: s.engine})
	}
	return learners
}

// SendStreakReminder implements scheduler.Notifier
func (b *Bot) SendStreakReminder(chatID int64, streak int) error {
	dayForm := "days"
	if streak == 1 {
		dayForm = "day"
	}
	text := fmt.Sprintf("🔥 Your study streak is %d %s. Learn something today to keep it going! Try /quiz or /learn.", streak, dayForm)
	return b.send(tgbotapi.NewMessage(chatID, text))
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.admins[userID]
}

func (b *Bot) send(c tgbotapi.Chattable) error {
	if b.api == nil {
		return errors.New("bot is not connected")
	}
	if _, err := b.api.Send(c); err != nil {
		return errors.Wrap(err, "failed to send message")
	}
	return nil
}

// reply sends a text message, logging failures
func (b *Bot) reply(chatID int64, text string) {
	if err := b.send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to reply")
	}
}

// replyWithMenu sends a text message with the main menu attached
func (b *Bot) replyWithMenu(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(MainMenuButtons())
	if err := b.send(msg); err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to reply")
	}
}

// MainMenuButtons returns the buttons for the main menu
func MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "🎯 Quiz N5", CallbackData: callbackQuizPrefix + "N5"},
			{Text: "🎯 Quiz N4", CallbackData: callbackQuizPrefix + "N4"},
			{Text: "🎯 Quiz N3", CallbackData: callbackQuizPrefix + "N3"},
		},
		{
			{Text: "📊 Statistics", CallbackData: callbackStats},
			{Text: "🔥 Streak", CallbackData: callbackStreak},
		},
		{
			{Text: "📈 Progress", CallbackData: callbackProgress},
			{Text: "📅 Today", CallbackData: callbackToday},
		},
	}
}
