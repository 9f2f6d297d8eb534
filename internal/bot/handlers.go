package bot

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/nihongo/internal/excel"
	"github.com/example/nihongo/internal/kanji"
	"github.com/example/nihongo/internal/progress"
	"github.com/example/nihongo/internal/quiz"
	"github.com/example/nihongo/pkg/models"
)

// Constants for callback data
const (
	callbackQuizPrefix   = "quiz:"
	callbackAnswerPrefix = "answer:"
	callbackStats        = "show_stats"
	callbackStreak       = "show_streak"
	callbackProgress     = "show_progress"
	callbackToday        = "show_today"
	callbackResetConfirm = "reset_confirm"
	callbackResetCancel  = "reset_cancel"
)

const helpText = `Available commands:
/login - Sign in and sync your progress
/logout - Sign out and clear progress in this chat
/learn 水火 - Mark kanji as learned
/unlearn 水 - Unmark a kanji
/kana あいう - Mark kana as learned, /kana alone shows kana progress
/progress [N5|N4|N3|mixed] - Kanji progress for a level
/quiz [N5|N4|N3|mixed] [meaning|reading] - Start a quiz
/stats - Quiz statistics
/streak - Study streak
/today - What you studied today
/recent [n] - Recent activity
/kanji <kanji or word> - Look up a kanji
/export - Download your progress as Excel
/reset - Clear all progress`

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, b.config.HandlerTimeout)
	defer cancel()

	switch {
	case update.Message != nil && update.Message.Chat != nil && update.Message.IsCommand():
		if err := b.HandleCommand(ctx, update.Message); err != nil {
			b.logger.WithError(err).WithFields(logrus.Fields{
				"chat_id": update.Message.Chat.ID,
				"command": update.Message.Command(),
			}).Error("Failed to handle command")
			b.reply(update.Message.Chat.ID, "Something went wrong, please try again later.")
		}
	case update.Message != nil && update.Message.Chat != nil:
		b.replyWithMenu(update.Message.Chat.ID, "I don't understand. Use /help to see what I can do.")
	case update.CallbackQuery != nil:
		if err := b.HandleCallback(ctx, update.CallbackQuery); err != nil {
			b.logger.WithError(err).WithField("data", update.CallbackQuery.Data).Error("Failed to handle callback")
		}
	}
}

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message == nil || message.Chat == nil {
		return errors.New("invalid message: required fields are missing")
	}
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		b.replyWithMenu(chatID, "Welcome to the Nihongo bot! 🇯🇵\n\n"+helpText)
		return nil
	case "help":
		b.reply(chatID, helpText)
		return nil
	}

	s, err := b.session(chatID)
	if err != nil {
		return err
	}
	ctx = progress.NewContext(ctx, s.engine)
	args := message.CommandArguments()

	switch message.Command() {
	case "login":
		return b.handleLogin(ctx, s, message.From)
	case "logout":
		return b.handleLogout(ctx, s)
	case "learn":
		return b.handleLearn(ctx, chatID, args, true)
	case "unlearn":
		return b.handleLearn(ctx, chatID, args, false)
	case "kana":
		return b.handleKana(ctx, chatID, args)
	case "progress":
		return b.handleProgress(ctx, chatID, args)
	case "quiz":
		return b.handleQuiz(ctx, s, args)
	case "stats":
		return b.handleStats(ctx, chatID)
	case "streak":
		return b.handleStreak(ctx, chatID)
	case "today":
		return b.handleToday(ctx, chatID)
	case "recent":
		return b.handleRecent(ctx, chatID, args)
	case "kanji":
		return b.handleKanji(ctx, chatID, args)
	case "export":
		return b.handleExport(ctx, chatID)
	case "reset":
		return b.handleReset(chatID)
	case "sync":
		return b.handleSyncStatus(ctx, message.From, chatID)
	}
	return b.handleUnknownCommand(chatID)
}

func (b *Bot) handleLogin(ctx context.Context, s *session, from *tgbotapi.User) error {
	if from == nil {
		return errors.New("login without a sender")
	}
	if err := b.signIn(s, from.ID); err != nil {
		return err
	}
	e, _ := progress.FromContext(ctx)
	text := "Signed in. Your progress in this chat is now synced."
	if e.IsSyncing() {
		text = "Signed in. Syncing your progress..."
	}
	b.reply(s.chatID, text)
	return nil
}

func (b *Bot) handleLogout(ctx context.Context, s *session) error {
	e, _ := progress.FromContext(ctx)
	if !e.AuthStatus().IsAuthenticated() {
		b.reply(s.chatID, "You are not signed in.")
		return nil
	}
	if err := b.signOut(s); err != nil {
		return err
	}
	b.reply(s.chatID, "Signed out. Progress in this chat was cleared; it is still saved in your account.")
	return nil
}

func (b *Bot) handleLearn(ctx context.Context, chatID int64, args string, learned bool) error {
	chars := parseCharacters(args)
	if len(chars) == 0 {
		b.reply(chatID, "Send the kanji along with the command, for example /learn 水火")
		return nil
	}

	e, _ := progress.FromContext(ctx)
	var changed []string
	for _, c := range chars {
		before := e.IsLearned(c)
		var err error
		if learned {
			err = e.MarkLearned(c)
		} else {
			err = e.UnmarkLearned(c)
		}
		if err != nil {
			return err
		}
		if before != learned {
			changed = append(changed, c)
		}
	}

	switch {
	case len(changed) == 0 && learned:
		b.reply(chatID, "Already learned: "+strings.Join(chars, " "))
	case len(changed) == 0:
		b.reply(chatID, "Not in your learned list: "+strings.Join(chars, " "))
	case learned:
		b.reply(chatID, "✅ Learned: "+strings.Join(changed, " "))
	default:
		b.reply(chatID, "Removed: "+strings.Join(changed, " "))
	}
	return nil
}

func (b *Bot) handleKana(ctx context.Context, chatID int64, args string) error {
	e, _ := progress.FromContext(ctx)
	chars := parseCharacters(args)
	if len(chars) == 0 {
		b.reply(chatID, formatKanaProgress(e))
		return nil
	}

	var learned, rejected []string
	for _, c := range chars {
		kind, ok := kanaKindOf(c)
		if !ok {
			rejected = append(rejected, c)
			continue
		}
		if err := e.MarkKanaLearned(c, kind); err != nil {
			return err
		}
		learned = append(learned, c)
	}

	var sb strings.Builder
	if len(learned) > 0 {
		sb.WriteString("✅ Learned: " + strings.Join(learned, " ") + "\n")
	}
	if len(rejected) > 0 {
		sb.WriteString("Not basic kana: " + strings.Join(rejected, " ") + "\n")
	}
	sb.WriteString(formatKanaProgress(e))
	b.reply(chatID, sb.String())
	return nil
}

func (b *Bot) handleProgress(ctx context.Context, chatID int64, args string) error {
	level := models.LevelN5
	if args = strings.TrimSpace(args); args != "" {
		var ok bool
		if level, ok = parseLevel(args); !ok {
			b.reply(chatID, "Unknown level. Use N5, N4, N3 or mixed.")
			return nil
		}
	}

	e, _ := progress.FromContext(ctx)
	var sb strings.Builder
	if b.deps.Catalog != nil {
		list, err := b.deps.Catalog.ByLevel(ctx, level)
		if err != nil {
			b.logger.WithError(err).Warn("Failed to load kanji list")
		} else {
			p := e.Progress(kanji.Characters(list))
			fmt.Fprintf(&sb, "📈 %s kanji: %d/%d (%d%%)\n", level, p.Learned, p.Total, p.Percentage)
		}
	}
	if sb.Len() == 0 {
		fmt.Fprintf(&sb, "📈 Learned kanji: %d\n", e.Report().LearnedKanji)
	}
	sb.WriteString(formatKanaProgress(e))
	b.reply(chatID, sb.String())
	return nil
}

func (b *Bot) handleQuiz(ctx context.Context, s *session, args string) error {
	level, qtype, err := parseQuizArgs(args, b.config.QuestionType)
	if err != nil {
		b.reply(s.chatID, err.Error())
		return nil
	}
	return b.startQuiz(ctx, s, level, qtype)
}

func (b *Bot) startQuiz(ctx context.Context, s *session, level models.Level, qtype quiz.QuestionType) error {
	if b.deps.Quizzes == nil {
		b.reply(s.chatID, "Quizzes are not available right now.")
		return nil
	}

	q, err := b.deps.Quizzes.Create(ctx, level, b.config.QuizLength, qtype)
	if errors.Is(err, quiz.ErrNotEnoughKanji) {
		b.reply(s.chatID, "There are not enough kanji for this level yet.")
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.quiz = q
	s.mu.Unlock()

	b.sendQuestion(s.chatID, q)
	return nil
}

// sendQuestion shows the current question with one button per option
func (b *Bot) sendQuestion(chatID int64, q *quiz.Quiz) {
	question, ok := q.Current()
	if !ok {
		return
	}
	buttons := make([][]MenuButton, 0, len(question.Options))
	for i, option := range question.Options {
		buttons = append(buttons, []MenuButton{{
			Text:         option,
			CallbackData: answerData(q.Position(), i),
		}})
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Question %d/%d\n%s", q.Position(), len(q.Questions), question.Prompt()))
	msg.ReplyMarkup = createKeyboard(buttons)
	if err := b.send(msg); err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send question")
	}
}

func (b *Bot) handleAnswer(ctx context.Context, s *session, data string) error {
	position, option, ok := parseAnswerData(data)
	if !ok {
		return errors.Errorf("malformed answer %q", data)
	}

	s.mu.Lock()
	q := s.quiz
	if q == nil || q.Position() != position {
		s.mu.Unlock()
		// a button from an older question or a finished quiz
		return nil
	}
	answer, err := q.Answer(option)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	done := q.Done()
	if done {
		s.quiz = nil
	}
	s.mu.Unlock()

	if answer.IsCorrect {
		b.reply(s.chatID, "✅ Correct!")
	} else {
		b.reply(s.chatID, "❌ Wrong. "+answer.Kanji+" = "+answer.Correct)
	}

	if !done {
		b.sendQuestion(s.chatID, q)
		return nil
	}

	result, err := q.Result()
	if err != nil {
		return err
	}
	e, _ := progress.FromContext(ctx)
	stored, err := e.AddQuizResult(result)
	if err != nil {
		return err
	}
	b.replyWithMenu(s.chatID, fmt.Sprintf("🏁 Quiz finished: %d/%d (%d%%)",
		stored.Score, stored.TotalQuestions, stored.Score*100/stored.TotalQuestions))
	return nil
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) error {
	e, _ := progress.FromContext(ctx)
	b.reply(chatID, formatReport(e.Report()))
	return nil
}

func (b *Bot) handleStreak(ctx context.Context, chatID int64) error {
	e, _ := progress.FromContext(ctx)
	streak, atRisk := e.StudyStreak(), e.StreakAtRisk()
	switch {
	case atRisk > 0:
		b.reply(chatID, fmt.Sprintf("🔥 Your %d day streak ends tonight unless you study today!", atRisk))
	case streak == 0:
		b.reply(chatID, "No streak yet. Learn something today to start one!")
	default:
		b.reply(chatID, fmt.Sprintf("🔥 Study streak: %d day(s)", streak))
	}
	return nil
}

func (b *Bot) handleToday(ctx context.Context, chatID int64) error {
	e, _ := progress.FromContext(ctx)
	t := e.TodayStats()
	b.reply(chatID, fmt.Sprintf("📅 Today: %d item(s)\nKanji: %d\nHiragana: %d\nKatakana: %d",
		t.Total, t.Kanji, t.Hiragana, t.Katakana))
	return nil
}

func (b *Bot) handleRecent(ctx context.Context, chatID int64, args string) error {
	limit := 0
	if args = strings.TrimSpace(args); args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n <= 0 {
			b.reply(chatID, "Usage: /recent [number]")
			return nil
		}
		limit = n
	}

	e, _ := progress.FromContext(ctx)
	events := e.RecentActivity(limit)
	if len(events) == 0 {
		b.reply(chatID, "Nothing studied yet.")
		return nil
	}
	var sb strings.Builder
	sb.WriteString("🕘 Recent activity:\n")
	for _, ev := range events {
		fmt.Fprintf(&sb, "%s  %s %s\n", ev.Date.In(b.location()).Format("Jan 2 15:04"), ev.Type, ev.Item)
	}
	b.reply(chatID, sb.String())
	return nil
}

func (b *Bot) handleKanji(ctx context.Context, chatID int64, args string) error {
	query := strings.TrimSpace(args)
	if query == "" {
		b.reply(chatID, "Usage: /kanji <kanji or English word>")
		return nil
	}
	if b.deps.Catalog == nil {
		b.reply(chatID, "Kanji lookup is not available right now.")
		return nil
	}

	k, err := b.deps.Catalog.Lookup(ctx, query)
	if errors.Is(err, kanji.ErrNotFound) {
		b.reply(chatID, "No kanji found for "+query)
		return nil
	}
	if err != nil {
		return err
	}

	e, _ := progress.FromContext(ctx)
	b.reply(chatID, formatKanji(*k, e.IsLearned(k.Character)))
	return nil
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) error {
	e, _ := progress.FromContext(ctx)
	var buf bytes.Buffer
	if err := excel.ExportProgress(&buf, e.Snapshot(), b.location()); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "progress-" + time.Now().In(b.location()).Format("20060102") + ".xlsx",
		Bytes: buf.Bytes(),
	})
	doc.Caption = "Your learning progress"
	return b.send(doc)
}

func (b *Bot) handleReset(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "This clears all progress in this chat and in your account. Are you sure?")
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{
		{Text: "Yes, reset", CallbackData: callbackResetConfirm},
		{Text: "Cancel", CallbackData: callbackResetCancel},
	}})
	return b.send(msg)
}

// handleSyncStatus is an admin command that reports the chat's sync state
func (b *Bot) handleSyncStatus(ctx context.Context, from *tgbotapi.User, chatID int64) error {
	if from == nil || !b.isAdmin(from.ID) {
		b.reply(chatID, "This command is only available for administrators.")
		return nil
	}
	e, _ := progress.FromContext(ctx)
	b.reply(chatID, fmt.Sprintf("State: %s\nAuth: %s", e.State(), e.AuthStatus()))
	return nil
}

func (b *Bot) handleUnknownCommand(chatID int64) error {
	b.replyWithMenu(chatID, "Unknown command. Use /help to see what I can do.")
	return nil
}

// HandleCallback handles inline button presses
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil || callback.Message.Chat == nil {
		return errors.New("callback without a message")
	}
	chatID := callback.Message.Chat.ID

	if b.api != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
			b.logger.WithError(err).Debug("Failed to answer callback")
		}
	}

	s, err := b.session(chatID)
	if err != nil {
		return err
	}
	ctx = progress.NewContext(ctx, s.engine)

	switch data := callback.Data; {
	case strings.HasPrefix(data, callbackAnswerPrefix):
		return b.handleAnswer(ctx, s, data)
	case strings.HasPrefix(data, callbackQuizPrefix):
		level, ok := parseLevel(strings.TrimPrefix(data, callbackQuizPrefix))
		if !ok {
			return errors.Errorf("unknown quiz level in %q", data)
		}
		return b.startQuiz(ctx, s, level, b.config.QuestionType)
	case data == callbackStats:
		return b.handleStats(ctx, chatID)
	case data == callbackStreak:
		return b.handleStreak(ctx, chatID)
	case data == callbackProgress:
		return b.handleProgress(ctx, chatID, "")
	case data == callbackToday:
		return b.handleToday(ctx, chatID)
	case data == callbackResetConfirm:
		if err := s.engine.Reset(); err != nil {
			return err
		}
		b.replyWithMenu(chatID, "Progress cleared.")
		return nil
	case data == callbackResetCancel:
		b.replyWithMenu(chatID, "Reset cancelled.")
		return nil
	}
	return errors.Errorf("unknown callback %q", callback.Data)
}

func (b *Bot) location() *time.Location {
	if b.deps.Progress.Location != nil {
		return b.deps.Progress.Location
	}
	return time.Local
}

// parseCharacters splits command arguments into distinct characters,
// dropping spaces and punctuation
func parseCharacters(args string) []string {
	seen := make(map[rune]bool)
	var out []string
	for _, r := range args {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, string(r))
	}
	return out
}

// kanaKindOf reports which basic syllabary c belongs to
func kanaKindOf(c string) (models.KanaKind, bool) {
	for _, kind := range []models.KanaKind{models.Hiragana, models.Katakana} {
		if kind.Contains(c) {
			return kind, true
		}
	}
	return "", false
}

// parseLevel accepts n5, N4, Mixed and the like
func parseLevel(s string) (models.Level, bool) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, string(models.LevelMixed)) {
		return models.LevelMixed, true
	}
	level := models.Level(strings.ToUpper(s))
	return level, level.Valid()
}

// parseQuizArgs reads "[level] [meaning|reading]" in any order
func parseQuizArgs(args string, defaultType quiz.QuestionType) (models.Level, quiz.QuestionType, error) {
	level, qtype := models.LevelN5, defaultType
	for _, field := range strings.Fields(args) {
		switch strings.ToLower(field) {
		case string(quiz.MeaningQuestion):
			qtype = quiz.MeaningQuestion
		case string(quiz.ReadingQuestion):
			qtype = quiz.ReadingQuestion
		default:
			l, ok := parseLevel(field)
			if !ok {
				return "", "", errors.Errorf("Unknown option %q. Use /quiz [N5|N4|N3|mixed] [meaning|reading]", field)
			}
			level = l
		}
	}
	return level, qtype, nil
}

func answerData(position, option int) string {
	return fmt.Sprintf("%s%d:%d", callbackAnswerPrefix, position, option)
}

func parseAnswerData(data string) (position, option int, ok bool) {
	parts := strings.Split(strings.TrimPrefix(data, callbackAnswerPrefix), ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	position, err1 := strconv.Atoi(parts[0])
	option, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return position, option, true
}

func formatKanaProgress(e *progress.Engine) string {
	h := e.KanaProgress(models.Hiragana)
	k := e.KanaProgress(models.Katakana)
	return fmt.Sprintf("あ Hiragana: %d/%d (%d%%)\nア Katakana: %d/%d (%d%%)",
		h.Learned, h.Total, h.Percentage, k.Learned, k.Total, k.Percentage)
}

func formatReport(r progress.Report) string {
	var sb strings.Builder
	sb.WriteString("📊 Your statistics\n\n")
	fmt.Fprintf(&sb, "Learned kanji: %d\n", r.LearnedKanji)
	fmt.Fprintf(&sb, "Hiragana: %d%%, Katakana: %d%%\n\n", r.Hiragana.Percentage, r.Katakana.Percentage)
	if r.Quizzes.TotalQuizzes == 0 {
		sb.WriteString("No quizzes taken yet. Try /quiz")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Quizzes: %d, average %d%%, best %d%%\n",
		r.Quizzes.TotalQuizzes, r.Quizzes.AverageScore, r.Quizzes.BestScore)
	for _, level := range models.Levels {
		s := r.ByLevel[level]
		if s.TotalQuizzes == 0 {
			continue
		}
		fmt.Fprintf(&sb, "  %s: %d quiz(zes), average %d%%\n", level, s.TotalQuizzes, s.AverageScore)
	}
	return sb.String()
}

func formatKanji(k models.Kanji, learned bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s - %s\n", k.Character, k.Meaning)
	if k.OnyomiKatakana != "" {
		fmt.Fprintf(&sb, "On: %s (%s)\n", k.OnyomiKatakana, k.OnyomiRomaji)
	}
	if k.KunyomiHiragana != "" {
		fmt.Fprintf(&sb, "Kun: %s (%s)\n", k.KunyomiHiragana, k.KunyomiRomaji)
	}
	if k.Strokes > 0 {
		fmt.Fprintf(&sb, "Strokes: %d\n", k.Strokes)
	}
	if k.Grade > 0 {
		fmt.Fprintf(&sb, "Grade: %d\n", k.Grade)
	}
	if learned {
		sb.WriteString("✅ Learned")
	} else {
		sb.WriteString("Not learned yet. /learn " + k.Character)
	}
	return sb.String()
}
