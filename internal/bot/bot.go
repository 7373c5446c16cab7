// Package bot is the Telegram transport. It owns the long-polling loop,
// the inline keyboards and the callback routing; all dialogue decisions
// are delegated to the conversation engine, all privilege decisions to
// the access gate.
package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dietbot/internal/access"
	"dietbot/internal/advisory"
	"dietbot/internal/config"
	"dietbot/internal/conversation"
	"dietbot/internal/llm"
	"dietbot/internal/quota"
	"dietbot/internal/store"
)

// maxConcurrentUpdates caps the in-flight handler goroutines. Each
// advisory round may hold an LLM call open for the full configured
// timeout, so the cap keeps a burst from piling up connections.
const maxConcurrentUpdates = 32

// Bot wires the Telegram API to the domain services.
type Bot struct {
	api    *tgbotapi.BotAPI
	store  *store.Store
	gate   *access.Gate
	engine *conversation.Engine
	broker *advisory.Broker
	locks  *identityLocks
	logger *zap.Logger
}

// New connects to the Telegram API and assembles the transport.
func New(cfg *config.Config, st *store.Store, gate *access.Gate, engine *conversation.Engine, broker *advisory.Broker, logger *zap.Logger) (*Bot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	logger.Info("connected to Telegram", zap.String("bot", api.Self.UserName))

	return &Bot{
		api:    api,
		store:  st,
		gate:   gate,
		engine: engine,
		broker: broker,
		locks:  newIdentityLocks(),
		logger: logger,
	}, nil
}

// Run long-polls for updates until ctx is canceled. Updates are handled
// concurrently, serialized per identity.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
		case <-stopped:
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUpdates)

	b.logger.Info("update loop started")
	for update := range updates {
		update := update
		g.Go(func() error {
			b.handleUpdate(ctx, update)
			return nil
		})
	}
	close(stopped)

	if err := g.Wait(); err != nil {
		return err
	}
	b.logger.Info("update loop stopped")
	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		release := b.locks.acquire(update.Message.From.ID)
		defer release()
		b.handleMessage(ctx, update.Message)

	case update.CallbackQuery != nil:
		release := b.locks.acquire(update.CallbackQuery.From.ID)
		defer release()
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) send(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	var err error
	if markup != nil {
		_, err = b.api.Send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup))
	} else {
		_, err = b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	}
	if err != nil {
		b.logger.Warn("edit failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) answerCallback(id string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.logger.Debug("callback answer failed", zap.Error(err))
	}
}

func (b *Bot) alert(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallbackWithAlert(id, text)); err != nil {
		b.logger.Debug("callback alert failed", zap.Error(err))
	}
}

// notify delivers a direct message on a best-effort basis. A user who
// never opened a chat with the bot cannot be messaged; that is not an
// error for the admin action that triggered the notification.
func (b *Bot) notify(userID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		b.logger.Debug("notification not delivered", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (b *Bot) sendReply(chatID int64, reply conversation.Reply) {
	if reply.Text == "" {
		return
	}
	b.send(chatID, reply.Text, markupFor(reply.Menu))
}

func markupFor(menu conversation.Menu) *tgbotapi.InlineKeyboardMarkup {
	var m tgbotapi.InlineKeyboardMarkup
	switch menu {
	case conversation.MenuMain, conversation.MenuUser:
		m = userMenu()
	case conversation.MenuAdmin:
		m = adminMenu()
	case conversation.MenuUserData:
		m = userDataMenu()
	case conversation.MenuDietAI:
		m = dietAIMenu(true)
	case conversation.MenuDietAIExhausted:
		m = dietAIMenu(false)
	default:
		return nil
	}
	return &m
}

// errorText maps a classified failure to the message shown to the user.
func errorText(err error) string {
	switch {
	case errors.Is(err, access.ErrDenied):
		return "❌ Доступ запрещен"
	case errors.Is(err, quota.ErrExhausted):
		return "❌ Вы исчерпали лимит запросов"
	}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		switch llmErr.Kind {
		case llm.KindTimeout:
			return "⏳ Сервис отвечает слишком долго.\nПопробуйте еще раз позже."
		case llm.KindRateLimited:
			return "⏳ Сервис перегружен.\nПопробуйте еще раз через минуту."
		case llm.KindAuth:
			return "❌ Сервис рекомендаций временно недоступен."
		case llm.KindMalformed:
			return "❌ Не удалось получить ответ.\nПопробуйте переформулировать вопрос."
		}
	}
	return "❌ Ошибка при обработке запроса.\nПопробуйте еще раз позже."
}
