package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"dietbot/internal/access"
	"dietbot/internal/conversation"
	"dietbot/internal/quota"
)

// dialogueTargets maps menu callbacks to the state they start.
var dialogueTargets = map[string]conversation.State{
	"add_weight":        conversation.StateAwaitingWeight,
	"add_height":        conversation.StateAwaitingHeight,
	"add_age":           conversation.StateAwaitingAge,
	"add_goal":          conversation.StateAwaitingGoal,
	"add_target_weight": conversation.StateAwaitingTargetWeight,
	"add_workout":       conversation.StateAwaitingWorkout,
	"ask_ai":            conversation.StateAwaitingQuestion,
}

// parseRef extracts the numeric tail of callbacks like "approve_123".
func parseRef(data, prefix string) (int64, bool) {
	tail, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		if msg.Command() == "start" {
			b.handleStart(ctx, chatID, userID, msg.From.UserName)
		}
		return
	}

	state, err := b.engine.State(ctx, userID)
	if err != nil {
		b.logger.Error("state lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		b.send(chatID, errorText(err), nil)
		return
	}

	// A question that passes length validation goes out to the model;
	// show the user something is happening meanwhile.
	var processingID int
	if state == conversation.StateAwaitingQuestion && questionLengthOK(msg.Text) {
		if sent, err := b.api.Send(tgbotapi.NewMessage(chatID, "⏳ Обрабатываю ваш запрос...")); err == nil {
			processingID = sent.MessageID
		}
	}

	reply, err := b.engine.HandleText(ctx, userID, msg.From.UserName, msg.Text)

	if processingID != 0 {
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, processingID)); err != nil {
			b.logger.Debug("failed to delete processing message", zap.Error(err))
		}
	}

	if err != nil {
		b.logger.Warn("message handling failed", zap.Int64("user_id", userID), zap.Error(err))
		markup := userMenu()
		b.send(chatID, errorText(err), &markup)
		return
	}
	b.sendReply(chatID, reply)
}

func questionLengthOK(text string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	return n >= 10 && n <= 1000
}

func (b *Bot) handleStart(ctx context.Context, chatID, userID int64, username string) {
	ok, err := b.gate.Check(ctx, userID, username)
	if err != nil {
		b.logger.Error("access check failed", zap.Int64("user_id", userID), zap.Error(err))
		b.send(chatID, errorText(err), nil)
		return
	}
	if !ok {
		b.send(chatID,
			"🔒 Доступ к боту ограничен\n\n"+
				"Ваша заявка отправлена администратору.\n"+
				"Ожидайте подтверждения доступа.", nil)
		return
	}

	if b.gate.IsAdmin(userID) {
		markup := adminMenu()
		b.send(chatID, "👑 Добро пожаловать, Администратор!\n\nВыберите действие:", &markup)
		return
	}

	markup := userMenu()
	b.send(chatID,
		"👋 Добро пожаловать в бот для диеты!\n\n"+
			"Здесь вы можете:\n"+
			"• Добавить свои данные (вес, рост, цели)\n"+
			"• Записывать силовые показатели\n"+
			"• Получать рекомендации от ИИ-диетолога\n\n"+
			"Выберите действие:", &markup)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		b.answerCallback(cq.ID)
		return
	}

	switch cq.Data {
	case "main_menu":
		b.showMainMenu(ctx, cq)
	case "user_menu":
		b.showUserMenu(ctx, cq)
	case "cancel":
		b.cancelAction(ctx, cq)
	case "my_data":
		b.showMyData(ctx, cq)
	case "view_workouts":
		b.showWorkouts(ctx, cq)
	case "diet_ai":
		b.showDietAI(ctx, cq)
	case "ai_history":
		b.showAIHistory(ctx, cq)
	case "admin_panel":
		b.showAdminPanel(ctx, cq)
	case "pending_users":
		b.showPendingUsers(ctx, cq)
	case "all_users":
		b.showAllUsers(ctx, cq)
	case "stats":
		b.showStats(ctx, cq)
	default:
		if target, ok := dialogueTargets[cq.Data]; ok {
			b.startDialogue(ctx, cq, target)
			return
		}
		if id, ok := parseRef(cq.Data, "approve_"); ok {
			b.approveUser(ctx, cq, id)
			return
		}
		if id, ok := parseRef(cq.Data, "revoke_"); ok {
			b.revokeUser(ctx, cq, id)
			return
		}
		if id, ok := parseRef(cq.Data, "user_"); ok {
			b.showUserActions(ctx, cq, id)
			return
		}
		b.logger.Debug("unknown callback", zap.String("data", cq.Data))
		b.answerCallback(cq.ID)
	}
}

// startDialogue enters an awaiting state and replaces the menu message
// with the prompt. The prompt deliberately carries no keyboard; the next
// input is the user's typed answer.
func (b *Bot) startDialogue(ctx context.Context, cq *tgbotapi.CallbackQuery, target conversation.State) {
	reply, err := b.engine.Start(ctx, cq.From.ID, cq.From.UserName, target)
	if err != nil {
		switch {
		case errors.Is(err, access.ErrDenied):
			b.alert(cq.ID, "❌ Доступ запрещен")
		case errors.Is(err, quota.ErrExhausted):
			b.alert(cq.ID, "❌ Вы исчерпали лимит запросов")
		default:
			b.logger.Error("failed to start dialogue", zap.Int64("user_id", cq.From.ID), zap.Error(err))
			b.alert(cq.ID, errorText(err))
		}
		return
	}

	b.edit(cq.Message.Chat.ID, cq.Message.MessageID, reply.Text, nil)
	b.answerCallback(cq.ID)
}

func (b *Bot) showMainMenu(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	// Opening the menu abandons any dialogue in progress.
	if err := b.store.ClearConversationState(ctx, cq.From.ID); err != nil {
		b.logger.Warn("failed to clear state", zap.Int64("user_id", cq.From.ID), zap.Error(err))
	}

	if b.gate.IsAdmin(cq.From.ID) {
		markup := adminMenu()
		b.edit(cq.Message.Chat.ID, cq.Message.MessageID,
			"👑 Главное меню администратора\n\nВыберите действие:", &markup)
	} else {
		markup := userMenu()
		b.edit(cq.Message.Chat.ID, cq.Message.MessageID,
			"📋 Главное меню\n\nВыберите действие:", &markup)
	}
	b.answerCallback(cq.ID)
}

func (b *Bot) showUserMenu(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if err := b.store.ClearConversationState(ctx, cq.From.ID); err != nil {
		b.logger.Warn("failed to clear state", zap.Int64("user_id", cq.From.ID), zap.Error(err))
	}

	markup := userMenu()
	b.edit(cq.Message.Chat.ID, cq.Message.MessageID,
		"📋 Пользовательское меню\n\nВыберите действие:", &markup)
	b.answerCallback(cq.ID)
}

func (b *Bot) cancelAction(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	reply, err := b.engine.Cancel(ctx, cq.From.ID)
	if err != nil {
		b.logger.Error("cancel failed", zap.Int64("user_id", cq.From.ID), zap.Error(err))
		b.alert(cq.ID, errorText(err))
		return
	}
	b.edit(cq.Message.Chat.ID, cq.Message.MessageID, reply.Text, markupFor(reply.Menu))
	b.answerCallback(cq.ID)
}

// checkAccess runs the gate for a callback and renders the denial alert
// itself. Returns false when the caller should stop.
func (b *Bot) checkAccess(ctx context.Context, cq *tgbotapi.CallbackQuery) bool {
	ok, err := b.gate.Check(ctx, cq.From.ID, cq.From.UserName)
	if err != nil {
		b.logger.Error("access check failed", zap.Int64("user_id", cq.From.ID), zap.Error(err))
		b.alert(cq.ID, errorText(err))
		return false
	}
	if !ok {
		b.alert(cq.ID, "❌ Доступ запрещен")
		return false
	}
	return true
}
