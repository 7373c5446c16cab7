package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// checkAdmin guards admin-only callbacks. The gate itself does not
// authorize its callers, so every admin action goes through here first.
func (b *Bot) checkAdmin(cq *tgbotapi.CallbackQuery) bool {
	if !b.gate.IsAdmin(cq.From.ID) {
		b.alert(cq.ID, "❌ Доступ запрещен")
		return false
	}
	return true
}

func (b *Bot) showAdminPanel(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if !b.checkAdmin(cq) {
		return
	}
	b.renderAdminPanel(cq)
	b.answerCallback(cq.ID)
}

func (b *Bot) renderAdminPanel(cq *tgbotapi.CallbackQuery) {
	markup := adminMenu()
	b.edit(cq.Message.Chat.ID, cq.Message.MessageID,
		"👑 Панель администратора\n\nВыберите действие:", &markup)
}

func (b *Bot) showPendingUsers(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if !b.checkAdmin(cq) {
		return
	}
	b.renderPendingUsers(ctx, cq)
	b.answerCallback(cq.ID)
}

func (b *Bot) renderPendingUsers(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	pending, err := b.gate.Pending(ctx)
	if err != nil {
		b.logger.Error("pending list failed", zap.Error(err))
		b.alert(cq.ID, errorText(err))
		return
	}

	if len(pending) == 0 {
		markup := adminMenu()
		b.edit(cq.Message.Chat.ID, cq.Message.MessageID,
			"📋 Заявки на доступ\n\nНет ожидающих заявок", &markup)
		return
	}

	text := fmt.Sprintf("📋 Заявки на доступ\n\nВсего заявок: %d\n\nВыберите пользователя для управления:", len(pending))
	markup := pendingUsersKeyboard(pending)
	b.edit(cq.Message.Chat.ID, cq.Message.MessageID, text, &markup)
}

func (b *Bot) showUserActions(ctx context.Context, cq *tgbotapi.CallbackQuery, targetID int64) {
	if !b.checkAdmin(cq) {
		return
	}

	info, err := b.gate.UserInfo(ctx, targetID)
	if err != nil {
		b.logger.Error("user lookup failed", zap.Int64("target_id", targetID), zap.Error(err))
		b.alert(cq.ID, errorText(err))
		return
	}
	if info == nil {
		b.alert(cq.ID, "❌ Пользователь не найден")
		return
	}

	status := "⏳ Ожидает доступа"
	if info.HasAccess {
		status = "✅ Доступ разрешен"
	}

	var sb strings.Builder
	sb.WriteString("👤 Информация о пользователе\n\n")
	fmt.Fprintf(&sb, "ID: %d\n", targetID)
	fmt.Fprintf(&sb, "Статус: %s\n", status)
	if info.Username != "" {
		fmt.Fprintf(&sb, "Username: @%s\n", info.Username)
	}
	sb.WriteString("\nВыберите действие:")

	markup := userActionKeyboard(targetID, info.HasAccess)
	b.edit(cq.Message.Chat.ID, cq.Message.MessageID, sb.String(), &markup)
	b.answerCallback(cq.ID)
}

func (b *Bot) approveUser(ctx context.Context, cq *tgbotapi.CallbackQuery, targetID int64) {
	if !b.checkAdmin(cq) {
		return
	}

	if err := b.gate.Grant(ctx, targetID); err != nil {
		b.logger.Error("grant failed", zap.Int64("target_id", targetID), zap.Error(err))
		b.alert(cq.ID, "❌ Ошибка при выдаче доступа")
		return
	}

	b.alert(cq.ID, "✅ Доступ разрешен")
	b.notify(targetID,
		"🎉 Ваша заявка одобрена!\n\n"+
			"Теперь вы можете пользоваться ботом.\n"+
			"Нажмите /start для начала работы.")
	b.renderPendingUsers(ctx, cq)
}

func (b *Bot) revokeUser(ctx context.Context, cq *tgbotapi.CallbackQuery, targetID int64) {
	if !b.checkAdmin(cq) {
		return
	}

	if err := b.gate.Revoke(ctx, targetID); err != nil {
		b.logger.Error("revoke failed", zap.Int64("target_id", targetID), zap.Error(err))
		b.alert(cq.ID, "❌ Ошибка при отзыве доступа")
		return
	}

	b.alert(cq.ID, "🚫 Доступ отозван")
	b.notify(targetID, "🔒 Ваш доступ к боту был отозван администратором.")
	b.renderAdminPanel(cq)
}

func (b *Bot) showAllUsers(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if !b.checkAdmin(cq) {
		return
	}

	users, err := b.gate.Approved(ctx)
	if err != nil {
		b.logger.Error("user list failed", zap.Error(err))
		b.alert(cq.ID, errorText(err))
		return
	}

	if len(users) == 0 {
		markup := adminMenu()
		b.edit(cq.Message.Chat.ID, cq.Message.MessageID,
			"👥 Все пользователи\n\nНет пользователей с доступом", &markup)
		b.answerCallback(cq.ID)
		return
	}

	var sb strings.Builder
	sb.WriteString("👥 Все пользователи с доступом\n\n")
	fmt.Fprintf(&sb, "Всего пользователей: %d\n\n", len(users))

	shown := users
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, u := range shown {
		name := "Без username"
		if u.Username != "" {
			name = "@" + u.Username
		}
		fmt.Fprintf(&sb, "• ID: %d - %s\n", u.ID, name)
	}
	if len(users) > 10 {
		fmt.Fprintf(&sb, "\n... и еще %d пользователей", len(users)-10)
	}

	markup := adminMenu()
	b.edit(cq.Message.Chat.ID, cq.Message.MessageID, sb.String(), &markup)
	b.answerCallback(cq.ID)
}

func (b *Bot) showStats(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if !b.checkAdmin(cq) {
		return
	}

	stats, err := b.gate.Stats(ctx)
	if err != nil {
		b.logger.Error("stats failed", zap.Error(err))
		b.alert(cq.ID, errorText(err))
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 Статистика бота\n\n")
	fmt.Fprintf(&sb, "👥 Всего пользователей: %d\n", stats.TotalUsers)
	fmt.Fprintf(&sb, "✅ С доступом: %d\n", stats.ApprovedUsers)
	fmt.Fprintf(&sb, "⏳ Ожидают доступа: %d\n", stats.PendingUsers)
	fmt.Fprintf(&sb, "🤖 Всего запросов к ИИ: %d\n", stats.TotalAIRequests)

	markup := adminMenu()
	b.edit(cq.Message.Chat.ID, cq.Message.MessageID, sb.String(), &markup)
	b.answerCallback(cq.ID)
}
