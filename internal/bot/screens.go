package bot

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"dietbot/internal/types"
)

func (b *Bot) showMyData(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if !b.checkAccess(ctx, cq) {
		return
	}

	profile, err := b.store.Profile(ctx, cq.From.ID)
	if err != nil {
		b.logger.Error("profile load failed", zap.Int64("user_id", cq.From.ID), zap.Error(err))
		b.alert(cq.ID, errorText(err))
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 Мои данные\n\n")
	if profile == nil {
		sb.WriteString("У вас еще нет сохраненных данных.\n")
		sb.WriteString("Добавьте информацию о себе для получения персональных рекомендаций.")
	} else {
		fmt.Fprintf(&sb, "⚖️ Вес: %s\n", floatField(profile.Weight, "кг", "не указан"))
		fmt.Fprintf(&sb, "📏 Рост: %s\n", intField(profile.Height, "см", "не указан"))
		fmt.Fprintf(&sb, "🎂 Возраст: %s\n", intField(profile.Age, "лет", "не указан"))
		fmt.Fprintf(&sb, "🎯 Цель: %s\n", stringField(profile.Goal, "не указана"))
		fmt.Fprintf(&sb, "🎯 Целевой вес: %s\n", floatField(profile.TargetWeight, "кг", "не указан"))
	}

	markup := userDataMenu()
	b.edit(cq.Message.Chat.ID, cq.Message.MessageID, sb.String(), &markup)
	b.answerCallback(cq.ID)
}

func (b *Bot) showWorkouts(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if !b.checkAccess(ctx, cq) {
		return
	}

	workouts, err := b.store.WorkoutRecords(ctx, cq.From.ID, 10)
	if err != nil {
		b.logger.Error("workout load failed", zap.Int64("user_id", cq.From.ID), zap.Error(err))
		b.alert(cq.ID, errorText(err))
		return
	}

	var sb strings.Builder
	sb.WriteString("💪 История тренировок\n\n")
	if len(workouts) == 0 {
		sb.WriteString("У вас еще нет записей о тренировках.")
	} else {
		fmt.Fprintf(&sb, "Последние %d записей:\n\n", len(workouts))
		for i, w := range workouts {
			fmt.Fprintf(&sb, "%d. %s\n%s\n\n", i+1, w.CreatedAt.Format("2006-01-02"), w.Data)
		}
	}

	markup := userDataMenu()
	b.edit(cq.Message.Chat.ID, cq.Message.MessageID, sb.String(), &markup)
	b.answerCallback(cq.ID)
}

func (b *Bot) showDietAI(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if !b.checkAccess(ctx, cq) {
		return
	}

	used, err := b.store.AdvisoryRequestCount(ctx, cq.From.ID)
	if err != nil {
		b.logger.Error("quota load failed", zap.Int64("user_id", cq.From.ID), zap.Error(err))
		b.alert(cq.ID, errorText(err))
		return
	}
	ceiling := b.broker.Ceiling()
	remaining := ceiling - used
	if remaining < 0 {
		remaining = 0
	}

	var sb strings.Builder
	sb.WriteString("🤖 ИИ-Диетолог\n\n")
	sb.WriteString("Задайте вопрос нашему ИИ-диетологу.\n\n")
	fmt.Fprintf(&sb, "📊 Использовано запросов: %d/%d\n", used, ceiling)
	fmt.Fprintf(&sb, "✅ Осталось запросов: %d\n\n", remaining)
	if remaining > 0 {
		sb.WriteString("Нажмите кнопку ниже, чтобы задать вопрос.")
	} else {
		sb.WriteString("⚠️ Вы исчерпали лимит запросов.")
	}

	markup := dietAIMenu(remaining > 0)
	b.edit(cq.Message.Chat.ID, cq.Message.MessageID, sb.String(), &markup)
	b.answerCallback(cq.ID)
}

func (b *Bot) showAIHistory(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if !b.checkAccess(ctx, cq) {
		return
	}

	history, err := b.store.AdvisoryHistory(ctx, cq.From.ID, 5)
	if err != nil {
		b.logger.Error("history load failed", zap.Int64("user_id", cq.From.ID), zap.Error(err))
		b.alert(cq.ID, errorText(err))
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 История запросов к ИИ\n\n")
	if len(history) == 0 {
		sb.WriteString("У вас еще нет запросов к ИИ-диетологу.")
	} else {
		fmt.Fprintf(&sb, "Последние %d запросов:\n\n", len(history))
		for i, rec := range history {
			fmt.Fprintf(&sb, "%d. %s\n❓ %s\n\n", i+1, rec.CreatedAt.Format("2006-01-02"), truncateRunes(rec.Question, 50))
		}
	}

	used := len(history)
	if n, err := b.store.AdvisoryRequestCount(ctx, cq.From.ID); err == nil {
		used = n
	}
	ceiling := b.broker.Ceiling()
	remaining := ceiling - used
	if remaining < 0 {
		remaining = 0
	}
	fmt.Fprintf(&sb, "\n📊 Всего запросов: %d/%d\n", used, ceiling)
	fmt.Fprintf(&sb, "✅ Осталось: %d", remaining)

	markup := dietAIMenu(remaining > 0)
	b.edit(cq.Message.Chat.ID, cq.Message.MessageID, sb.String(), &markup)
	b.answerCallback(cq.ID)
}

func floatField(v *float64, unit, absent string) string {
	if v == nil {
		return absent
	}
	return fmt.Sprintf("%s %s", types.FormatFloat(*v), unit)
}

func intField(v *int, unit, absent string) string {
	if v == nil {
		return absent
	}
	return fmt.Sprintf("%d %s", *v, unit)
}

func stringField(v *string, absent string) string {
	if v == nil {
		return absent
	}
	return *v
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
