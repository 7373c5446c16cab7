// Package advisory orchestrates one externally-answered advisory round:
// quota gate, context-enriched prompt, the provider call, and the history
// commit that doubles as the quota decrement.
package advisory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dietbot/internal/llm"
	"dietbot/internal/quota"
	"dietbot/internal/store"
	"dietbot/internal/types"
)

// systemDirective is the fixed role given to the advisory model.
const systemDirective = "Ты профессиональный диетолог и специалист по питанию. " +
	"Твоя задача - давать краткие, точные и полезные рекомендации по питанию и диете. " +
	"Отвечай на языке пользователя. Будь конкретным и практичным. " +
	"Учитывай данные пользователя при формировании рекомендаций."

// Broker runs quota-checked advisory rounds.
type Broker struct {
	store   *store.Store
	tracker *quota.Tracker
	client  llm.Client
	logger  *zap.Logger
}

// NewBroker creates an advisory broker.
func NewBroker(st *store.Store, tracker *quota.Tracker, client llm.Client, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{store: st, tracker: tracker, client: client, logger: logger}
}

// Remaining exposes the tracker's view for menu rendering.
func (b *Broker) Remaining(ctx context.Context, userID int64) (int, error) {
	return b.tracker.Remaining(ctx, userID)
}

// Ceiling returns the configured per-user maximum.
func (b *Broker) Ceiling() int {
	return b.tracker.Ceiling()
}

// Ask runs one advisory round. The capacity check here is the true gate:
// earlier checks in the flow may be stale by the time the user's question
// arrives, and quota must be decided immediately before network resources
// are spent. Only a successful round writes a history row; transport
// failures never consume quota.
func (b *Broker) Ask(ctx context.Context, userID int64, question string) (string, error) {
	requestID := uuid.NewString()
	log := b.logger.With(zap.String("request_id", requestID), zap.Int64("user_id", userID))

	ok, err := b.tracker.HasCapacity(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("quota check failed: %w", err)
	}
	if !ok {
		log.Info("advisory request rejected, quota exhausted")
		return "", quota.ErrExhausted
	}

	profile, err := b.store.Profile(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("profile load failed: %w", err)
	}

	userTurn := question
	if block := ContextBlock(profile); block != "" {
		userTurn = block + "\n\nВопрос: " + question
	}

	log.Info("advisory round started", zap.Int("question_len", len(question)))
	answer, err := b.client.Advise(ctx, systemDirective, userTurn)
	if err != nil {
		log.Warn("advisory round failed", zap.Error(err))
		return "", err
	}

	if err := b.store.AddAdvisoryRequest(ctx, userID, question, answer); err != nil {
		return "", fmt.Errorf("failed to record advisory round: %w", err)
	}

	log.Info("advisory round completed", zap.Int("answer_len", len(answer)))
	return answer, nil
}

// ContextBlock renders the stored profile as the prompt context. Fields
// appear in a fixed order and absent fields are omitted entirely.
func ContextBlock(profile *types.Profile) string {
	if profile == nil {
		return ""
	}

	var parts []string
	if profile.Weight != nil {
		parts = append(parts, fmt.Sprintf("Текущий вес: %s кг", types.FormatFloat(*profile.Weight)))
	}
	if profile.Height != nil {
		parts = append(parts, fmt.Sprintf("Рост: %d см", *profile.Height))
	}
	if profile.Age != nil {
		parts = append(parts, fmt.Sprintf("Возраст: %d лет", *profile.Age))
	}
	if profile.Goal != nil {
		parts = append(parts, fmt.Sprintf("Цель: %s", *profile.Goal))
	}
	if profile.TargetWeight != nil {
		parts = append(parts, fmt.Sprintf("Целевой вес: %s кг", types.FormatFloat(*profile.TargetWeight)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Данные пользователя:\n" + strings.Join(parts, "\n")
}
