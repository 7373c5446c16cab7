// Package conversation drives the per-identity dialogue state machine.
// State lives in the store's sessions table, so a prompt that was shown
// before a restart still accepts its answer after one. The engine owns
// parsing, validation and the single-field commit; rendering and
// keyboards stay with the transport.
package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"dietbot/internal/access"
	"dietbot/internal/advisory"
	"dietbot/internal/quota"
	"dietbot/internal/store"
	"dietbot/internal/types"
)

// State names a position in the dialogue. The zero value is not valid;
// an absent sessions row reads as Idle.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingWeight       State = "awaiting_weight"
	StateAwaitingHeight       State = "awaiting_height"
	StateAwaitingAge          State = "awaiting_age"
	StateAwaitingGoal         State = "awaiting_goal"
	StateAwaitingTargetWeight State = "awaiting_target_weight"
	StateAwaitingWorkout      State = "awaiting_workout"
	StateAwaitingQuestion     State = "awaiting_question"
)

func (s State) awaiting() bool {
	switch s {
	case StateAwaitingWeight, StateAwaitingHeight, StateAwaitingAge,
		StateAwaitingGoal, StateAwaitingTargetWeight, StateAwaitingWorkout,
		StateAwaitingQuestion:
		return true
	}
	return false
}

// Menu tells the transport which predefined keyboard to attach.
type Menu int

const (
	MenuNone Menu = iota
	MenuMain
	MenuUser
	MenuAdmin
	MenuUserData
	MenuDietAI
	MenuDietAIExhausted
)

// Reply is what the engine hands back to the transport for rendering.
type Reply struct {
	Text string
	Menu Menu
}

// ValidationError marks user input the current state cannot accept. The
// engine resolves it internally by re-prompting; it never crosses the
// package boundary out of HandleText.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

var prompts = map[State]string{
	StateAwaitingWeight: "⚖️ Введите ваш текущий вес в килограммах:\n\n" +
		"Например: 75.5",
	StateAwaitingHeight: "📏 Введите ваш рост в сантиметрах:\n\n" +
		"Например: 175",
	StateAwaitingAge: "🎂 Введите ваш возраст в годах:\n\n" +
		"Например: 25",
	StateAwaitingGoal: "🎯 Введите вашу цель:\n\n" +
		"Например:\n" +
		"• Набрать мышечную массу\n" +
		"• Похудеть\n" +
		"• Поддерживать форму\n" +
		"• Набрать вес",
	StateAwaitingTargetWeight: "🎯 Введите ваш целевой вес в килограммах:\n\n" +
		"Например: 80",
	StateAwaitingWorkout: "💪 Введите данные о тренировке:\n\n" +
		"Формат: упражнение - вес - повторения\n\n" +
		"Например:\n" +
		"Жим лежа - 80 кг - 8 повторений\n" +
		"Приседания - 100 кг - 10 повторений",
	StateAwaitingQuestion: "🤖 Задайте ваш вопрос ИИ-диетологу:\n\n" +
		"Например:\n" +
		"• Какой рацион мне подходит для набора массы?\n" +
		"• Сколько калорий мне нужно потреблять?\n" +
		"• Какие продукты лучше есть перед тренировкой?\n\n" +
		"Напишите ваш вопрос:",
}

// Engine runs dialogues for all identities against shared storage.
type Engine struct {
	store  *store.Store
	gate   *access.Gate
	broker *advisory.Broker
	logger *zap.Logger
}

// NewEngine creates a conversation engine.
func NewEngine(st *store.Store, gate *access.Gate, broker *advisory.Broker, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: st, gate: gate, broker: broker, logger: logger}
}

// State returns the persisted dialogue position for an identity.
func (e *Engine) State(ctx context.Context, userID int64) (State, error) {
	raw, err := e.store.ConversationState(ctx, userID)
	if err != nil {
		return StateIdle, err
	}
	if raw == "" {
		return StateIdle, nil
	}
	return State(raw), nil
}

// Start enters an awaiting state and returns its prompt. The access
// guard runs first; a denied identity gets access.ErrDenied and its
// existing state stays untouched. Starting a question dialogue also
// requires remaining quota. Starting over an abandoned prompt simply
// replaces it; there is never uncommitted data to lose.
func (e *Engine) Start(ctx context.Context, userID int64, username string, target State) (Reply, error) {
	if !target.awaiting() {
		return Reply{}, fmt.Errorf("cannot start dialogue in state %q", target)
	}

	ok, err := e.gate.Check(ctx, userID, username)
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return Reply{}, access.ErrDenied
	}

	if target == StateAwaitingQuestion {
		remaining, err := e.broker.Remaining(ctx, userID)
		if err != nil {
			return Reply{}, err
		}
		if remaining <= 0 {
			return Reply{}, quota.ErrExhausted
		}
	}

	if err := e.store.SetConversationState(ctx, userID, string(target)); err != nil {
		return Reply{}, err
	}
	return Reply{Text: prompts[target]}, nil
}

// Cancel drops any pending prompt and returns to Idle. Committed fields
// are never rolled back.
func (e *Engine) Cancel(ctx context.Context, userID int64) (Reply, error) {
	if err := e.store.ClearConversationState(ctx, userID); err != nil {
		return Reply{}, err
	}
	menu := MenuUser
	if e.gate.IsAdmin(userID) {
		menu = MenuAdmin
	}
	return Reply{Text: "❌ Действие отменено\n\nВыберите действие:", Menu: menu}, nil
}

// HandleText feeds a free-text message into the current state. In Idle
// the message is ignored (empty Reply). In an awaiting state invalid
// input re-prompts in place without committing anything; valid input
// commits exactly one field (or appends one workout row, or runs one
// advisory round) and returns to Idle.
func (e *Engine) HandleText(ctx context.Context, userID int64, username, text string) (Reply, error) {
	state, err := e.State(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if state == StateIdle {
		return Reply{}, nil
	}

	ok, err := e.gate.Check(ctx, userID, username)
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		// A revocation mid-dialogue abandons the prompt.
		if err := e.store.ClearConversationState(ctx, userID); err != nil {
			e.logger.Warn("failed to clear state after revocation", zap.Int64("user_id", userID), zap.Error(err))
		}
		return Reply{}, access.ErrDenied
	}

	switch state {
	case StateAwaitingWeight:
		v, err := parseWeight(text, "веса", "75.5")
		if err != nil {
			return e.reprompt(err)
		}
		return e.commitField(ctx, userID, types.ProfileUpdate{Weight: &v},
			fmt.Sprintf("✅ Вес сохранен: %s кг", types.FormatFloat(v)))

	case StateAwaitingHeight:
		v, err := parseHeight(text)
		if err != nil {
			return e.reprompt(err)
		}
		return e.commitField(ctx, userID, types.ProfileUpdate{Height: &v},
			fmt.Sprintf("✅ Рост сохранен: %d см", v))

	case StateAwaitingAge:
		v, err := parseAge(text)
		if err != nil {
			return e.reprompt(err)
		}
		return e.commitField(ctx, userID, types.ProfileUpdate{Age: &v},
			fmt.Sprintf("✅ Возраст сохранен: %d лет", v))

	case StateAwaitingGoal:
		goal := strings.TrimSpace(text)
		if n := len([]rune(goal)); n < 3 || n > 200 {
			return e.reprompt(&ValidationError{"❌ Цель должна содержать от 3 до 200 символов.\nПопробуйте еще раз:"})
		}
		return e.commitField(ctx, userID, types.ProfileUpdate{Goal: &goal},
			fmt.Sprintf("✅ Цель сохранена: %s", goal))

	case StateAwaitingTargetWeight:
		v, err := parseWeight(text, "целевого веса", "80")
		if err != nil {
			return e.reprompt(err)
		}
		return e.commitField(ctx, userID, types.ProfileUpdate{TargetWeight: &v},
			fmt.Sprintf("✅ Целевой вес сохранен: %s кг", types.FormatFloat(v)))

	case StateAwaitingWorkout:
		return e.commitWorkout(ctx, userID, text)

	case StateAwaitingQuestion:
		return e.runQuestion(ctx, userID, text)
	}

	// Unknown persisted value, e.g. written by a newer build. Reset.
	e.logger.Warn("unknown conversation state, resetting", zap.Int64("user_id", userID), zap.String("state", string(state)))
	if err := e.store.ClearConversationState(ctx, userID); err != nil {
		return Reply{}, err
	}
	return Reply{}, nil
}

func (e *Engine) reprompt(err *ValidationError) (Reply, error) {
	return Reply{Text: err.Error()}, nil
}

func (e *Engine) commitField(ctx context.Context, userID int64, upd types.ProfileUpdate, confirmation string) (Reply, error) {
	if err := e.store.UpdateProfile(ctx, userID, upd); err != nil {
		return Reply{}, err
	}
	if err := e.store.ClearConversationState(ctx, userID); err != nil {
		return Reply{}, err
	}
	return Reply{Text: confirmation, Menu: MenuUserData}, nil
}

func (e *Engine) commitWorkout(ctx context.Context, userID int64, text string) (Reply, error) {
	data := strings.TrimSpace(text)
	if n := len([]rune(data)); n < 5 || n > 500 {
		return e.reprompt(&ValidationError{"❌ Данные о тренировке должны содержать от 5 до 500 символов.\nПопробуйте еще раз:"})
	}
	if err := e.store.AddWorkoutRecord(ctx, userID, data); err != nil {
		return Reply{}, err
	}
	if err := e.store.ClearConversationState(ctx, userID); err != nil {
		return Reply{}, err
	}
	return Reply{Text: "✅ Данные о тренировке сохранены", Menu: MenuUserData}, nil
}

// runQuestion resolves one advisory round. The state returns to Idle
// whenever the round resolves, success or failure, so the identity is
// never stuck re-answering a prompt that already spent its attempt.
// Validation failures are not a resolution and keep the prompt open.
func (e *Engine) runQuestion(ctx context.Context, userID int64, text string) (Reply, error) {
	question := strings.TrimSpace(text)
	if len([]rune(question)) < 10 {
		return e.reprompt(&ValidationError{"❌ Вопрос слишком короткий.\nПожалуйста, опишите ваш вопрос подробнее (минимум 10 символов):"})
	}
	if len([]rune(question)) > 1000 {
		return e.reprompt(&ValidationError{"❌ Вопрос слишком длинный.\nПожалуйста, сократите ваш вопрос (максимум 1000 символов):"})
	}

	answer, askErr := e.broker.Ask(ctx, userID, question)

	if err := e.store.ClearConversationState(ctx, userID); err != nil {
		e.logger.Warn("failed to clear state after advisory round", zap.Int64("user_id", userID), zap.Error(err))
	}
	if askErr != nil {
		return Reply{}, askErr
	}

	remaining, err := e.broker.Remaining(ctx, userID)
	if err != nil {
		return Reply{}, err
	}

	menu := MenuDietAI
	if remaining <= 0 {
		menu = MenuDietAIExhausted
	}
	textOut := fmt.Sprintf("🤖 Ответ ИИ-диетолога:\n\n%s\n\n📊 Осталось запросов: %d/%d",
		answer, remaining, e.broker.Ceiling())
	return Reply{Text: textOut, Menu: menu}, nil
}

func parseWeight(text, genitive, example string) (float64, *ValidationError) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, &ValidationError{fmt.Sprintf("❌ Некорректный формат.\nВведите число (например: %s):", example)}
	}
	if v <= 0 || v > 300 {
		return 0, &ValidationError{fmt.Sprintf("❌ Некорректное значение %s.\nВведите вес от 1 до 300 кг:", genitive)}
	}
	return v, nil
}

func parseHeight(text string) (int, *ValidationError) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, &ValidationError{"❌ Некорректный формат.\nВведите целое число (например: 175):"}
	}
	if v <= 0 || v > 250 {
		return 0, &ValidationError{"❌ Некорректное значение роста.\nВведите рост от 1 до 250 см:"}
	}
	return v, nil
}

func parseAge(text string) (int, *ValidationError) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, &ValidationError{"❌ Некорректный формат.\nВведите целое число (например: 25):"}
	}
	if v <= 0 || v > 120 {
		return 0, &ValidationError{"❌ Некорректное значение возраста.\nВведите возраст от 1 до 120 лет:"}
	}
	return v, nil
}
