package bot

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dietbot/internal/access"
	"dietbot/internal/conversation"
	"dietbot/internal/llm"
	"dietbot/internal/quota"
	"dietbot/internal/types"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		data   string
		prefix string
		want   int64
		ok     bool
	}{
		{"approve_123", "approve_", 123, true},
		{"revoke_42", "revoke_", 42, true},
		{"user_987654321", "user_", 987654321, true},
		{"user_menu", "user_", 0, false},
		{"approve_", "approve_", 0, false},
		{"approve_abc", "approve_", 0, false},
		{"other", "approve_", 0, false},
	}
	for _, tt := range tests {
		id, ok := parseRef(tt.data, tt.prefix)
		assert.Equal(t, tt.ok, ok, tt.data)
		assert.Equal(t, tt.want, id, tt.data)
	}
}

func TestDialogueTargetsCoverAllFields(t *testing.T) {
	want := map[string]conversation.State{
		"add_weight":        conversation.StateAwaitingWeight,
		"add_height":        conversation.StateAwaitingHeight,
		"add_age":           conversation.StateAwaitingAge,
		"add_goal":          conversation.StateAwaitingGoal,
		"add_target_weight": conversation.StateAwaitingTargetWeight,
		"add_workout":       conversation.StateAwaitingWorkout,
		"ask_ai":            conversation.StateAwaitingQuestion,
	}
	assert.Equal(t, want, dialogueTargets)
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"denied", access.ErrDenied, "❌ Доступ запрещен"},
		{"exhausted", quota.ErrExhausted, "❌ Вы исчерпали лимит запросов"},
		{"timeout", &llm.Error{Kind: llm.KindTimeout, Err: errors.New("t")}, "⏳ Сервис отвечает слишком долго.\nПопробуйте еще раз позже."},
		{"rate limited", &llm.Error{Kind: llm.KindRateLimited, Err: errors.New("r")}, "⏳ Сервис перегружен.\nПопробуйте еще раз через минуту."},
		{"auth", &llm.Error{Kind: llm.KindAuth, Err: errors.New("a")}, "❌ Сервис рекомендаций временно недоступен."},
		{"malformed", &llm.Error{Kind: llm.KindMalformed, Err: errors.New("m")}, "❌ Не удалось получить ответ.\nПопробуйте переформулировать вопрос."},
		{"generic", errors.New("boom"), "❌ Ошибка при обработке запроса.\nПопробуйте еще раз позже."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorText(tt.err))
		})
	}
}

func TestQuestionLengthOK(t *testing.T) {
	assert.False(t, questionLengthOK("коротко"))
	assert.True(t, questionLengthOK("  Что мне есть на ужин?  "))
	assert.True(t, questionLengthOK("十十十十十十十十十十"), "10 runes is the lower boundary")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "короткий", truncateRunes("короткий", 50))

	long := ""
	for i := 0; i < 60; i++ {
		long += "я"
	}
	got := truncateRunes(long, 50)
	assert.Len(t, []rune(got), 53, "50 runes plus ellipsis")
	assert.True(t, len(got) > 0)
}

func TestIdentityLocks_SerializePerIdentity(t *testing.T) {
	locks := newIdentityLocks()

	var mu sync.Mutex
	active := map[int64]int{}
	maxActive := map[int64]int{}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, id := range []int64{1, 2} {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				release := locks.acquire(id)
				defer release()

				mu.Lock()
				active[id]++
				if active[id] > maxActive[id] {
					maxActive[id] = active[id]
				}
				mu.Unlock()

				mu.Lock()
				active[id]--
				mu.Unlock()
			}(id)
		}
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive[1], "same identity must never run concurrently")
	assert.Equal(t, 1, maxActive[2])
}

func TestUserActionKeyboardFlipsOnAccess(t *testing.T) {
	granted := userActionKeyboard(42, true)
	require.Len(t, granted.InlineKeyboard, 2)
	assert.Equal(t, "revoke_42", *granted.InlineKeyboard[0][0].CallbackData)

	pending := userActionKeyboard(42, false)
	assert.Equal(t, "approve_42", *pending.InlineKeyboard[0][0].CallbackData)
}

func TestDietAIMenuHidesAskWhenExhausted(t *testing.T) {
	open := dietAIMenu(true)
	require.Len(t, open.InlineKeyboard, 3)
	assert.Equal(t, "ask_ai", *open.InlineKeyboard[0][0].CallbackData)

	closed := dietAIMenu(false)
	require.Len(t, closed.InlineKeyboard, 2)
	assert.Equal(t, "ai_history", *closed.InlineKeyboard[0][0].CallbackData)
}

func TestPendingUsersKeyboard(t *testing.T) {
	users := []types.User{
		{ID: 7, Username: "alice"},
		{ID: 8},
	}
	markup := pendingUsersKeyboard(users)
	require.Len(t, markup.InlineKeyboard, 3)

	assert.Equal(t, "👤 @alice", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "user_7", *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "👤 ID: 8", markup.InlineKeyboard[1][0].Text)
	assert.Equal(t, "user_8", *markup.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "admin_panel", *markup.InlineKeyboard[2][0].CallbackData)
}

func TestMarkupFor(t *testing.T) {
	assert.Nil(t, markupFor(conversation.MenuNone))

	userData := markupFor(conversation.MenuUserData)
	require.NotNil(t, userData)
	assert.Equal(t, "add_weight", *userData.InlineKeyboard[0][0].CallbackData)

	admin := markupFor(conversation.MenuAdmin)
	require.NotNil(t, admin)
	assert.Equal(t, "pending_users", *admin.InlineKeyboard[0][0].CallbackData)
}
