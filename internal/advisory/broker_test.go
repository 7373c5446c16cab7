package advisory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dietbot/internal/llm"
	"dietbot/internal/quota"
	"dietbot/internal/store"
	"dietbot/internal/types"
)

// fakeClient scripts the provider response for one round.
type fakeClient struct {
	answer     string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeClient) Advise(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func newTestBroker(t *testing.T, ceiling int, client llm.Client) (*Broker, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureUser(context.Background(), 1, ""))

	return NewBroker(st, quota.NewTracker(st, ceiling), client, nil), st
}

func TestAsk_SuccessRecordsHistory(t *testing.T) {
	client := &fakeClient{answer: "Сократите быстрые углеводы."}
	broker, st := newTestBroker(t, 3, client)
	ctx := context.Background()

	answer, err := broker.Ask(ctx, 1, "Как мне похудеть к лету?")
	require.NoError(t, err)
	assert.Equal(t, "Сократите быстрые углеводы.", answer)
	assert.Equal(t, 1, client.calls)
	assert.Contains(t, client.lastSystem, "диетолог")

	history, err := st.AdvisoryHistory(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Как мне похудеть к лету?", history[0].Question)
	assert.Equal(t, "Сократите быстрые углеводы.", history[0].Response)

	remaining, err := broker.Remaining(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestAsk_ContextBlockFromProfile(t *testing.T) {
	client := &fakeClient{answer: "ok"}
	broker, st := newTestBroker(t, 3, client)
	ctx := context.Background()

	require.NoError(t, st.UpdateProfile(ctx, 1, types.ProfileUpdate{Weight: types.Float64(82.5)}))
	require.NoError(t, st.UpdateProfile(ctx, 1, types.ProfileUpdate{Goal: types.String("похудеть")}))

	_, err := broker.Ask(ctx, 1, "Сколько калорий мне нужно?")
	require.NoError(t, err)

	assert.Contains(t, client.lastUser, "Текущий вес: 82.5 кг")
	assert.Contains(t, client.lastUser, "Цель: похудеть")
	assert.Contains(t, client.lastUser, "Вопрос: Сколько калорий мне нужно?")
	assert.NotContains(t, client.lastUser, "Рост", "absent fields must be omitted")
}

func TestAsk_NoProfileSendsBareQuestion(t *testing.T) {
	client := &fakeClient{answer: "ok"}
	broker, _ := newTestBroker(t, 3, client)

	_, err := broker.Ask(context.Background(), 1, "Что есть перед тренировкой?")
	require.NoError(t, err)
	assert.Equal(t, "Что есть перед тренировкой?", client.lastUser)
}

func TestAsk_QuotaExhausted(t *testing.T) {
	client := &fakeClient{answer: "ответ"}
	broker, st := newTestBroker(t, 2, client)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := broker.Ask(ctx, 1, "Очередной вопрос о питании")
		require.NoError(t, err)
	}

	_, err := broker.Ask(ctx, 1, "Еще один вопрос о питании")
	require.ErrorIs(t, err, quota.ErrExhausted)
	assert.Equal(t, 2, client.calls, "an exhausted round must not reach the provider")

	n, err := st.AdvisoryRequestCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "a rejected round must not create a history row")
}

func TestAsk_TransportFailureLeavesQuotaUntouched(t *testing.T) {
	client := &fakeClient{err: &llm.Error{Kind: llm.KindTimeout, Err: errors.New("deadline")}}
	broker, st := newTestBroker(t, 3, client)
	ctx := context.Background()

	_, err := broker.Ask(ctx, 1, "Вопрос, который не доедет")
	require.Error(t, err)

	var llmErr *llm.Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.KindTimeout, llmErr.Kind)

	n, err := st.AdvisoryRequestCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a failed call must never consume quota")

	remaining, _ := broker.Remaining(ctx, 1)
	assert.Equal(t, 3, remaining)
}

func TestContextBlock(t *testing.T) {
	assert.Equal(t, "", ContextBlock(nil))
	assert.Equal(t, "", ContextBlock(&types.Profile{}))

	profile := &types.Profile{
		Weight:       types.Float64(82.5),
		Height:       types.Int(180),
		Age:          types.Int(30),
		Goal:         types.String("набрать массу"),
		TargetWeight: types.Float64(90),
	}
	block := ContextBlock(profile)
	assert.Equal(t,
		"Данные пользователя:\n"+
			"Текущий вес: 82.5 кг\n"+
			"Рост: 180 см\n"+
			"Возраст: 30 лет\n"+
			"Цель: набрать массу\n"+
			"Целевой вес: 90 кг",
		block)
}
