package notifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"incidenbot/backend/internal/models"
	"incidenbot/backend/internal/notifier"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var acLeak = models.IncidentAnalysis{
	Category:       models.CategoryMaintenance,
	UrgencyLevel:   4,
	Sentiment:      models.SentimentNeutral,
	ActionSummary:  "AC leak",
	SuggestedReply: "...",
}

var bond = models.Tenant{Name: "James Bond", Room: "007"}

func TestSplitName(t *testing.T) {
	tests := []struct{ in, first, last string }{
		{"James Bond", "James", "Bond"},
		{"  Ana María  López ", "Ana", "María López"},
		{"Prince", "Prince", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := notifier.SplitName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}

func TestWebhookNotifier_PostsFlattenedPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := notifier.NewWebhookNotifier(srv.URL)
	n.Now = func() time.Time { return time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC) }

	err := n.Notify(context.Background(), acLeak, "Inquilino: James Bond, Habitación: 007. Mensaje: gotea", bond)

	require.NoError(t, err)
	assert.Equal(t, "Maintenance", got["category"])
	assert.Equal(t, float64(4), got["urgency_level"])
	assert.Equal(t, "AC leak", got["action_summary"])
	assert.Equal(t, "Inquilino: James Bond, Habitación: 007. Mensaje: gotea", got["original_message"])
	assert.Equal(t, "James Bond", got["tenant_name"])
	assert.Equal(t, "James", got["first_name"])
	assert.Equal(t, "Bond", got["last_name"])
	assert.Equal(t, "007", got["room"])
	assert.Equal(t, "2025-11-29T10:00:00.000Z", got["timestamp"])
	assert.Equal(t, "IncidenBot Web App", got["source"])
}

func TestWebhookNotifier_NonSuccessStatusIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := notifier.NewWebhookNotifier(srv.URL).Notify(context.Background(), acLeak, "msg", bond)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookNotifier_MissingURL(t *testing.T) {
	err := notifier.NewWebhookNotifier("").Notify(context.Background(), acLeak, "msg", bond)
	assert.Error(t, err)
}

type mockBot struct {
	mock.Mock
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func TestTelegramNotifier_SendsAboveThreshold(t *testing.T) {
	bot := new(mockBot)
	bot.On("Send", mock.AnythingOfType("tgbotapi.MessageConfig")).Return(nil)
	n := &notifier.TelegramNotifier{Bot: bot, ChatID: 42, MinUrgency: 4}

	err := n.Notify(context.Background(), acLeak, "gotea", bond)

	require.NoError(t, err)
	bot.AssertNumberOfCalls(t, "Send", 1)
	msg := bot.Calls[0].Arguments.Get(0).(tgbotapi.MessageConfig)
	assert.Equal(t, tgbotapi.ModeMarkdown, msg.ParseMode)
	assert.Contains(t, msg.Text, "Maintenance")
	assert.Contains(t, msg.Text, "(4/5)")
	assert.Contains(t, msg.Text, "007")
}

func TestTelegramNotifier_SkipsBelowThreshold(t *testing.T) {
	bot := new(mockBot)
	n := &notifier.TelegramNotifier{Bot: bot, ChatID: 42, MinUrgency: 5}

	err := n.Notify(context.Background(), acLeak, "gotea", bond)

	assert.NoError(t, err)
	bot.AssertNotCalled(t, "Send", mock.Anything)
}

func TestTelegramNotifier_WrapsSendError(t *testing.T) {
	bot := new(mockBot)
	bot.On("Send", mock.Anything).Return(errors.New("chat not found"))
	n := &notifier.TelegramNotifier{Bot: bot, ChatID: 42, MinUrgency: 1}

	err := n.Notify(context.Background(), acLeak, "gotea", bond)

	assert.ErrorContains(t, err, "telegram: chat not found")
}

type funcNotifier func(ctx context.Context) error

func (f funcNotifier) Notify(ctx context.Context, _ models.IncidentAnalysis, _ string, _ models.Tenant) error {
	return f(ctx)
}

func TestMulti_JoinsErrors(t *testing.T) {
	calls := 0
	ok := funcNotifier(func(context.Context) error { calls++; return nil })
	bad := funcNotifier(func(context.Context) error { calls++; return errors.New("boom") })

	err := notifier.Multi{ok, nil, bad}.Notify(context.Background(), acLeak, "m", bond)

	assert.Equal(t, 2, calls)
	assert.ErrorContains(t, err, "boom")
	assert.NoError(t, notifier.Multi{ok}.Notify(context.Background(), acLeak, "m", bond))
}

func TestDispatcher_ReturnsBeforeNotifierCompletes(t *testing.T) {
	release := make(chan struct{})
	slow := funcNotifier(func(context.Context) error {
		<-release
		return errors.New("webhook down")
	})

	var mu sync.Mutex
	var results []notifier.Result
	d := notifier.NewDispatcher(slow)
	d.Sink = func(r notifier.Result) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	}

	done := make(chan struct{})
	go func() {
		d.Dispatch(acLeak, "msg", bond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on the notifier")
	}

	close(release)
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	assert.EqualError(t, results[0].Err, "webhook down")
	assert.Equal(t, bond, results[0].Tenant)
}

func TestDispatcher_RecoversFromPanickingNotifier(t *testing.T) {
	var got notifier.Result
	d := notifier.NewDispatcher(funcNotifier(func(context.Context) error { panic("nil map") }))
	d.Sink = func(r notifier.Result) { got = r }

	d.Dispatch(acLeak, "msg", bond)
	d.Wait()

	assert.ErrorContains(t, got.Err, "nil map")
}

func TestDispatcher_NilNotifierIsNoop(t *testing.T) {
	d := notifier.NewDispatcher(nil)
	d.Dispatch(acLeak, "msg", bond)
	d.Wait()
}
