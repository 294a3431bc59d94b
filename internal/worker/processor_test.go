package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flare-signals/signal-engine/internal/evaluator"
	"github.com/flare-signals/signal-engine/internal/fetcher"
	"github.com/flare-signals/signal-engine/internal/notifier"
	"github.com/flare-signals/signal-engine/internal/queue"
	"github.com/flare-signals/signal-engine/internal/registry"
	"github.com/flare-signals/signal-engine/internal/signaldsl"
	"github.com/flare-signals/signal-engine/internal/store"
)

// stubFetcher returns a fixed state reading per chain, ignoring filters and
// field (every test signal reads a single field).
type stubFetcher struct {
	state map[int64]float64
}

func (f *stubFetcher) FetchState(_ context.Context, chainID int64, _ string, _ []signaldsl.Filter, _ string, _ time.Time) (float64, error) {
	return f.state[chainID], nil
}

func (f *stubFetcher) FetchEvents(_ context.Context, _ int64, _ string, _ []signaldsl.Filter, _ string, _ signaldsl.Aggregation, _, _ time.Time) (float64, error) {
	return 0, nil
}

func testDefinition(id string, chains []int64, threshold float64) *signaldsl.SignalDefinition {
	return &signaldsl.SignalDefinition{
		ID:              id,
		Name:            "supply above threshold",
		Protocol:        registry.MorphoBlue,
		Chains:          chains,
		WindowDuration:  "1h",
		WebhookURL:      "http://example.invalid/hook",
		CooldownMinutes: 30,
		IsActive:        true,
		Condition: &signaldsl.Condition{
			Left:     &signaldsl.Expr{Kind: signaldsl.ExprState, EntityType: "market", Field: "total_supply_assets", Snapshot: "current"},
			Operator: signaldsl.OpGT,
			Right:    &signaldsl.Expr{Kind: signaldsl.ExprConstant, Value: threshold},
		},
	}
}

// notifierForTest builds a Notifier with a short timeout for tests that
// never expect it to be invoked on a live server.
func notifierForTest() *notifier.Notifier {
	return notifier.New("", 0, time.Second)
}

func newTestProcessor(st store.Store, f fetcher.Fetcher, notif *notifier.Notifier) *Processor {
	fetchers := map[string]fetcher.Fetcher{registry.MorphoBlue: f}
	registries := map[string]*registry.Registry{registry.MorphoBlue: registry.NewMorphoRegistry()}
	return NewProcessor(st, fetchers, registries, evaluator.New(nil), notif, NewCompiledCache(), Config{}, nil)
}

func TestProcessor_TriggersAndDispatchesWebhook(t *testing.T) {
	var receivedPayload notifier.Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&receivedPayload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	st := store.NewMemStore()
	def := testDefinition("sig-1", []int64{1, 8453}, 100)
	def.WebhookURL = server.URL
	st.Put(def)

	f := &stubFetcher{state: map[int64]float64{1: 500, 8453: 10}}
	notif := notifier.New("", 0, time.Second)
	p := newTestProcessor(st, f, notif)

	err := p.ProcessJob(context.Background(), queue.Job{SignalID: "sig-1"})
	require.NoError(t, err)

	assert.Equal(t, "sig-1", receivedPayload.SignalID)
	assert.Equal(t, []int64{1}, receivedPayload.Scope.Chains)
	require.Len(t, receivedPayload.ConditionsMet, 1)
	assert.True(t, receivedPayload.ConditionsMet[0].Passed)

	updated, err := st.LoadSignal(context.Background(), "sig-1")
	require.NoError(t, err)
	require.NotNil(t, updated.LastTriggeredAt)
}

func TestProcessor_NoChainTriggersMarksEvaluatedOnly(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	st := store.NewMemStore()
	def := testDefinition("sig-1", []int64{1}, 1000)
	def.WebhookURL = server.URL
	st.Put(def)

	f := &stubFetcher{state: map[int64]float64{1: 5}}
	notif := notifier.New("", 0, time.Second)
	p := newTestProcessor(st, f, notif)

	err := p.ProcessJob(context.Background(), queue.Job{SignalID: "sig-1"})
	require.NoError(t, err)
	assert.False(t, called)

	updated, err := st.LoadSignal(context.Background(), "sig-1")
	require.NoError(t, err)
	assert.Nil(t, updated.LastTriggeredAt)
	require.NotNil(t, updated.LastEvaluatedAt)
}

func TestProcessor_CooldownSkipsEvaluation(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	st := store.NewMemStore()
	def := testDefinition("sig-1", []int64{1}, 100)
	def.WebhookURL = server.URL
	recent := time.Now().Add(-time.Minute)
	def.LastTriggeredAt = &recent
	st.Put(def)

	f := &stubFetcher{state: map[int64]float64{1: 500}}
	notif := notifier.New("", 0, time.Second)
	p := newTestProcessor(st, f, notif)

	err := p.ProcessJob(context.Background(), queue.Job{SignalID: "sig-1"})
	require.NoError(t, err)
	assert.False(t, called, "cooldown should have skipped evaluation entirely")
}

func TestProcessor_MissingSignalIsDroppedSilently(t *testing.T) {
	st := store.NewMemStore()
	f := &stubFetcher{}
	notif := notifier.New("", 0, time.Second)
	p := newTestProcessor(st, f, notif)

	err := p.ProcessJob(context.Background(), queue.Job{SignalID: "does-not-exist"})
	require.NoError(t, err)
}

func TestProcessor_InactiveSignalIsDroppedSilently(t *testing.T) {
	st := store.NewMemStore()
	def := testDefinition("sig-1", []int64{1}, 100)
	def.IsActive = false
	st.Put(def)

	f := &stubFetcher{state: map[int64]float64{1: 500}}
	notif := notifier.New("", 0, time.Second)
	p := newTestProcessor(st, f, notif)

	err := p.ProcessJob(context.Background(), queue.Job{SignalID: "sig-1"})
	require.NoError(t, err)
}

func TestProcessor_TriggerCommittedEvenWhenNotifierFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	st := store.NewMemStore()
	def := testDefinition("sig-1", []int64{1}, 100)
	def.WebhookURL = server.URL
	st.Put(def)

	f := &stubFetcher{state: map[int64]float64{1: 500}}
	notif := notifier.New("", 1, time.Second)
	p := newTestProcessor(st, f, notif)

	err := p.ProcessJob(context.Background(), queue.Job{SignalID: "sig-1"})
	require.NoError(t, err, "delivery failure must not surface as a processing error")

	updated, err := st.LoadSignal(context.Background(), "sig-1")
	require.NoError(t, err)
	require.NotNil(t, updated.LastTriggeredAt, "trigger timestamp must be committed before dispatch is attempted")
}

func TestProcessor_CompiledCacheReusedAcrossCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	st := store.NewMemStore()
	def := testDefinition("sig-1", []int64{1}, 1000)
	def.WebhookURL = server.URL
	st.Put(def)

	f := &stubFetcher{state: map[int64]float64{1: 5}}
	notif := notifier.New("", 0, time.Second)
	cache := NewCompiledCache()
	p := NewProcessor(
		st,
		map[string]fetcher.Fetcher{registry.MorphoBlue: f},
		map[string]*registry.Registry{registry.MorphoBlue: registry.NewMorphoRegistry()},
		evaluator.New(nil), notif, cache, Config{}, nil,
	)

	require.NoError(t, p.ProcessJob(context.Background(), queue.Job{SignalID: "sig-1"}))

	reloaded, err := st.LoadSignal(context.Background(), "sig-1")
	require.NoError(t, err)
	first, err := cache.GetOrCompile(reloaded, registry.NewMorphoRegistry())
	require.NoError(t, err)

	require.NoError(t, p.ProcessJob(context.Background(), queue.Job{SignalID: "sig-1"}))
	second, err := cache.GetOrCompile(reloaded, registry.NewMorphoRegistry())
	require.NoError(t, err)

	assert.Same(t, first, second, "unchanged definition hash must reuse the cached compiled form")
}
