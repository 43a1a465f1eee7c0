package engine

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"fx-signal-bot/internal/store"
	"fx-signal-bot/internal/types"

	"github.com/pkg/errors"
)

type memPersister struct{}

func (memPersister) Load(v interface{}) error { return nil }
func (memPersister) Save(v interface{}) error { return nil }

// scriptedSampler returns a fixed sequence of prices per symbol and counts
// how often each symbol is fetched.
type scriptedSampler struct {
	mu       sync.Mutex
	sequence map[types.Symbol][]float64
	failing  map[types.Symbol]bool
	fetches  map[types.Symbol]int
}

func newScriptedSampler() *scriptedSampler {
	return &scriptedSampler{
		sequence: make(map[types.Symbol][]float64),
		failing:  make(map[types.Symbol]bool),
		fetches:  make(map[types.Symbol]int),
	}
}

func (s *scriptedSampler) Fetch(symbol types.Symbol) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches[symbol]++
	if s.failing[symbol] {
		return 0, errors.New("source down")
	}
	seq := s.sequence[symbol]
	if len(seq) == 0 {
		return 0, errors.New("no more scripted prices")
	}
	price := seq[0]
	if len(seq) > 1 {
		s.sequence[symbol] = seq[1:]
	}
	return price, nil
}

func (s *scriptedSampler) count(symbol types.Symbol) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[symbol]
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) NotifyTrigger(userID string, symbol types.Symbol, target, current float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, userID+"/"+string(symbol))
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func newTestStore(t *testing.T) *store.AlertStore {
	t.Helper()
	s, err := store.NewAlertStore(memPersister{})
	if err != nil {
		t.Fatalf("could not build store: %v", err)
	}
	return s
}

// seededPersister loads a canned JSON document, the way a hand-edited or
// legacy state file would arrive.
type seededPersister struct{ data []byte }

func (p seededPersister) Load(v interface{}) error {
	if p.data == nil {
		return nil
	}
	return json.Unmarshal(p.data, v)
}
func (seededPersister) Save(interface{}) error { return nil }

func TestStartStopHaltsCycleLoop(t *testing.T) {
	alerts := newTestStore(t)
	if _, err := alerts.Add("1", types.SymbolBTCUSD, 70000, time.Now()); err != nil {
		t.Fatalf("could not add alert: %v", err)
	}

	sampler := newScriptedSampler()
	sampler.sequence[types.SymbolBTCUSD] = []float64{65000}
	notifier := &recordingNotifier{}
	e := New(alerts, sampler, notifier)
	e.InitialDelay = 0
	e.Interval = time.Millisecond

	// Rapid churn: each Stop must fully retire the loop its Start launched.
	for i := 0; i < 25; i++ {
		e.Start()
		e.Stop()
	}

	e.Start()
	deadline := time.Now().Add(2 * time.Second)
	for sampler.count(types.SymbolBTCUSD) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sampler.count(types.SymbolBTCUSD) == 0 {
		t.Fatal("expected the loop to run at least one cycle")
	}
	e.Stop()

	settled := sampler.count(types.SymbolBTCUSD)
	time.Sleep(20 * e.Interval)
	if got := sampler.count(types.SymbolBTCUSD); got != settled {
		t.Fatalf("cycle ran after Stop returned: %d fetches, was %d", got, settled)
	}

	// A second Stop without a matching Start is a no-op.
	e.Stop()
}

func TestCycleIgnoresEmptySymbolEntries(t *testing.T) {
	alerts, err := store.NewAlertStore(seededPersister{
		data: []byte(`{"1":{"BTCUSD":[]},"2":{"GBPJPY":[{"id":"a","target_price":196,"created_at":"2026-03-01 12:00:00","last_price":null}]}}`),
	})
	if err != nil {
		t.Fatalf("could not load seeded store: %v", err)
	}

	sampler := newScriptedSampler()
	sampler.sequence[types.SymbolGBPJPY] = []float64{195}
	notifier := &recordingNotifier{}
	e := New(alerts, sampler, notifier)

	e.RunCycle()
	e.Stop()

	if got := sampler.count(types.SymbolBTCUSD); got != 0 {
		t.Fatalf("expected no fetch for a symbol with no pending alerts, got %d", got)
	}
	if got := sampler.count(types.SymbolGBPJPY); got != 1 {
		t.Fatalf("expected one GBPJPY fetch, got %d", got)
	}
}

func TestCycleScenarioTriggersOnce(t *testing.T) {
	alerts := newTestStore(t)
	if _, err := alerts.Add("7", types.SymbolXAUUSD, 3020.00, time.Now()); err != nil {
		t.Fatalf("could not add alert: %v", err)
	}

	sampler := newScriptedSampler()
	sampler.sequence[types.SymbolXAUUSD] = []float64{3018, 3021, 3025, 3030}
	notifier := &recordingNotifier{}
	e := New(alerts, sampler, notifier)

	// Cycle 1 establishes the baseline, no trigger.
	e.RunCycle()
	pending := alerts.ListByUser("7")[types.SymbolXAUUSD]
	if len(pending) != 1 {
		t.Fatalf("expected alert to survive the first cycle, got %d", len(pending))
	}
	if pending[0].LastPrice == nil || *pending[0].LastPrice != 3018 {
		t.Fatalf("expected last price 3018, got %v", pending[0].LastPrice)
	}

	// Cycle 2: 3020 lies between 3018 and 3021, trigger and remove.
	// Further cycles must not re-trigger a consumed alert.
	e.RunCycle()
	e.RunCycle()
	e.RunCycle()
	e.Stop()

	if got := notifier.count(); got != 1 {
		t.Fatalf("expected exactly one notification, got %d", got)
	}
	if remaining := alerts.ListByUser("7"); len(remaining[types.SymbolXAUUSD]) != 0 {
		t.Fatalf("expected triggered alert to be removed, got %+v", remaining)
	}
}

func TestCycleSamplesEachSymbolOnce(t *testing.T) {
	alerts := newTestStore(t)
	for _, target := range []float64{70000, 80000, 90000} {
		if _, err := alerts.Add("1", types.SymbolBTCUSD, target, time.Now()); err != nil {
			t.Fatalf("could not add alert: %v", err)
		}
	}
	if _, err := alerts.Add("2", types.SymbolBTCUSD, 75000, time.Now()); err != nil {
		t.Fatalf("could not add alert: %v", err)
	}
	if _, err := alerts.Add("2", types.SymbolGBPJPY, 196, time.Now()); err != nil {
		t.Fatalf("could not add alert: %v", err)
	}

	sampler := newScriptedSampler()
	// Distinct values per call: if the engine fetched per alert instead of
	// per symbol, alerts on the same symbol would observe different prices.
	sampler.sequence[types.SymbolBTCUSD] = []float64{65000, 66000, 67000, 68000}
	sampler.sequence[types.SymbolGBPJPY] = []float64{195}
	notifier := &recordingNotifier{}
	e := New(alerts, sampler, notifier)

	e.RunCycle()
	e.Stop()

	if got := sampler.count(types.SymbolBTCUSD); got != 1 {
		t.Fatalf("expected one BTCUSD fetch for the cycle, got %d", got)
	}
	if got := sampler.count(types.SymbolGBPJPY); got != 1 {
		t.Fatalf("expected one GBPJPY fetch for the cycle, got %d", got)
	}

	for _, userID := range []string{"1", "2"} {
		for _, alert := range alerts.ListByUser(userID)[types.SymbolBTCUSD] {
			if alert.LastPrice == nil || *alert.LastPrice != 65000 {
				t.Fatalf("alert for user %s saw %v, want the cycle's single sample 65000", userID, alert.LastPrice)
			}
		}
	}
}

func TestCycleSkipsUnavailableSymbols(t *testing.T) {
	alerts := newTestStore(t)
	if _, err := alerts.Add("1", types.SymbolBTCUSD, 70000, time.Now()); err != nil {
		t.Fatalf("could not add alert: %v", err)
	}

	sampler := newScriptedSampler()
	sampler.failing[types.SymbolBTCUSD] = true
	notifier := &recordingNotifier{}
	e := New(alerts, sampler, notifier)

	e.RunCycle()
	e.Stop()

	pending := alerts.ListByUser("1")[types.SymbolBTCUSD]
	if len(pending) != 1 {
		t.Fatalf("expected alert untouched, got %d alerts", len(pending))
	}
	if pending[0].LastPrice != nil {
		t.Fatalf("expected no last price mutation on an unavailable symbol, got %v", *pending[0].LastPrice)
	}
	if notifier.count() != 0 {
		t.Fatalf("expected no notifications for an unavailable symbol")
	}
}

func TestFirstObservationOnTargetDoesNotTrigger(t *testing.T) {
	alerts := newTestStore(t)
	if _, err := alerts.Add("1", types.SymbolGBPJPY, 195.50, time.Now()); err != nil {
		t.Fatalf("could not add alert: %v", err)
	}

	sampler := newScriptedSampler()
	sampler.sequence[types.SymbolGBPJPY] = []float64{195.50}
	notifier := &recordingNotifier{}
	e := New(alerts, sampler, notifier)

	e.RunCycle()
	e.Stop()

	if notifier.count() != 0 {
		t.Fatal("first observation must never trigger, even exactly on target")
	}
	pending := alerts.ListByUser("1")[types.SymbolGBPJPY]
	if len(pending) != 1 || pending[0].LastPrice == nil || *pending[0].LastPrice != 195.50 {
		t.Fatalf("expected baseline recorded, got %+v", pending)
	}

	// The very next cycle at the same price is a degenerate zero-movement
	// crossing and does trigger.
	e.RunCycle()
	e.Stop()
	if notifier.count() != 1 {
		t.Fatalf("expected the zero-movement crossing to trigger, got %d notifications", notifier.count())
	}
}
