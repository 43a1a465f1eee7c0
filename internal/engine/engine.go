package engine

import (
	"sync"
	"time"

	"fx-signal-bot/internal/types"

	log "github.com/sirupsen/logrus"
)

const (
	defaultInterval     = 60 * time.Second
	defaultInitialDelay = 10 * time.Second
)

// Sampler produces one price per symbol per cycle.
type Sampler interface {
	Fetch(symbol types.Symbol) (float64, error)
}

// AlertSource is the store surface the engine needs: a stable snapshot to
// iterate, and a way to apply one pair's evaluation outcome atomically.
type AlertSource interface {
	Snapshot() map[string]map[types.Symbol][]types.Alert
	Resolve(userID string, symbol types.Symbol, price float64, triggeredIDs []string) error
}

// Notifier delivers a trigger notification to one user. Delivery is
// best-effort; the engine removes the alert whether or not it succeeds.
type Notifier interface {
	NotifyTrigger(userID string, symbol types.Symbol, target, current float64) error
}

// Engine runs the periodic evaluation cycle: sample each distinct symbol
// once, test every alert on that symbol against the single sample, notify
// and remove triggered alerts, update last observed prices, persist.
type Engine struct {
	store    AlertSource
	sampler  Sampler
	notifier Notifier

	Interval     time.Duration
	InitialDelay time.Duration

	mu       sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	inflight sync.WaitGroup
}

func New(store AlertSource, sampler Sampler, notifier Notifier) *Engine {
	return &Engine{
		store:        store,
		sampler:      sampler,
		notifier:     notifier,
		Interval:     defaultInterval,
		InitialDelay: defaultInitialDelay,
	}
}

// Start launches the cycle loop in the background. The first cycle runs
// after the initial delay so the transport has time to come up.
func (e *Engine) Start() {
	stop := make(chan struct{})
	done := make(chan struct{})
	e.mu.Lock()
	e.stop = stop
	e.done = done
	e.mu.Unlock()

	// The goroutine holds its own references to the channels so Stop can
	// clear the fields without racing the select below.
	go func() {
		defer close(done)
		select {
		case <-time.After(e.InitialDelay):
		case <-stop:
			return
		}

		ticker := time.NewTicker(e.Interval)
		defer ticker.Stop()

		e.RunCycle()
		for {
			select {
			case <-ticker.C:
				e.RunCycle()
			case <-stop:
				return
			}
		}
	}()
	log.Info("🚀 alert engine started")
}

// Stop halts the cycle loop, waits for any cycle in progress to finish and
// then drains in-flight notifications. Safe to call without a prior Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	stop, done := e.stop, e.done
	e.stop, e.done = nil, nil
	e.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	e.inflight.Wait()
}

// RunCycle executes one evaluation pass over all pending alerts.
func (e *Engine) RunCycle() {
	log.Debug("🔄 checking alerts...")

	snapshot := e.store.Snapshot()

	// One fetch per distinct symbol: every alert on a symbol must see the
	// same current price within a cycle.
	prices := make(map[types.Symbol]float64)
	unavailable := make(map[types.Symbol]bool)
	for _, bySymbol := range snapshot {
		for symbol, alerts := range bySymbol {
			// A legacy document may carry a symbol entry with no alerts
			// left; that must not cost a fetch.
			if len(alerts) == 0 {
				continue
			}
			if _, seen := prices[symbol]; seen || unavailable[symbol] {
				continue
			}
			price, err := e.sampler.Fetch(symbol)
			if err != nil {
				log.Warnf("⚠️ no price for %s, skipping its alerts this cycle: %v", symbol, err)
				unavailable[symbol] = true
				continue
			}
			prices[symbol] = price
		}
	}

	for userID, bySymbol := range snapshot {
		for symbol, alerts := range bySymbol {
			if unavailable[symbol] || len(alerts) == 0 {
				continue
			}
			current := prices[symbol]

			var triggered []string
			for _, alert := range alerts {
				if !Crossed(alert.TargetPrice, alert.LastPrice, current) {
					continue
				}
				log.Infof("✅ alert triggered for user %s: %s at %.2f (current %.2f)",
					userID, symbol, alert.TargetPrice, current)
				triggered = append(triggered, alert.ID)
				e.dispatch(userID, symbol, alert.TargetPrice, current)
			}

			// Triggered alerts are consumed even if dispatch fails:
			// at-most-once delivery over retry storms.
			if err := e.store.Resolve(userID, symbol, current, triggered); err != nil {
				log.Errorf("❌ could not persist alerts for user %s %s: %v", userID, symbol, err)
			}
		}
	}
}

// dispatch sends the notification without blocking the cycle driver.
func (e *Engine) dispatch(userID string, symbol types.Symbol, target, current float64) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		if err := e.notifier.NotifyTrigger(userID, symbol, target, current); err != nil {
			log.Errorf("❌ could not notify user %s about %s at %.2f: %v", userID, symbol, target, err)
		}
	}()
}
