package store

import (
	"math"
	"sync"
	"time"

	"fx-signal-bot/internal/types"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// alertDoc mirrors the on-disk layout: user id -> symbol -> pending alerts.
type alertDoc map[string]map[types.Symbol][]types.Alert

// AlertStore is the durable mapping from user to symbol to pending alerts.
// One mutex serializes every read-mutate-persist unit so the engine's
// removal-on-trigger cannot race a user's deletion, and two users' writes
// cannot clobber each other's document. A mutation only commits once the
// persister accepted the new document; on persist failure the in-memory
// state is left untouched and the error is returned to the caller.
type AlertStore struct {
	mu        sync.Mutex
	alerts    alertDoc
	persister Persister
}

// NewAlertStore loads the persisted document and returns a ready store.
func NewAlertStore(p Persister) (*AlertStore, error) {
	s := &AlertStore{
		alerts:    make(alertDoc),
		persister: p,
	}
	if err := p.Load(&s.alerts); err != nil {
		return nil, errors.Wrap(err, "could not load alerts")
	}
	if s.alerts == nil {
		s.alerts = make(alertDoc)
	}
	return s, nil
}

// EnsureUser registers the user in the document if not present yet.
func (s *AlertStore) EnsureUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[userID]; ok {
		return nil
	}
	next := cloneDoc(s.alerts)
	next[userID] = make(map[types.Symbol][]types.Alert)
	return s.commit(next)
}

// Add creates a new alert for the user and symbol. LastPrice starts nil and
// is filled in by the first evaluation cycle that samples the symbol.
func (s *AlertStore) Add(userID string, symbol types.Symbol, target float64, now time.Time) (types.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert := types.Alert{
		ID:          uuid.NewString(),
		TargetPrice: target,
		CreatedAt:   now.Format(types.TimeLayout),
	}

	next := cloneDoc(s.alerts)
	if next[userID] == nil {
		next[userID] = make(map[types.Symbol][]types.Alert)
	}
	next[userID][symbol] = append(next[userID][symbol], alert)

	if err := s.commit(next); err != nil {
		return types.Alert{}, err
	}
	return alert, nil
}

// ListByUser returns a copy of the user's alerts grouped by symbol.
func (s *AlertStore) ListByUser(userID string) map[types.Symbol][]types.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneUser(s.alerts[userID])
}

// Snapshot returns a deep copy of the whole document for one evaluation
// pass. The engine iterates the copy so removals never shift what it sees.
func (s *AlertStore) Snapshot() map[string]map[types.Symbol][]types.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneDoc(s.alerts)
}

// Resolve applies the outcome of one evaluation pass for a user/symbol
// pair: alerts whose id is in triggeredIDs are removed, every surviving
// alert gets its last observed price set to price, and empty symbol
// entries are pruned. The whole unit persists atomically.
func (s *AlertStore) Resolve(userID string, symbol types.Symbol, price float64, triggeredIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySymbol, ok := s.alerts[userID]
	if !ok {
		return nil
	}
	current, ok := bySymbol[symbol]
	if !ok {
		return nil
	}

	triggered := make(map[string]bool, len(triggeredIDs))
	for _, id := range triggeredIDs {
		triggered[id] = true
	}

	survivors := make([]types.Alert, 0, len(current))
	for _, alert := range current {
		if triggered[alert.ID] {
			continue
		}
		p := price
		alert.LastPrice = &p
		survivors = append(survivors, alert)
	}

	next := cloneDoc(s.alerts)
	if len(survivors) == 0 {
		delete(next[userID], symbol)
	} else {
		next[userID][symbol] = survivors
	}
	return s.commit(next)
}

// Remove deletes the alert with the given id. Returns false when no such
// alert exists; the store is left unchanged in that case.
func (s *AlertStore) Remove(userID string, symbol types.Symbol, alertID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeMatching(userID, symbol, func(a types.Alert) bool {
		return a.ID == alertID
	})
}

// RemoveByTarget deletes the first alert whose target lies within tolerance
// of target. The tolerance absorbs display rounding on keyboard labels.
func (s *AlertStore) RemoveByTarget(userID string, symbol types.Symbol, target, tolerance float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeMatching(userID, symbol, func(a types.Alert) bool {
		return math.Abs(a.TargetPrice-target) < tolerance
	})
}

func (s *AlertStore) removeMatching(userID string, symbol types.Symbol, match func(types.Alert) bool) (bool, error) {
	current := s.alerts[userID][symbol]
	idx := -1
	for i, alert := range current {
		if match(alert) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	next := cloneDoc(s.alerts)
	remaining := append(append([]types.Alert{}, current[:idx]...), current[idx+1:]...)
	if len(remaining) == 0 {
		delete(next[userID], symbol)
	} else {
		next[userID][symbol] = remaining
	}
	if err := s.commit(next); err != nil {
		return false, err
	}
	return true, nil
}

// commit persists the candidate document and swaps it in on success.
// Callers must hold the mutex.
func (s *AlertStore) commit(next alertDoc) error {
	if err := s.persister.Save(next); err != nil {
		return errors.Wrap(err, "could not persist alerts")
	}
	s.alerts = next
	return nil
}

func cloneDoc(doc alertDoc) alertDoc {
	out := make(alertDoc, len(doc))
	for userID, bySymbol := range doc {
		out[userID] = cloneUser(bySymbol)
	}
	return out
}

func cloneUser(bySymbol map[types.Symbol][]types.Alert) map[types.Symbol][]types.Alert {
	out := make(map[types.Symbol][]types.Alert, len(bySymbol))
	for symbol, alerts := range bySymbol {
		copied := make([]types.Alert, len(alerts))
		for i, alert := range alerts {
			if alert.LastPrice != nil {
				p := *alert.LastPrice
				alert.LastPrice = &p
			}
			copied[i] = alert
		}
		out[symbol] = copied
	}
	return out
}
