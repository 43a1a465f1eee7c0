package store

import (
	"sync"

	"fx-signal-bot/internal/types"

	"github.com/pkg/errors"
)

// BaselineStore remembers the first price a user ever saw for a symbol.
// It only drives the up/down framing on price cards and notifications,
// never the crossing logic.
type BaselineStore struct {
	mu        sync.Mutex
	prices    map[string]map[types.Symbol]float64
	persister Persister
}

func NewBaselineStore(p Persister) (*BaselineStore, error) {
	s := &BaselineStore{
		prices:    make(map[string]map[types.Symbol]float64),
		persister: p,
	}
	if err := p.Load(&s.prices); err != nil {
		return nil, errors.Wrap(err, "could not load baselines")
	}
	if s.prices == nil {
		s.prices = make(map[string]map[types.Symbol]float64)
	}
	return s, nil
}

// EnsureUser registers the user in the document if not present yet.
func (s *BaselineStore) EnsureUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prices[userID]; ok {
		return nil
	}
	s.prices[userID] = make(map[types.Symbol]float64)
	if err := s.save(); err != nil {
		delete(s.prices, userID)
		return err
	}
	return nil
}

// Observe records price as the user's baseline for symbol on first sight.
// It returns the effective baseline and whether this was the first
// observation.
func (s *BaselineStore) Observe(userID string, symbol types.Symbol, price float64) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bySymbol, ok := s.prices[userID]; ok {
		if baseline, ok := bySymbol[symbol]; ok {
			return baseline, false, nil
		}
	}

	if s.prices[userID] == nil {
		s.prices[userID] = make(map[types.Symbol]float64)
	}
	s.prices[userID][symbol] = price
	if err := s.save(); err != nil {
		delete(s.prices[userID], symbol)
		return 0, false, err
	}
	return price, true, nil
}

// Get returns the stored baseline, if any.
func (s *BaselineStore) Get(userID string, symbol types.Symbol) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	baseline, ok := s.prices[userID][symbol]
	return baseline, ok
}

func (s *BaselineStore) save() error {
	return errors.Wrap(s.persister.Save(s.prices), "could not persist baselines")
}
