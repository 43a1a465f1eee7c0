package price

import (
	"math/rand"
	"sync"
	"time"

	"fx-signal-bot/internal/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrUnavailable is returned when a symbol has no live source, no
// simulation and no last known price to fall back on.
var ErrUnavailable = errors.New("price unavailable")

// Source produces the next price for a symbol.
type Source interface {
	Fetch(symbol types.Symbol) (float64, error)
}

// Point is one observed sample, kept for chart rendering.
type Point struct {
	Time  time.Time
	Value float64
}

// fallbackPrices seeds the last-known cache so a symbol always has a value
// to degrade to, even before its first successful fetch.
var fallbackPrices = map[types.Symbol]float64{
	types.SymbolBTCUSD: 65000.00,
	types.SymbolXAUUSD: 3017.64,
	types.SymbolGBPJPY: 195.50,
}

const historyLimit = 120

// Sampler wraps the per-symbol sources behind one fetch contract and owns
// the fallback-to-last-known-value policy. Every successful fetch updates
// the process-wide last-known cache and the per-symbol history ring.
type Sampler struct {
	mu        sync.Mutex
	sources   map[types.Symbol]Source
	lastKnown map[types.Symbol]float64
	history   map[types.Symbol][]Point
	now       func() time.Time
}

// NewSampler builds the production sampler: a live source for BTCUSD and
// bounded random walks for XAUUSD and GBPJPY sharing rnd.
func NewSampler(live Source, rnd *rand.Rand) *Sampler {
	return NewSamplerWithSources(map[types.Symbol]Source{
		types.SymbolBTCUSD: live,
		types.SymbolXAUUSD: newWalkSource(types.SymbolXAUUSD, rnd),
		types.SymbolGBPJPY: newWalkSource(types.SymbolGBPJPY, rnd),
	})
}

// NewSamplerWithSources builds a sampler over an explicit source map.
func NewSamplerWithSources(sources map[types.Symbol]Source) *Sampler {
	lastKnown := make(map[types.Symbol]float64, len(fallbackPrices))
	for symbol, price := range fallbackPrices {
		lastKnown[symbol] = price
	}
	return &Sampler{
		sources:   sources,
		lastKnown: lastKnown,
		history:   make(map[types.Symbol][]Point),
		now:       time.Now,
	}
}

// Fetch returns the next price for symbol. A failing source degrades to
// the last known price; a symbol with neither source nor cached price
// yields ErrUnavailable.
func (s *Sampler) Fetch(symbol types.Symbol) (float64, error) {
	source, hasSource := s.sources[symbol]
	if hasSource {
		price, err := source.Fetch(symbol)
		if err == nil {
			s.record(symbol, price)
			return price, nil
		}
		log.Infof("source for %s failed, falling back to last known price: %v", symbol, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if price, ok := s.lastKnown[symbol]; ok {
		return price, nil
	}
	return 0, errors.Wrapf(ErrUnavailable, "no price for %s", symbol)
}

// LastKnown returns the cached price for symbol, if any.
func (s *Sampler) LastKnown(symbol types.Symbol) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.lastKnown[symbol]
	return price, ok
}

// History returns a copy of the recent samples for symbol, oldest first.
func (s *Sampler) History(symbol types.Symbol) []Point {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := s.history[symbol]
	out := make([]Point, len(points))
	copy(out, points)
	return out
}

func (s *Sampler) record(symbol types.Symbol, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastKnown[symbol] = price
	points := append(s.history[symbol], Point{Time: s.now(), Value: price})
	if len(points) > historyLimit {
		points = points[len(points)-historyLimit:]
	}
	s.history[symbol] = points
}
