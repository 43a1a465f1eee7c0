package price

import (
	"math/rand"
	"sync"

	"fx-signal-bot/internal/types"

	"github.com/pkg/errors"
)

// walkBand bounds a simulated symbol: each step moves at most maxStepPct
// percent from the previous sample and the result is clamped to [min, max].
type walkBand struct {
	maxStepPct float64
	min        float64
	max        float64
}

var walkBands = map[types.Symbol]walkBand{
	types.SymbolXAUUSD: {maxStepPct: 0.1, min: 2990, max: 3050},
	types.SymbolGBPJPY: {maxStepPct: 0.2, min: 190, max: 200},
}

// walkSource synthesizes prices for symbols without a live market-data
// feed. This is a deliberate simulation, not a stand-in for a broken
// source: the walk is bounded, clamped and reproducible given a seeded
// random source.
type walkSource struct {
	symbol types.Symbol
	band   walkBand

	mu   sync.Mutex
	last float64
	rnd  *rand.Rand
}

func newWalkSource(symbol types.Symbol, rnd *rand.Rand) *walkSource {
	return &walkSource{
		symbol: symbol,
		band:   walkBands[symbol],
		last:   fallbackPrices[symbol],
		rnd:    rnd,
	}
}

func (w *walkSource) Fetch(symbol types.Symbol) (float64, error) {
	if symbol != w.symbol {
		return 0, errors.Errorf("walk source for %s asked for %s", w.symbol, symbol)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	changePct := (w.rnd.Float64()*2 - 1) * w.band.maxStepPct
	next := w.last * (1 + changePct/100)
	if next > w.band.max {
		next = w.band.max
	}
	if next < w.band.min {
		next = w.band.min
	}
	w.last = next
	return next, nil
}
