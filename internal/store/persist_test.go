package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"fx-signal-bot/internal/types"
)

func TestFilePersisterLoadMissingFile(t *testing.T) {
	p := NewFilePersister(filepath.Join(t.TempDir(), "absent.json"))

	doc := make(map[string]int)
	if err := p.Load(&doc); err != nil {
		t.Fatalf("loading a missing document must be a no-op: %v", err)
	}
	if len(doc) != 0 {
		t.Fatalf("expected empty document, got %v", doc)
	}
}

func TestAlertStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_alerts.json")

	s := mustStore(t, NewFilePersister(path))
	if _, err := s.Add("42", types.SymbolXAUUSD, 3020, time.Now()); err != nil {
		t.Fatalf("could not add alert: %v", err)
	}
	if _, err := s.Add("42", types.SymbolBTCUSD, 70000, time.Now()); err != nil {
		t.Fatalf("could not add alert: %v", err)
	}
	if err := s.Resolve("42", types.SymbolBTCUSD, 68000, nil); err != nil {
		t.Fatalf("could not resolve: %v", err)
	}

	reloaded := mustStore(t, NewFilePersister(path))

	// Field for field: the BTCUSD alert carries its observed price, the
	// XAUUSD alert still has last_price null.
	if !reflect.DeepEqual(s.ListByUser("42"), reloaded.ListByUser("42")) {
		t.Fatalf("reloaded store differs:\n%+v\n%+v", s.ListByUser("42"), reloaded.ListByUser("42"))
	}
	xau := reloaded.ListByUser("42")[types.SymbolXAUUSD]
	if len(xau) != 1 || xau[0].LastPrice != nil {
		t.Fatalf("expected null last_price to survive the round trip, got %+v", xau)
	}
}

func TestFilePersisterLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	p := NewFilePersister(filepath.Join(dir, "state.json"))

	if err := p.Save(map[string]string{"k": "v"}); err != nil {
		t.Fatalf("could not save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("could not read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		t.Fatalf("expected only the renamed document, got %v", entries)
	}
}

func TestBaselineStoreObserve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "initial_prices.json")
	s, err := NewBaselineStore(NewFilePersister(path))
	if err != nil {
		t.Fatalf("could not build baseline store: %v", err)
	}

	baseline, first, err := s.Observe("1", types.SymbolXAUUSD, 3015)
	if err != nil || !first || baseline != 3015 {
		t.Fatalf("expected first observation recorded, got baseline=%v first=%v err=%v", baseline, first, err)
	}

	baseline, first, err = s.Observe("1", types.SymbolXAUUSD, 3030)
	if err != nil || first || baseline != 3015 {
		t.Fatalf("expected the original baseline back, got baseline=%v first=%v err=%v", baseline, first, err)
	}

	reloaded, err := NewBaselineStore(NewFilePersister(path))
	if err != nil {
		t.Fatalf("could not reload baseline store: %v", err)
	}
	if got, ok := reloaded.Get("1", types.SymbolXAUUSD); !ok || got != 3015 {
		t.Fatalf("expected persisted baseline 3015, got %v ok=%v", got, ok)
	}
}
