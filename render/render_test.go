package render

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	appconfig "bookflow/config"
	"bookflow/internal/bookwatch"
	"bookflow/merger"
	"bookflow/models"
)

func displayConfig() *appconfig.Config {
	return &appconfig.Config{
		Display: appconfig.DisplayConfig{Depth: 5, TickMs: 50},
	}
}

func TestANSIRendererPlaceholders(t *testing.T) {
	var out strings.Builder
	r := NewANSIRendererTo(&out)

	hl := models.NewOrderBook(models.VenueHyperliquid, "BTC")
	pdx := models.NewOrderBook(models.VenueParadex, "BTC-USD-PERP")
	merged, signals := merger.Build(hl, pdx, 5)

	err := r.Draw(Frame{HL: hl, PDX: pdx, Merged: merged, Signals: signals, At: time.Unix(0, 0)})
	if err != nil {
		t.Fatalf("draw: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "disconnected") {
		t.Errorf("empty frame must show disconnected venues")
	}
	if !strings.Contains(text, "waiting for books") {
		t.Errorf("empty merged book must render a placeholder")
	}
	if !strings.Contains(text, "cross spread  -") {
		t.Errorf("absent cross spread must render a placeholder")
	}
}

func TestANSIRendererConnectedBook(t *testing.T) {
	var out strings.Builder
	r := NewANSIRendererTo(&out)

	hl := models.BookFromLevels(models.VenueHyperliquid, "BTC",
		[]models.Level{{Px: "100.5", Sz: "1"}},
		[]models.Level{{Px: "101.5", Sz: "2"}},
		time.Now().UnixMilli(),
	)
	pdx := models.BookFromLevels(models.VenueParadex, "BTC-USD-PERP",
		[]models.Level{{Px: "99.5", Sz: "1"}},
		[]models.Level{{Px: "100.0", Sz: "1"}},
		time.Now().UnixMilli(),
	)
	merged, signals := merger.Build(hl, pdx, 5)

	if err := r.Draw(Frame{HL: hl, PDX: pdx, Merged: merged, Signals: signals, At: time.Now()}); err != nil {
		t.Fatalf("draw: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "HL") || !strings.Contains(text, "PDX") {
		t.Errorf("venue tags missing from merged table")
	}
	if !strings.Contains(text, "ARB") {
		t.Errorf("negative cross spread must flag ARB")
	}
}

type countingRenderer struct {
	draws atomic.Int64
}

func (c *countingRenderer) Draw(Frame) error {
	c.draws.Add(1)
	return nil
}
func (c *countingRenderer) Close() error { return nil }

func TestRunQuitsOnEvent(t *testing.T) {
	cfg := displayConfig()
	pair := bookwatch.NewPair("BTC", "BTC-USD-PERP")
	r := &countingRenderer{}
	events := make(chan Event, 1)

	go func() {
		time.Sleep(150 * time.Millisecond)
		events <- Event{Type: EventQuit}
	}()

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), cfg, pair, r, events)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not quit on event")
	}

	if r.draws.Load() == 0 {
		t.Fatalf("renderer never ticked")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := displayConfig()
	pair := bookwatch.NewPair("BTC", "BTC-USD-PERP")
	r := &countingRenderer{}
	events := make(chan Event)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, pair, r, events)
	}()

	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not stop on cancel")
	}
}
