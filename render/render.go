package render

import (
	"context"
	"time"

	appconfig "bookflow/config"
	"bookflow/internal/bookwatch"
	"bookflow/logger"
	"bookflow/merger"
	"bookflow/models"
)

// Frame is everything a renderer needs for one draw: both venue books as
// borrowed from the watches, the merged view and the signal vector. The
// renderer must treat an empty or disconnected book as valid input.
type Frame struct {
	HL      *models.OrderBook
	PDX     *models.OrderBook
	Merged  merger.MergedBook
	Signals merger.Signals
	At      time.Time
}

// Renderer is the external drawing collaborator.
type Renderer interface {
	Draw(Frame) error
	Close() error
}

// EventType classifies input events observed by the loop.
type EventType int

const (
	EventQuit EventType = iota
	EventResize
)

// Event is an input event delivered to the render loop.
type Event struct {
	Type EventType
}

// Run drives the renderer on a fixed wall-clock tick. On each tick it
// borrows the latest book from both watches, rebuilds the merged view from
// scratch and draws. It returns when ctx is cancelled or a quit event
// arrives.
func Run(ctx context.Context, cfg *appconfig.Config, pair *bookwatch.Pair, r Renderer, events <-chan Event) error {
	log := logger.GetLogger().WithComponent("render_loop")

	ticker := time.NewTicker(cfg.Tick())
	defer ticker.Stop()
	defer r.Close()

	log.WithFields(logger.Fields{
		"tick_ms": cfg.Display.TickMs,
		"depth":   cfg.Display.Depth,
	}).Info("render loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info("render loop stopped due to context cancellation")
			return nil
		case ev := <-events:
			switch ev.Type {
			case EventQuit:
				log.Info("quit requested")
				return nil
			case EventResize:
				// next tick redraws at the new size
			}
		case now := <-ticker.C:
			hl := pair.HL.Borrow()
			pdx := pair.PDX.Borrow()
			merged, signals := merger.Build(hl, pdx, cfg.Display.Depth)
			if err := r.Draw(Frame{HL: hl, PDX: pdx, Merged: merged, Signals: signals, At: now}); err != nil {
				return err
			}
		}
	}
}
