package models

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Venue identifies the exchange a book or level originated from.
type Venue int

const (
	VenueHyperliquid Venue = iota
	VenueParadex
)

// String returns the full exchange label.
func (v Venue) String() string {
	switch v {
	case VenueHyperliquid:
		return "Hyperliquid"
	case VenueParadex:
		return "Paradex"
	}
	return "unknown"
}

// Short returns the two/three letter label used in the merged view.
func (v Venue) Short() string {
	switch v {
	case VenueHyperliquid:
		return "HL"
	case VenueParadex:
		return "PDX"
	}
	return "?"
}

// Level is a single resting price level. Price and size are kept as wire
// strings so the venue's precision round-trips; parsed accessors are used
// for display math. N is the resting order count (Hyperliquid only,
// Paradex reports none and leaves it 0). Venue is populated at merge time.
type Level struct {
	Px    string
	Sz    string
	N     int32
	Venue Venue
}

// Price parses the price string, returning 0 on malformed input.
func (l Level) Price() float64 {
	p, err := strconv.ParseFloat(l.Px, 64)
	if err != nil {
		return 0
	}
	return p
}

// Size parses the size string, returning 0 on malformed input.
func (l Level) Size() float64 {
	s, err := strconv.ParseFloat(l.Sz, 64)
	if err != nil {
		return 0
	}
	return s
}

// PriceDecimal parses the price string exactly.
func (l Level) PriceDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(l.Px)
}

// CanonicalPrice normalizes a wire price string so that representations of
// the same price collide: trailing zeros after the decimal point are
// stripped, as is a trailing decimal point ("67242.00" -> "67242").
// Strings without a decimal point are returned unchanged.
func CanonicalPrice(px string) string {
	if !strings.Contains(px, ".") {
		return px
	}
	px = strings.TrimRight(px, "0")
	return strings.TrimSuffix(px, ".")
}

// OrderBook is the per-venue L2 book published by a feed. Bids are strictly
// descending by price, asks strictly ascending, no duplicate prices within
// a side, no zero sizes. Crossed is set when the wire itself presented a
// crossed book; the levels are still kept verbatim.
type OrderBook struct {
	Venue        Venue
	Symbol       string
	Bids         []Level
	Asks         []Level
	LastUpdateMS int64
	Connected    bool
	Updates      uint64
	Crossed      bool
}

// NewOrderBook returns an empty, disconnected book for a venue.
func NewOrderBook(venue Venue, symbol string) *OrderBook {
	return &OrderBook{Venue: venue, Symbol: symbol}
}

// BookFromLevels builds a connected book directly from its parts.
func BookFromLevels(venue Venue, symbol string, bids, asks []Level, lastUpdateMS int64) *OrderBook {
	b := &OrderBook{
		Venue:        venue,
		Symbol:       symbol,
		Bids:         bids,
		Asks:         asks,
		LastUpdateMS: lastUpdateMS,
		Connected:    true,
	}
	b.Crossed = b.isCrossed()
	return b
}

func (b *OrderBook) isCrossed() bool {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return false
	}
	return b.Bids[0].Price() >= b.Asks[0].Price()
}

// BestBid returns the top bid level, if the side is non-empty.
func (b *OrderBook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level, if the side is non-empty.
func (b *OrderBook) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// Mid returns the midpoint of the BBO.
func (b *OrderBook) Mid() (float64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return (bid.Price() + ask.Price()) / 2, true
}

// Spread returns best ask minus best bid.
func (b *OrderBook) Spread() (float64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return ask.Price() - bid.Price(), true
}

// SpreadPct returns the spread as a percentage of the midpoint.
func (b *OrderBook) SpreadPct() (float64, bool) {
	s, okS := b.Spread()
	m, okM := b.Mid()
	if !okS || !okM || m <= 0 {
		return 0, false
	}
	return s / m * 100, true
}

// Truncate returns a copy of the book capped to depth levels per side.
func (b *OrderBook) Truncate(depth int) *OrderBook {
	out := *b
	if depth < 0 {
		depth = 0
	}
	n := depth
	if n > len(b.Bids) {
		n = len(b.Bids)
	}
	out.Bids = append([]Level(nil), b.Bids[:n]...)
	n = depth
	if n > len(b.Asks) {
		n = len(b.Asks)
	}
	out.Asks = append([]Level(nil), b.Asks[:n]...)
	return &out
}

// Tagged returns a copy with every level stamped with venue. Used by the
// merger so per-venue books never carry tags themselves.
func (b *OrderBook) Tagged(venue Venue) *OrderBook {
	out := *b
	out.Bids = make([]Level, len(b.Bids))
	for i, l := range b.Bids {
		l.Venue = venue
		out.Bids[i] = l
	}
	out.Asks = make([]Level, len(b.Asks))
	for i, l := range b.Asks {
		l.Venue = venue
		out.Asks[i] = l
	}
	return &out
}
