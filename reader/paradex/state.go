package paradex

import (
	"sort"

	"github.com/shopspring/decimal"

	"bookflow/logger"
	"bookflow/models"
)

// localBook is the delta-maintained book state. It is owned exclusively by
// the feed's connection loop and is never shared: the watch only ever sees
// immutable OrderBook values materialized from it.
//
// Keys are canonicalized price strings (trailing zeros stripped) so the
// same price in different wire spellings upserts a single entry; ordering
// happens only at materialization time with a parsed numeric comparator.
type localBook struct {
	bids map[string]string // canonical price -> size string
	asks map[string]string

	lastSeqNo    *int64
	lastUpdateMS int64
	ready        bool
}

func newLocalBook() *localBook {
	return &localBook{
		bids: make(map[string]string),
		asks: make(map[string]string),
	}
}

// reset clears all state, as on reconnect.
func (b *localBook) reset() {
	b.bids = make(map[string]string)
	b.asks = make(map[string]string)
	b.lastSeqNo = nil
	b.lastUpdateMS = 0
	b.ready = false
}

// gap reports whether data's seq_no skips ahead of the recorded one.
// Recorded regardless; only acted on when resubscribe_on_gap is set.
func (b *localBook) gap(data *models.PDXBookData) bool {
	if data.SeqNo == nil || b.lastSeqNo == nil {
		return false
	}
	return *data.SeqNo > *b.lastSeqNo+1
}

// applySnapshot replaces the state with the message contents. A snapshot
// is authoritative even after ready.
func (b *localBook) applySnapshot(data *models.PDXBookData) {
	b.bids = make(map[string]string)
	b.asks = make(map[string]string)
	insertSide(b.bids, data.Bids)
	insertSide(b.asks, data.Asks)
	b.ready = true
	b.touch(data)
}

// applyDelta upserts non-zero entries and deletes zero-size ones. Deltas
// arriving before the first snapshot are discarded by the caller.
func (b *localBook) applyDelta(data *models.PDXBookData) {
	deltaSide(b.bids, data.Bids)
	deltaSide(b.asks, data.Asks)
	b.touch(data)
}

func (b *localBook) touch(data *models.PDXBookData) {
	// wire timestamps are microseconds
	b.lastUpdateMS = data.LastUpdatedAt / 1000
	if data.SeqNo != nil {
		seq := *data.SeqNo
		b.lastSeqNo = &seq
	}
}

func insertSide(side map[string]string, entries [][2]string) {
	for _, e := range entries {
		px, sz := e[0], e[1]
		if f, ok := parseSize(sz); !ok || f == 0 {
			continue
		}
		side[models.CanonicalPrice(px)] = sz
	}
}

func deltaSide(side map[string]string, entries [][2]string) {
	for _, e := range entries {
		px, sz := e[0], e[1]
		key := models.CanonicalPrice(px)
		f, ok := parseSize(sz)
		if !ok {
			logger.GetLogger().WithComponent("paradex_reader").WithFields(logger.Fields{
				"price": px,
				"size":  sz,
			}).Warn("unparseable size in delta entry, dropping")
			continue
		}
		if f == 0 {
			delete(side, key)
			continue
		}
		side[key] = sz
	}
}

func parseSize(s string) (float64, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// materialize produces the sorted top-depth levels for both sides. Prices
// are compared numerically via decimal parsing, never lexicographically.
// Entries whose price fails to parse are dropped with a warning.
func (b *localBook) materialize(depth int) (bids, asks []models.Level) {
	bids = sortSide(b.bids, depth, true)
	asks = sortSide(b.asks, depth, false)
	return bids, asks
}

type parsedLevel struct {
	level models.Level
	key   decimal.Decimal
}

func sortSide(side map[string]string, depth int, descending bool) []models.Level {
	parsed := make([]parsedLevel, 0, len(side))
	for px, sz := range side {
		d, err := decimal.NewFromString(px)
		if err != nil {
			logger.GetLogger().WithComponent("paradex_reader").WithFields(logger.Fields{
				"price": px,
			}).Warn("unparseable price in book state, dropping entry")
			continue
		}
		parsed = append(parsed, parsedLevel{
			level: models.Level{Px: px, Sz: sz},
			key:   d,
		})
	}

	sort.Slice(parsed, func(i, j int) bool {
		if descending {
			return parsed[i].key.GreaterThan(parsed[j].key)
		}
		return parsed[i].key.LessThan(parsed[j].key)
	})

	if depth >= 0 && len(parsed) > depth {
		parsed = parsed[:depth]
	}
	out := make([]models.Level, len(parsed))
	for i, p := range parsed {
		out[i] = p.level
	}
	return out
}
