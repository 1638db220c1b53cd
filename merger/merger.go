package merger

import (
	"sort"

	"github.com/shopspring/decimal"

	"bookflow/logger"
	"bookflow/models"
)

// MergedLevel is a single row of the merged book, tagged with its source
// venue. Equal prices across venues stay as separate rows.
type MergedLevel struct {
	Price float64
	Size  float64
	Venue models.Venue

	// key is the exact wire price, used for ordering and cross-venue
	// price-equality so "67242.0" and "67242.00" collide.
	key decimal.Decimal
}

// MergedBook is the unified depth-N view over both venues. Bids are
// descending, asks ascending, each side at most depth rows.
type MergedBook struct {
	Bids []MergedLevel
	Asks []MergedLevel
}

// Quote is a per-venue best bid / best ask; either side may be absent.
type Quote struct {
	Bid *float64
	Ask *float64
}

// Signals is the derived cross-venue signal vector.
type Signals struct {
	// CrossSpread is min(best ask) - max(best bid) across both venues.
	// Negative means the books cross each other (arbitrage). Nil when
	// either side is globally empty.
	CrossSpread    *float64
	CrossSpreadPct *float64
	Arb            bool

	BestBidVenue *models.Venue
	BestAskVenue *models.Venue

	// LIR is (bid notional - ask notional) / (bid + ask notional) over
	// the truncated merged book; 0 when the denominator is 0.
	LIR         float64
	TotalBidUSD float64
	TotalAskUSD float64

	HLBBO  Quote
	PDXBBO Quote
}

// Build merges two venue books into a depth-limited view and computes the
// signal vector. It is pure: no state is retained between calls and
// identical inputs always produce identical outputs.
func Build(hl, pdx *models.OrderBook, depth int) (MergedBook, Signals) {
	if hl.Crossed || pdx.Crossed {
		logger.GetLogger().WithComponent("merger").WithFields(logger.Fields{
			"hl_crossed":  hl.Crossed,
			"pdx_crossed": pdx.Crossed,
		}).Error("crossed venue book observed, merging verbatim")
	}

	hlT := hl.Tagged(models.VenueHyperliquid)
	pdxT := pdx.Tagged(models.VenueParadex)

	book := MergedBook{
		Bids: mergeSide(hlT.Bids, pdxT.Bids, depth, true),
		Asks: mergeSide(hlT.Asks, pdxT.Asks, depth, false),
	}
	return book, computeSignals(hl, pdx, book)
}

func toMerged(levels []models.Level) []MergedLevel {
	out := make([]MergedLevel, 0, len(levels))
	for _, l := range levels {
		d, err := l.PriceDecimal()
		if err != nil {
			// feeds never publish unparseable prices
			continue
		}
		out = append(out, MergedLevel{
			Price: l.Price(),
			Size:  l.Size(),
			Venue: l.Venue,
			key:   d,
		})
	}
	return out
}

// mergeSide unions the two venues' levels and orders them by price
// (descending for bids, ascending for asks). Ties on price keep
// Hyperliquid before Paradex; within a venue the venue's own order is
// preserved by the stable sort.
func mergeSide(a, b []models.Level, depth int, descending bool) []MergedLevel {
	all := append(toMerged(a), toMerged(b)...)

	sort.SliceStable(all, func(i, j int) bool {
		cmp := all[i].key.Cmp(all[j].key)
		if cmp != 0 {
			if descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return all[i].Venue < all[j].Venue
	})

	if depth >= 0 && len(all) > depth {
		all = all[:depth]
	}
	return all
}

func computeSignals(hl, pdx *models.OrderBook, merged MergedBook) Signals {
	sig := Signals{
		HLBBO:  bbo(hl),
		PDXBBO: bbo(pdx),
	}

	bestBid, bestBidVenue := maxBid(sig.HLBBO.Bid, sig.PDXBBO.Bid)
	bestAsk, bestAskVenue := minAsk(sig.HLBBO.Ask, sig.PDXBBO.Ask)
	sig.BestBidVenue = bestBidVenue
	sig.BestAskVenue = bestAskVenue

	if bestBid != nil && bestAsk != nil {
		spread := *bestAsk - *bestBid
		sig.CrossSpread = &spread
		sig.Arb = spread < 0
		if mid := (*bestBid + *bestAsk) / 2; mid > 0 {
			pct := spread / mid * 100
			sig.CrossSpreadPct = &pct
		}
	}

	for _, l := range merged.Bids {
		sig.TotalBidUSD += l.Price * l.Size
	}
	for _, l := range merged.Asks {
		sig.TotalAskUSD += l.Price * l.Size
	}
	if total := sig.TotalBidUSD + sig.TotalAskUSD; total > 0 {
		sig.LIR = (sig.TotalBidUSD - sig.TotalAskUSD) / total
	}
	return sig
}

func bbo(b *models.OrderBook) Quote {
	var q Quote
	if l, ok := b.BestBid(); ok {
		p := l.Price()
		q.Bid = &p
	}
	if l, ok := b.BestAsk(); ok {
		p := l.Price()
		q.Ask = &p
	}
	return q
}

func maxBid(hl, pdx *float64) (*float64, *models.Venue) {
	switch {
	case hl != nil && pdx != nil:
		if *hl >= *pdx {
			return hl, venuePtr(models.VenueHyperliquid)
		}
		return pdx, venuePtr(models.VenueParadex)
	case hl != nil:
		return hl, venuePtr(models.VenueHyperliquid)
	case pdx != nil:
		return pdx, venuePtr(models.VenueParadex)
	}
	return nil, nil
}

func minAsk(hl, pdx *float64) (*float64, *models.Venue) {
	switch {
	case hl != nil && pdx != nil:
		if *hl <= *pdx {
			return hl, venuePtr(models.VenueHyperliquid)
		}
		return pdx, venuePtr(models.VenueParadex)
	case hl != nil:
		return hl, venuePtr(models.VenueHyperliquid)
	case pdx != nil:
		return pdx, venuePtr(models.VenueParadex)
	}
	return nil, nil
}

func venuePtr(v models.Venue) *models.Venue { return &v }
