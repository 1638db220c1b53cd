package merger

import (
	"math"
	"reflect"
	"testing"

	"bookflow/models"
)

func book(venue models.Venue, bids, asks [][2]string) *models.OrderBook {
	toLevels := func(side [][2]string) []models.Level {
		out := make([]models.Level, len(side))
		for i, e := range side {
			out[i] = models.Level{Px: e[0], Sz: e[1]}
		}
		return out
	}
	return models.BookFromLevels(venue, "TEST", toLevels(bids), toLevels(asks), 0)
}

func TestBalancedBook(t *testing.T) {
	hl := book(models.VenueHyperliquid,
		[][2]string{{"100", "1"}, {"99", "1"}},
		[][2]string{{"101", "1"}, {"102", "1"}},
	)
	pdx := book(models.VenueParadex,
		[][2]string{{"100", "1"}, {"99", "1"}},
		[][2]string{{"101", "1"}, {"102", "1"}},
	)

	merged, sig := Build(hl, pdx, 2)

	if sig.CrossSpread == nil || *sig.CrossSpread != 1 {
		t.Fatalf("cross spread = %v, want 1", sig.CrossSpread)
	}
	if sig.LIR != 0 {
		t.Fatalf("lir = %v, want 0", sig.LIR)
	}
	if sig.Arb {
		t.Fatalf("no arb expected")
	}
	// depth 2 with equal prices: both venues' 100-levels, HL first per
	// tie-break
	if len(merged.Bids) != 2 {
		t.Fatalf("merged bids len = %d, want 2", len(merged.Bids))
	}
	if merged.Bids[0].Venue != models.VenueHyperliquid || merged.Bids[1].Venue != models.VenueParadex {
		t.Fatalf("tie-break order wrong: %v, %v", merged.Bids[0].Venue, merged.Bids[1].Venue)
	}
	if merged.Bids[0].Price != 100 || merged.Bids[1].Price != 100 {
		t.Fatalf("equal prices must not be aggregated")
	}
}

func TestArbitrage(t *testing.T) {
	hl := book(models.VenueHyperliquid,
		[][2]string{{"100.5", "1"}},
		[][2]string{{"101.5", "1"}},
	)
	pdx := book(models.VenueParadex,
		[][2]string{{"99.5", "1"}},
		[][2]string{{"100.0", "1"}},
	)

	_, sig := Build(hl, pdx, 5)

	if sig.CrossSpread == nil {
		t.Fatalf("cross spread absent")
	}
	if math.Abs(*sig.CrossSpread-(-0.5)) > 1e-12 {
		t.Fatalf("cross spread = %v, want -0.5", *sig.CrossSpread)
	}
	if !sig.Arb {
		t.Fatalf("arb flag must be set for negative spread")
	}
	if sig.BestBidVenue == nil || *sig.BestBidVenue != models.VenueHyperliquid {
		t.Errorf("best bid venue = %v, want Hyperliquid", sig.BestBidVenue)
	}
	if sig.BestAskVenue == nil || *sig.BestAskVenue != models.VenueParadex {
		t.Errorf("best ask venue = %v, want Paradex", sig.BestAskVenue)
	}
}

func TestBidHeavyLIR(t *testing.T) {
	// bid notional 10000, ask notional 2000 => lir = 8000/12000
	hl := book(models.VenueHyperliquid,
		[][2]string{{"100", "100"}}, // 10_000
		[][2]string{{"200", "5"}},   // 1_000
	)
	pdx := book(models.VenueParadex,
		nil,
		[][2]string{{"200", "5"}}, // 1_000
	)

	_, sig := Build(hl, pdx, 5)

	want := (10000.0 - 2000.0) / (10000.0 + 2000.0)
	if math.Abs(sig.LIR-want) > 1e-9 {
		t.Fatalf("lir = %v, want %v", sig.LIR, want)
	}
	if sig.LIR < -1 || sig.LIR > 1 {
		t.Fatalf("lir out of range: %v", sig.LIR)
	}
}

func TestStringNormalizedPriceEquality(t *testing.T) {
	hl := book(models.VenueHyperliquid, [][2]string{{"67242.0", "1"}}, nil)
	pdx := book(models.VenueParadex, [][2]string{{"67242.00", "1"}}, nil)

	merged, _ := Build(hl, pdx, 5)

	if len(merged.Bids) != 2 {
		t.Fatalf("merged bids len = %d, want 2", len(merged.Bids))
	}
	// different spellings of the same price tie; HL wins the tie-break
	if merged.Bids[0].Venue != models.VenueHyperliquid {
		t.Fatalf("tie-break for equal normalized prices must put HL first")
	}
}

func TestMergedOrderingAndDepth(t *testing.T) {
	hl := book(models.VenueHyperliquid,
		[][2]string{{"100", "1"}, {"98", "1"}, {"96", "1"}},
		[][2]string{{"101", "1"}, {"103", "1"}, {"105", "1"}},
	)
	pdx := book(models.VenueParadex,
		[][2]string{{"99", "1"}, {"97", "1"}},
		[][2]string{{"102", "1"}, {"104", "1"}},
	)

	for depth := 1; depth <= 5; depth++ {
		merged, _ := Build(hl, pdx, depth)
		if len(merged.Bids) > depth || len(merged.Asks) > depth {
			t.Fatalf("depth %d: sides exceed depth", depth)
		}
		for i := 1; i < len(merged.Bids); i++ {
			if merged.Bids[i].Price > merged.Bids[i-1].Price {
				t.Fatalf("depth %d: bids not descending", depth)
			}
		}
		for i := 1; i < len(merged.Asks); i++ {
			if merged.Asks[i].Price < merged.Asks[i-1].Price {
				t.Fatalf("depth %d: asks not ascending", depth)
			}
		}
	}
}

func TestPurity(t *testing.T) {
	hl := book(models.VenueHyperliquid,
		[][2]string{{"100", "1"}, {"99", "2"}},
		[][2]string{{"101", "1"}},
	)
	pdx := book(models.VenueParadex,
		[][2]string{{"100", "3"}},
		[][2]string{{"100.5", "2"}},
	)

	m1, s1 := Build(hl, pdx, 3)
	m2, s2 := Build(hl, pdx, 3)

	if !reflect.DeepEqual(m1, m2) {
		t.Fatalf("merged books differ across identical calls")
	}
	if !reflect.DeepEqual(s1, s2) {
		t.Fatalf("signals differ across identical calls")
	}
}

func TestEmptySides(t *testing.T) {
	hl := models.NewOrderBook(models.VenueHyperliquid, "TEST")
	pdx := models.NewOrderBook(models.VenueParadex, "TEST")

	merged, sig := Build(hl, pdx, 5)

	if len(merged.Bids) != 0 || len(merged.Asks) != 0 {
		t.Fatalf("empty inputs must produce empty merged book")
	}
	if sig.CrossSpread != nil {
		t.Fatalf("cross spread must be absent with empty books")
	}
	if sig.LIR != 0 {
		t.Fatalf("lir = %v, want 0 for empty notional", sig.LIR)
	}
	if sig.HLBBO.Bid != nil || sig.PDXBBO.Ask != nil {
		t.Fatalf("BBO must be absent for empty books")
	}
}

func TestBBOFromOriginalInputs(t *testing.T) {
	// depth 1 truncates PDX's bid out of the merged view; the per-venue
	// BBO must still come from the original inputs
	hl := book(models.VenueHyperliquid,
		[][2]string{{"100", "1"}},
		[][2]string{{"101", "1"}},
	)
	pdx := book(models.VenueParadex,
		[][2]string{{"99", "1"}},
		[][2]string{{"102", "1"}},
	)

	merged, sig := Build(hl, pdx, 1)

	if len(merged.Bids) != 1 || merged.Bids[0].Venue != models.VenueHyperliquid {
		t.Fatalf("depth 1 should keep only the HL bid")
	}
	if sig.PDXBBO.Bid == nil || *sig.PDXBBO.Bid != 99 {
		t.Fatalf("PDX BBO bid = %v, want 99", sig.PDXBBO.Bid)
	}
}

func TestLIRRange(t *testing.T) {
	cases := []struct {
		name     string
		hlBids   [][2]string
		pdxAsks  [][2]string
		wantSign float64
	}{
		{"pure bid pressure", [][2]string{{"100", "5"}}, nil, 1},
		{"pure ask pressure", nil, [][2]string{{"100", "5"}}, -1},
	}
	for _, c := range cases {
		hl := book(models.VenueHyperliquid, c.hlBids, nil)
		pdx := book(models.VenueParadex, nil, c.pdxAsks)
		_, sig := Build(hl, pdx, 5)
		if sig.LIR != c.wantSign {
			t.Errorf("%s: lir = %v, want %v", c.name, sig.LIR, c.wantSign)
		}
		if sig.LIR < -1 || sig.LIR > 1 {
			t.Errorf("%s: lir out of range", c.name)
		}
	}
}
