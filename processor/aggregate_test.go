package processor

import (
	"math"
	"testing"
	"time"

	"optionflow/models"
)

func TestClassifyStatusBoundaries(t *testing.T) {
	pct := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		dte      int
		pnlPct   *float64
		realized float64
		want     models.Status
	}{
		{"near expiry", 5, nil, 0, models.StatusAlert},
		{"alert dte boundary", 7, pct(5), 0, models.StatusAlert},
		{"deep pct loss", 20, pct(-10), 0, models.StatusAlert},
		{"deep absolute loss", 20, pct(5), -100, models.StatusAlert},
		{"small loss", 20, pct(-1), 0, models.StatusAttention},
		{"attention dte boundary", 14, pct(5), 0, models.StatusAttention},
		{"healthy", 20, pct(5), 0, models.StatusOpen},
		{"healthy no pct", 20, nil, 0, models.StatusOpen},
	}
	for _, tt := range tests {
		if got := ClassifyStatus(tt.dte, tt.pnlPct, tt.realized); got != tt.want {
			t.Errorf("%s: ClassifyStatus(%d, %v, %v) = %s, want %s",
				tt.name, tt.dte, tt.pnlPct, tt.realized, got, tt.want)
		}
	}
}

func TestDaysToExpiry(t *testing.T) {
	expiry := time.Date(2025, time.September, 26, 0, 0, 0, 0, time.UTC)

	now := time.Date(2025, time.September, 16, 0, 0, 0, 0, time.UTC)
	if got := DaysToExpiry(expiry, now); got != 10 {
		t.Errorf("dte = %d, want 10", got)
	}

	// partial day rounds up
	now = time.Date(2025, time.September, 16, 18, 0, 0, 0, time.UTC)
	if got := DaysToExpiry(expiry, now); got != 10 {
		t.Errorf("dte = %d, want 10", got)
	}
	now = time.Date(2025, time.September, 25, 6, 0, 0, 0, time.UTC)
	if got := DaysToExpiry(expiry, now); got != 1 {
		t.Errorf("dte = %d, want 1", got)
	}

	// past expiry goes negative or zero, never clamps
	now = time.Date(2025, time.September, 28, 0, 0, 0, 0, time.UTC)
	if got := DaysToExpiry(expiry, now); got != -2 {
		t.Errorf("dte = %d, want -2", got)
	}

	if got := DaysToExpiry(time.Time{}, now); got != 0 {
		t.Errorf("dte of zero expiry = %d, want 0", got)
	}
}

func TestGroupStructures(t *testing.T) {
	a1 := btcTrade(models.SideBuy, 1, 100)
	a1.StructureKey = "strangle-1"
	a2 := btcTrade(models.SideSell, 1, 110)
	a2.StructureKey = "strangle-1"
	b := btcTrade(models.SideBuy, 1, 100)
	b.StructureKey = "other"
	otherVenue := btcTrade(models.SideBuy, 1, 100)
	otherVenue.StructureKey = "strangle-1"
	otherVenue.Venue = models.VenueBybit
	missing := models.TradeRecord{Instrument: "garbage", Side: models.SideBuy, Amount: 1, Price: 1, Venue: models.VenueDeribit}

	groups, dropped := GroupStructures([]models.TradeRecord{a1, a2, b, otherVenue, missing})
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}
	if len(groups[0].Trades) != 2 {
		t.Errorf("first group trades = %d, want 2", len(groups[0].Trades))
	}
	if len(dropped) != 1 {
		t.Errorf("dropped = %d, want 1", len(dropped))
	}
}

func TestAggregateBuildsPositions(t *testing.T) {
	now := time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)

	call := btcTrade(models.SideSell, 2, 500)
	call.StructureKey = "strangle-1"
	put := btcTrade(models.SideSell, 2, 400)
	put.OptionType = models.OptionPut
	put.Instrument = "BTC-26SEP25-50000-P"
	put.StructureKey = "strangle-1"

	snap := NewAggregator().Aggregate([]models.TradeRecord{call, put}, now)
	if len(snap.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(snap.Positions))
	}
	pos := snap.Positions[0]
	if pos.LegsCount != 2 || pos.Type != models.PositionMulti {
		t.Errorf("legs=%d type=%s", pos.LegsCount, pos.Type)
	}
	// two sells: premium received 2*500 + 2*400 = 1800
	if math.Abs(pos.NetPremium-1800) > 1e-9 {
		t.Errorf("net premium = %v, want 1800", pos.NetPremium)
	}
	if pos.RealizedPnl != 0 {
		t.Errorf("realized = %v, want 0", pos.RealizedPnl)
	}
	if pos.DTE != 25 {
		t.Errorf("dte = %d, want 25", pos.DTE)
	}
	if pos.PnlPct == nil || *pos.PnlPct != 0 {
		t.Errorf("pnl pct = %v, want 0", pos.PnlPct)
	}
	if pos.Status != models.StatusOpen {
		t.Errorf("status = %s, want OPEN", pos.Status)
	}
}

func TestAggregatePnlPctNilWithoutPremium(t *testing.T) {
	now := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	// buy and sell the same notional: premium nets to zero
	buy := btcTrade(models.SideBuy, 1, 100)
	sell := btcTrade(models.SideSell, 1, 100)

	snap := NewAggregator().Aggregate([]models.TradeRecord{buy, sell}, now)
	if len(snap.Positions) != 1 {
		t.Fatalf("positions = %d", len(snap.Positions))
	}
	if snap.Positions[0].PnlPct != nil {
		t.Errorf("pnl pct = %v, want nil", *snap.Positions[0].PnlPct)
	}
}
