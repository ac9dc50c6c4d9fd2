package marks

import (
	"math"
	"testing"

	"optionflow/models"
)

func TestLegUnrealizedPnl(t *testing.T) {
	leg := &models.Leg{
		OpenLots: []models.Lot{
			{Quantity: 2, Price: 100, Direction: 1},
			{Quantity: 1, Price: 110, Direction: 1},
		},
	}
	// 2*(120-100) + 1*(120-110) = 50
	if got := LegUnrealizedPnl(leg, 120, 1); got != 50 {
		t.Errorf("unrealized = %v, want 50", got)
	}
	// multiplier scales linearly
	if got := LegUnrealizedPnl(leg, 120, 0.1); math.Abs(got-5) > 1e-12 {
		t.Errorf("unrealized = %v, want 5", got)
	}

	short := &models.Leg{
		OpenLots: []models.Lot{{Quantity: 3, Price: 200, Direction: -1}},
	}
	// -3*(180-200) = 60
	if got := LegUnrealizedPnl(short, 180, 1); got != 60 {
		t.Errorf("short unrealized = %v, want 60", got)
	}
}

func TestLegGreekExposureUsesNetQuantity(t *testing.T) {
	leg := &models.Leg{
		NetQuantity: -2,
		// open lots deliberately inconsistent with net quantity; greeks
		// must follow the net signed quantity, not the lots
		OpenLots: []models.Lot{{Quantity: 5, Price: 1, Direction: 1}},
	}
	per := models.Greeks{Delta: 0.5, Gamma: 0.01, Theta: -20, Vega: 10, Rho: 1}
	got := LegGreekExposure(leg, per, 1)
	want := models.Greeks{Delta: -1, Gamma: -0.02, Theta: 40, Vega: -20, Rho: -2}
	if got != want {
		t.Errorf("exposure = %+v, want %+v", got, want)
	}
}

func TestValuePosition(t *testing.T) {
	cache := NewCache()
	callLeg := &models.Leg{
		Expiry:      expiry,
		Strike:      50000,
		OptionType:  models.OptionCall,
		NetQuantity: 2,
		OpenLots:    []models.Lot{{Quantity: 2, Price: 0.04, Direction: 1}},
	}
	putLeg := &models.Leg{
		Expiry:      expiry,
		Strike:      45000,
		OptionType:  models.OptionPut,
		NetQuantity: -1,
		OpenLots:    []models.Lot{{Quantity: 1, Price: 0.03, Direction: -1}},
	}
	pos := &models.Position{
		Venue:      models.VenueDeribit,
		Underlying: "BTC",
		Expiry:     expiry,
		Legs:       []*models.Leg{callLeg, putLeg},
	}

	cache.MergeAll(map[string]models.MarkInfo{
		"deribit:BTC-26SEP25-50000-C": {
			Price:  fptr(0.05),
			Greeks: &models.Greeks{Delta: 0.6},
		},
		// put has no cached price: skipped, not an error
	})

	val := Value(pos, cache)
	if val.MarkedLegs != 1 {
		t.Errorf("marked legs = %d, want 1", val.MarkedLegs)
	}
	if math.Abs(val.UnrealizedPnl-0.02) > 1e-12 {
		t.Errorf("unrealized = %v, want 0.02", val.UnrealizedPnl)
	}
	if math.Abs(val.Greeks.Delta-1.2) > 1e-12 {
		t.Errorf("delta = %v, want 1.2", val.Greeks.Delta)
	}
}

func TestValueUsesFetchedMultiplier(t *testing.T) {
	cache := NewCache()
	leg := &models.Leg{
		Expiry:      expiry,
		Strike:      50000,
		OptionType:  models.OptionCall,
		NetQuantity: 1,
		OpenLots:    []models.Lot{{Quantity: 1, Price: 100, Direction: 1}},
	}
	pos := &models.Position{
		Venue:      models.VenueBybit,
		Underlying: "BTC",
		Expiry:     expiry,
		Legs:       []*models.Leg{leg},
	}
	cache.MergeAll(map[string]models.MarkInfo{
		"bybit:BTCUSD-26SEP25-50000-C": {
			Price:      fptr(150),
			Multiplier: fptr(0.01),
		},
	})

	val := Value(pos, cache)
	// (150-100) * 0.01
	if math.Abs(val.UnrealizedPnl-0.5) > 1e-12 {
		t.Errorf("unrealized = %v, want 0.5", val.UnrealizedPnl)
	}
}

func TestPortfolioGreeks(t *testing.T) {
	vals := []PositionValuation{
		{Greeks: models.Greeks{Delta: 1, Vega: 5}},
		{Greeks: models.Greeks{Delta: -0.4, Vega: 2}},
	}
	got := PortfolioGreeks(vals)
	if math.Abs(got.Delta-0.6) > 1e-12 || math.Abs(got.Vega-7) > 1e-12 {
		t.Errorf("portfolio greeks = %+v", got)
	}
}
