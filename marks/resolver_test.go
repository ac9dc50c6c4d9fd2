package marks

import (
	"testing"
	"time"

	"optionflow/models"
)

var expiry = time.Date(2025, time.September, 26, 0, 0, 0, 0, time.UTC)

func strangle() (*models.Position, *models.Leg) {
	leg := &models.Leg{
		Expiry:     expiry,
		Strike:     50000,
		OptionType: models.OptionCall,
	}
	pos := &models.Position{
		Venue:      models.VenueDeribit,
		Underlying: "BTC",
		Expiry:     expiry,
		Legs:       []*models.Leg{leg},
	}
	return pos, leg
}

func TestResolveBuildsVenueSymbol(t *testing.T) {
	pos, leg := strangle()
	ref := Resolve(pos, leg)
	if ref == nil {
		t.Fatal("resolve returned nil")
	}
	if ref.Symbol != "BTC-26SEP25-50000-C" {
		t.Errorf("symbol = %s", ref.Symbol)
	}
	if ref.Key != "deribit:BTC-26SEP25-50000-C" {
		t.Errorf("key = %s", ref.Key)
	}
	if ref.Multiplier != models.DefaultMultiplier {
		t.Errorf("multiplier = %v", ref.Multiplier)
	}

	pos.Venue = models.VenueBybit
	ref = Resolve(pos, leg)
	if ref == nil || ref.Symbol != "BTCUSD-26SEP25-50000-C" {
		t.Errorf("bybit ref = %+v", ref)
	}
}

func TestResolveLegOverridesStructure(t *testing.T) {
	pos, leg := strangle()
	leg.Venue = models.VenueBybit
	ref := Resolve(pos, leg)
	if ref == nil || ref.Venue != models.VenueBybit {
		t.Errorf("ref = %+v, want bybit venue", ref)
	}

	// leg expiry wins over structure expiry
	leg.Expiry = expiry.AddDate(0, 1, 0)
	ref = Resolve(pos, leg)
	if ref == nil || ref.Symbol != "BTCUSD-26OCT25-50000-C" {
		t.Errorf("ref = %+v", ref)
	}
}

func TestResolveNilWhenUnresolvable(t *testing.T) {
	pos, leg := strangle()
	pos.Venue = ""
	leg.Venue = ""
	if ref := Resolve(pos, leg); ref != nil {
		t.Errorf("expected nil without any venue, got %+v", ref)
	}

	pos, leg = strangle()
	pos.Expiry = time.Time{}
	leg.Expiry = time.Time{}
	if ref := Resolve(pos, leg); ref != nil {
		t.Errorf("expected nil without any expiry, got %+v", ref)
	}

	// unbuildable symbol (no strike)
	pos, leg = strangle()
	leg.Strike = 0
	if ref := Resolve(pos, leg); ref != nil {
		t.Errorf("expected nil for unbuildable symbol, got %+v", ref)
	}
}

func TestResolveFallbackFromStructure(t *testing.T) {
	pos, leg := strangle()
	leg.Venue = ""
	leg.Expiry = time.Time{}
	ref := Resolve(pos, leg)
	if ref == nil {
		t.Fatal("resolve returned nil")
	}
	if ref.Venue != models.VenueDeribit || ref.Symbol != "BTC-26SEP25-50000-C" {
		t.Errorf("ref = %+v", ref)
	}
}
