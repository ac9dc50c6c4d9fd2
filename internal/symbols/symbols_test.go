package symbols

import (
	"testing"
	"time"

	"optionflow/models"
)

func TestParseDeribit(t *testing.T) {
	inst, err := Parse(models.VenueDeribit, "BTC-5SEP25-50000-C")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if inst.Underlying != "BTC" {
		t.Errorf("underlying: %s", inst.Underlying)
	}
	want := time.Date(2025, time.September, 5, 0, 0, 0, 0, time.UTC)
	if !inst.Expiry.Equal(want) {
		t.Errorf("expiry: %v want %v", inst.Expiry, want)
	}
	if inst.Strike != 50000 {
		t.Errorf("strike: %v", inst.Strike)
	}
	if inst.OptionType != models.OptionCall {
		t.Errorf("option type: %s", inst.OptionType)
	}
}

func TestParseBybitIndexSuffix(t *testing.T) {
	inst, err := Parse(models.VenueBybit, "ETHUSD-05SEP25-3200-P")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if inst.Underlying != "ETH" {
		t.Errorf("underlying: %s", inst.Underlying)
	}
	if inst.OptionType != models.OptionPut {
		t.Errorf("option type: %s", inst.OptionType)
	}
	if _, err := Parse(models.VenueBybit, "ETH-05SEP25-3200-P"); err == nil {
		t.Errorf("expected error for missing USD suffix")
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		venue models.Venue
		sym   string
	}{
		{models.VenueDeribit, "BTC-26SEP25-50000"},
		{models.VenueDeribit, "BTC-26SEP25-50000-X"},
		{models.VenueDeribit, "BTC-31FEB25-50000-C"},
		{models.VenueDeribit, "BTC-26XXX25-50000-C"},
		{models.VenueDeribit, "BTC-26SEP25-0-C"},
		{models.VenueDeribit, "BTC-26SEP25--50-C"},
		{models.VenueDeribit, "-26SEP25-50000-C"},
		{models.VenueBybit, "USD-26SEP25-50000-C"},
	}
	for _, tt := range cases {
		if _, err := Parse(tt.venue, tt.sym); err == nil {
			t.Errorf("Parse(%s,%s): expected error", tt.venue, tt.sym)
		}
	}
}

// Round-trip fidelity: parsing a valid symbol and rebuilding it reproduces
// the original for all day/month/year/strike combinations we care about.
func TestRoundTrip(t *testing.T) {
	deribit := []string{
		"BTC-5SEP25-50000-C",
		"BTC-26SEP25-50000-C",
		"ETH-1JAN26-3200-P",
		"SOL-31DEC27-150-C",
		"XRP-9FEB26-0.55-P",
	}
	for _, sym := range deribit {
		inst, err := Parse(models.VenueDeribit, sym)
		if err != nil {
			t.Fatalf("parse %s: %v", sym, err)
		}
		got, err := Build(models.VenueDeribit, inst)
		if err != nil {
			t.Fatalf("build %s: %v", sym, err)
		}
		if got != sym {
			t.Errorf("round trip %s -> %s", sym, got)
		}
	}

	bybit := []string{
		"BTCUSD-05SEP25-50000-C",
		"BTCUSD-26SEP25-40000-P",
		"ETHUSD-01JAN26-3200-C",
	}
	for _, sym := range bybit {
		inst, err := Parse(models.VenueBybit, sym)
		if err != nil {
			t.Fatalf("parse %s: %v", sym, err)
		}
		got, err := Build(models.VenueBybit, inst)
		if err != nil {
			t.Fatalf("build %s: %v", sym, err)
		}
		if got != sym {
			t.Errorf("round trip %s -> %s", sym, got)
		}
	}
}

func TestBuildDayPadding(t *testing.T) {
	inst := Instrument{
		Underlying: "btc",
		Expiry:     time.Date(2025, time.September, 5, 0, 0, 0, 0, time.UTC),
		Strike:     50000,
		OptionType: models.OptionCall,
	}
	d, err := Build(models.VenueDeribit, inst)
	if err != nil {
		t.Fatalf("build deribit: %v", err)
	}
	if d != "BTC-5SEP25-50000-C" {
		t.Errorf("deribit symbol: %s", d)
	}
	b, err := Build(models.VenueBybit, inst)
	if err != nil {
		t.Fatalf("build bybit: %v", err)
	}
	if b != "BTCUSD-05SEP25-50000-C" {
		t.Errorf("bybit symbol: %s", b)
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey(models.VenueDeribit, "BTC-26SEP25-50000-C"); got != "deribit:BTC-26SEP25-50000-C" {
		t.Errorf("cache key: %s", got)
	}
}
