package symbols

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"optionflow/models"
)

// Instrument is the parsed form of a venue option symbol. Expiry is anchored
// at UTC midnight of the expiry date.
type Instrument struct {
	Underlying string
	Expiry     time.Time
	Strike     float64
	OptionType models.OptionType
}

var monthCodes = map[time.Month]string{
	time.January: "JAN", time.February: "FEB", time.March: "MAR",
	time.April: "APR", time.May: "MAY", time.June: "JUN",
	time.July: "JUL", time.August: "AUG", time.September: "SEP",
	time.October: "OCT", time.November: "NOV", time.December: "DEC",
}

var monthsByCode = func() map[string]time.Month {
	m := make(map[string]time.Month, len(monthCodes))
	for month, code := range monthCodes {
		m[code] = month
	}
	return m
}()

// Parse decodes a venue option symbol into its instrument fields.
// Deribit symbols look like BTC-26SEP25-50000-C with the day of month
// unpadded; Bybit symbols look like BTCUSD-05SEP25-50000-C with the index
// suffix on the underlying and a zero-padded day. Parsing is lenient about
// day padding and case; Build regenerates the canonical form.
func Parse(venue models.Venue, symbol string) (Instrument, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(symbol)), "-")
	if len(parts) != 4 {
		return Instrument{}, fmt.Errorf("symbol %q: expected 4 dash-separated fields, got %d", symbol, len(parts))
	}

	underlying := parts[0]
	if venue == models.VenueBybit {
		if !strings.HasSuffix(underlying, "USD") || len(underlying) <= 3 {
			return Instrument{}, fmt.Errorf("symbol %q: bybit underlying must carry the USD index suffix", symbol)
		}
		underlying = strings.TrimSuffix(underlying, "USD")
	}
	if underlying == "" {
		return Instrument{}, fmt.Errorf("symbol %q: empty underlying", symbol)
	}

	expiry, err := parseExpiry(parts[1])
	if err != nil {
		return Instrument{}, fmt.Errorf("symbol %q: %w", symbol, err)
	}

	strike, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || strike <= 0 {
		return Instrument{}, fmt.Errorf("symbol %q: invalid strike %q", symbol, parts[2])
	}

	var optType models.OptionType
	switch parts[3] {
	case "C":
		optType = models.OptionCall
	case "P":
		optType = models.OptionPut
	default:
		return Instrument{}, fmt.Errorf("symbol %q: invalid option type %q", symbol, parts[3])
	}

	return Instrument{
		Underlying: underlying,
		Expiry:     expiry,
		Strike:     strike,
		OptionType: optType,
	}, nil
}

// Build regenerates the canonical venue symbol for an instrument. It is the
// inverse of Parse: Build(venue, Parse(venue, s)) == s for every valid,
// case-normalized symbol s.
func Build(venue models.Venue, inst Instrument) (string, error) {
	if inst.Underlying == "" {
		return "", fmt.Errorf("instrument has no underlying")
	}
	if inst.Expiry.IsZero() {
		return "", fmt.Errorf("instrument has no expiry")
	}
	if inst.Strike <= 0 {
		return "", fmt.Errorf("instrument has invalid strike %v", inst.Strike)
	}
	if inst.OptionType != models.OptionCall && inst.OptionType != models.OptionPut {
		return "", fmt.Errorf("instrument has invalid option type %q", inst.OptionType)
	}

	underlying := strings.ToUpper(inst.Underlying)
	var expiry string
	switch venue {
	case models.VenueDeribit:
		expiry = formatExpiry(inst.Expiry, false)
	case models.VenueBybit:
		underlying += "USD"
		expiry = formatExpiry(inst.Expiry, true)
	default:
		return "", fmt.Errorf("unsupported venue %q", venue)
	}

	strike := strconv.FormatFloat(inst.Strike, 'f', -1, 64)
	return fmt.Sprintf("%s-%s-%s-%s", underlying, expiry, strike, inst.OptionType), nil
}

// CacheKey derives the mark cache key for a venue symbol.
func CacheKey(venue models.Venue, symbol string) string {
	return string(venue) + ":" + symbol
}

// parseExpiry decodes D[D]MONYY into UTC midnight of that date.
func parseExpiry(s string) (time.Time, error) {
	if len(s) < 6 || len(s) > 7 {
		return time.Time{}, fmt.Errorf("invalid expiry %q", s)
	}
	dayDigits := len(s) - 5

	day, err := strconv.Atoi(s[:dayDigits])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry day in %q", s)
	}

	month, ok := monthsByCode[s[dayDigits:dayDigits+3]]
	if !ok {
		return time.Time{}, fmt.Errorf("invalid expiry month in %q", s)
	}

	year, err := strconv.Atoi(s[dayDigits+3:])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry year in %q", s)
	}

	expiry := time.Date(2000+year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (e.g. 31FEB); reject anything that moved.
	if expiry.Day() != day || expiry.Month() != month {
		return time.Time{}, fmt.Errorf("expiry %q is not a calendar date", s)
	}
	return expiry, nil
}

func formatExpiry(t time.Time, padDay bool) string {
	t = t.UTC()
	day := t.Day()
	code := monthCodes[t.Month()]
	year := t.Year() % 100
	if padDay {
		return fmt.Sprintf("%02d%s%02d", day, code, year)
	}
	return fmt.Sprintf("%d%s%02d", day, code, year)
}
