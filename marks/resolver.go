package marks

import (
	"time"

	"optionflow/internal/symbols"
	"optionflow/models"
)

// ResolveVenue applies the two-level override: the leg venue wins when set,
// otherwise the structure venue applies. Empty means unresolved.
func ResolveVenue(leg, structure models.Venue) models.Venue {
	if leg != "" {
		return leg
	}
	return structure
}

// ResolveExpiry applies the same override to expiries. The zero time means
// unresolved.
func ResolveExpiry(leg, structure time.Time) time.Time {
	if !leg.IsZero() {
		return leg
	}
	return structure
}

// Resolve derives the mark reference for one leg of a position: the venue
// instrument symbol, its cache key and the default contract multiplier.
// It returns nil when no mark is obtainable, i.e. when neither the leg nor
// the structure resolves a venue or an expiry, or when the venue symbol
// cannot be built.
func Resolve(pos *models.Position, leg *models.Leg) *models.MarkRef {
	venue := ResolveVenue(leg.Venue, pos.Venue)
	if venue == "" {
		return nil
	}
	expiry := ResolveExpiry(leg.Expiry, pos.Expiry)
	if expiry.IsZero() {
		return nil
	}

	symbol, err := symbols.Build(venue, symbols.Instrument{
		Underlying: pos.Underlying,
		Expiry:     expiry,
		Strike:     leg.Strike,
		OptionType: leg.OptionType,
	})
	if err != nil {
		return nil
	}

	return &models.MarkRef{
		Venue:      venue,
		Symbol:     symbol,
		Key:        symbols.CacheKey(venue, symbol),
		Multiplier: models.DefaultMultiplier,
	}
}
