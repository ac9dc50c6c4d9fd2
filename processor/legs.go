package processor

import (
	"math"
	"time"

	"optionflow/models"
)

type legKey struct {
	expiry     int64
	strike     float64
	optionType models.OptionType
}

// BuildLegs folds one structure's trades into legs keyed by
// (expiry, strike, option type). Trades are folded in input order; each
// becomes a signed lot that either opens new inventory or is routed through
// the FIFO matcher as a closing trade. Net premium accumulates
// premium-received-positive and net quantity accumulates independently of how
// matching split the inventory.
func BuildLegs(trades []models.TradeRecord) []*models.Leg {
	legs := make(map[legKey]*models.Leg)
	var order []legKey

	for _, trade := range trades {
		if !trade.HasLegFields() {
			continue
		}
		key := legKey{
			expiry:     trade.Expiry.UnixMilli(),
			strike:     trade.Strike,
			optionType: trade.OptionType,
		}
		leg, ok := legs[key]
		if !ok {
			leg = &models.Leg{
				Expiry:     trade.Expiry,
				Strike:     trade.Strike,
				OptionType: trade.OptionType,
				Venue:      trade.Venue,
			}
			legs[key] = leg
			order = append(order, key)
		}

		qty := math.Abs(trade.Amount)
		dir := trade.Direction()

		leg.NetPremium += -float64(dir) * trade.Price * qty
		leg.NetQuantity += float64(dir) * qty
		leg.Trades = append(leg.Trades, trade)

		lot := models.Lot{Quantity: qty, Price: trade.Price, Direction: dir}
		inventory, realized, remainder := MatchFIFO(leg.OpenLots, lot)
		leg.OpenLots = inventory
		leg.RealizedPnl += realized
		if remainder != nil {
			leg.OpenLots = append(leg.OpenLots, *remainder)
		}
	}

	out := make([]*models.Leg, 0, len(order))
	for _, key := range order {
		out = append(out, legs[key])
	}
	return out
}

// EarliestExpiry returns the primary expiry among legs: the earliest one.
// The zero time is returned when no leg carries an expiry.
func EarliestExpiry(legs []*models.Leg) time.Time {
	var earliest time.Time
	for _, leg := range legs {
		if leg.Expiry.IsZero() {
			continue
		}
		if earliest.IsZero() || leg.Expiry.Before(earliest) {
			earliest = leg.Expiry
		}
	}
	return earliest
}
