package marks

import "optionflow/models"

// LegUnrealizedPnl values a leg's open inventory against a mark price:
// each lot contributes direction * qty * (mark - entry) * multiplier.
func LegUnrealizedPnl(leg *models.Leg, markPrice, multiplier float64) float64 {
	var pnl float64
	for _, lot := range leg.OpenLots {
		pnl += float64(lot.Direction) * lot.Quantity * (markPrice - lot.Price) * multiplier
	}
	return pnl
}

// LegGreekExposure scales a per-contract greek by the leg's net signed
// quantity. Greeks are instantaneous per-contract sensitivities that scale
// linearly with net exposure, unlike PnL which depends on each lot's entry
// price, so the net quantity is the right weight here.
func LegGreekExposure(leg *models.Leg, perContract models.Greeks, multiplier float64) models.Greeks {
	return perContract.Scale(leg.NetQuantity * multiplier)
}

// PositionValuation is a position joined with its live-market exposure.
type PositionValuation struct {
	Position      *models.Position `json:"position"`
	UnrealizedPnl float64          `json:"unrealized_pnl"`
	Greeks        models.Greeks    `json:"greeks"`
	// MarkedLegs counts legs with a resolvable, priced mark; legs without
	// one contribute nothing.
	MarkedLegs int `json:"marked_legs"`
}

// Value computes a position's unrealized PnL and greek exposure from the
// cached marks. Legs with no resolvable reference or no cached price are
// skipped.
func Value(pos *models.Position, cache *Cache) PositionValuation {
	val := PositionValuation{Position: pos}
	for _, leg := range pos.Legs {
		ref := Resolve(pos, leg)
		if ref == nil {
			continue
		}
		info, ok := cache.Get(ref.Key)
		if !ok || info.Price == nil {
			continue
		}

		multiplier := ref.Multiplier
		if info.Multiplier != nil {
			multiplier = *info.Multiplier
		}

		val.UnrealizedPnl += LegUnrealizedPnl(leg, *info.Price, multiplier)
		if info.Greeks != nil {
			val.Greeks = val.Greeks.Add(LegGreekExposure(leg, *info.Greeks, multiplier))
		}
		val.MarkedLegs++
	}
	return val
}

// ValueAll values every position against the cache.
func ValueAll(positions []*models.Position, cache *Cache) []PositionValuation {
	out := make([]PositionValuation, 0, len(positions))
	for _, pos := range positions {
		out = append(out, Value(pos, cache))
	}
	return out
}

// PortfolioGreeks sums greek exposure across valuations.
func PortfolioGreeks(valuations []PositionValuation) models.Greeks {
	var total models.Greeks
	for _, val := range valuations {
		total = total.Add(val.Greeks)
	}
	return total
}
