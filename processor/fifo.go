package processor

import (
	"math"

	"optionflow/models"
)

// qtyEpsilon absorbs floating-point dust in lot remainders; lots whose
// remaining quantity falls below it are dropped from inventory.
const qtyEpsilon = 1e-9

// MatchFIFO matches an incoming lot against existing same-leg inventory,
// oldest entries first. It is pure: the input slice is never mutated.
//
// When the inventory is empty or its oldest entry shares the incoming lot's
// direction there is nothing to close, and the incoming lot comes back as the
// remainder for the caller to open as new inventory. Otherwise inventory is
// consumed front-to-back until the incoming quantity is exhausted; if the
// incoming quantity outlives all inventory the unconsumed remainder flips the
// position and is returned as a lot of the opposite direction.
func MatchFIFO(inventory []models.Lot, incoming models.Lot) (remaining []models.Lot, realized float64, remainder *models.Lot) {
	remaining = append([]models.Lot(nil), inventory...)

	if incoming.Quantity <= qtyEpsilon {
		return remaining, 0, nil
	}
	if len(remaining) == 0 || remaining[0].Direction == incoming.Direction {
		lot := incoming
		return remaining, 0, &lot
	}

	qty := incoming.Quantity
	for len(remaining) > 0 && qty > qtyEpsilon {
		oldest := &remaining[0]
		closed := math.Min(oldest.Quantity, qty)

		if oldest.Direction > 0 {
			// closing a long with a sell
			realized += (incoming.Price - oldest.Price) * closed
		} else {
			// closing a short with a buy
			realized += (oldest.Price - incoming.Price) * closed
		}

		oldest.Quantity -= closed
		qty -= closed
		if oldest.Quantity <= qtyEpsilon {
			remaining = remaining[1:]
		}
	}

	if qty > qtyEpsilon {
		// direction flip: whatever the inventory could not absorb opens
		// fresh inventory on the other side
		return remaining, realized, &models.Lot{
			Quantity:  qty,
			Price:     incoming.Price,
			Direction: incoming.Direction,
		}
	}
	return remaining, realized, nil
}
