package processor

import "optionflow/models"

// TradeGroup is the set of trades belonging to one physical structure.
type TradeGroup struct {
	Venue        models.Venue
	Underlying   string
	StructureKey string
	Trades       []models.TradeRecord
}

type groupKey struct {
	venue        models.Venue
	underlying   string
	structureKey string
}

// GroupStructures partitions trades into structures by
// (venue, underlying, structure key). Groups come back in first-appearance
// order. Rows missing leg-identifying fields cannot be placed on a structure
// and are returned separately so callers can surface them.
func GroupStructures(trades []models.TradeRecord) (groups []*TradeGroup, dropped []models.TradeRecord) {
	byKey := make(map[groupKey]*TradeGroup)

	for _, trade := range trades {
		if !trade.HasLegFields() {
			dropped = append(dropped, trade)
			continue
		}
		key := groupKey{
			venue:        trade.Venue,
			underlying:   trade.Underlying,
			structureKey: trade.StructureKey,
		}
		group, ok := byKey[key]
		if !ok {
			group = &TradeGroup{
				Venue:        trade.Venue,
				Underlying:   trade.Underlying,
				StructureKey: trade.StructureKey,
			}
			byKey[key] = group
			groups = append(groups, group)
		}
		group.Trades = append(group.Trades, trade)
	}
	return groups, dropped
}
