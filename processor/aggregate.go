package processor

import (
	"math"
	"time"

	"optionflow/logger"
	"optionflow/models"
)

// Snapshot is the result of one full aggregation run over a transaction set.
// Positions are reproducible projections of the input; nothing is mutated
// incrementally between runs.
type Snapshot struct {
	Positions   []*models.Position   `json:"positions"`
	Dropped     []models.TradeRecord `json:"dropped,omitempty"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Aggregator turns a raw trade set into valued position structures.
type Aggregator struct {
	log *logger.Log
}

func NewAggregator() *Aggregator {
	return &Aggregator{log: logger.GetLogger()}
}

// Aggregate recomputes all structures from the full trade set. now anchors
// the days-to-expiry computation.
func (a *Aggregator) Aggregate(trades []models.TradeRecord, now time.Time) *Snapshot {
	groups, dropped := GroupStructures(trades)

	positions := make([]*models.Position, 0, len(groups))
	for _, group := range groups {
		positions = append(positions, buildPosition(group, now))
	}

	if len(dropped) > 0 {
		a.log.WithComponent("aggregator").WithFields(logger.Fields{
			"dropped": len(dropped),
		}).Warn("trades missing leg fields were dropped from aggregation")
	}
	a.log.WithComponent("aggregator").WithFields(logger.Fields{
		"trades":     len(trades),
		"structures": len(positions),
	}).Info("aggregation run complete")

	return &Snapshot{
		Positions:   positions,
		Dropped:     dropped,
		GeneratedAt: now,
	}
}

func buildPosition(group *TradeGroup, now time.Time) *models.Position {
	legs := BuildLegs(group.Trades)

	pos := &models.Position{
		Venue:        group.Venue,
		Underlying:   group.Underlying,
		StructureKey: group.StructureKey,
		Legs:         legs,
		LegsCount:    len(legs),
		Type:         models.PositionSingle,
	}
	if len(legs) > 1 {
		pos.Type = models.PositionMulti
	}

	var premiumSum float64
	for _, leg := range legs {
		pos.RealizedPnl += leg.RealizedPnl
		premiumSum += leg.NetPremium
	}
	// legs can partially offset in sign before taking the absolute value
	pos.NetPremium = math.Abs(premiumSum)

	pos.Expiry = EarliestExpiry(legs)
	pos.DTE = DaysToExpiry(pos.Expiry, now)

	if pos.NetPremium > 0 {
		pct := pos.RealizedPnl / pos.NetPremium * 100
		pos.PnlPct = &pct
	}

	pos.Status = ClassifyStatus(pos.DTE, pos.PnlPct, pos.RealizedPnl)
	return pos
}

// DaysToExpiry is ceil((expiry UTC midnight - now) / 1 day). Expiries parsed
// from venue symbols are already anchored at UTC midnight.
func DaysToExpiry(expiry time.Time, now time.Time) int {
	if expiry.IsZero() {
		return 0
	}
	e := expiry.UTC()
	midnight := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(midnight.Sub(now).Hours() / 24))
}
