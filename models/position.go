package models

import "time"

// Lot is an indivisible slice of a leg's open inventory. Quantity is always
// non-negative; Direction carries the sign (+1 long, -1 short).
type Lot struct {
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Direction int     `json:"direction"`
}

// Leg is the inventory and realized history for one unique
// (expiry, strike, option type) contract within a structure.
type Leg struct {
	Expiry     time.Time  `json:"expiry"`
	Strike     float64    `json:"strike"`
	OptionType OptionType `json:"option_type"`
	// Venue overrides the structure venue when set.
	Venue Venue `json:"venue,omitempty"`

	OpenLots []Lot `json:"open_lots"`
	// RealizedPnl is the sum over all FIFO matches within this leg.
	RealizedPnl float64 `json:"realized_pnl"`
	// NetPremium accumulates premium-received-positive: sells add
	// price*|qty|, buys subtract it.
	NetPremium float64 `json:"net_premium"`
	// NetQuantity is the signed contract count, independent of how FIFO
	// matching split the inventory.
	NetQuantity float64 `json:"net_quantity"`

	Trades []TradeRecord `json:"trades,omitempty"`
}

// Status is the risk classification surfaced for a position.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusAttention Status = "ATTENTION"
	StatusAlert     Status = "ALERT"
	// StatusClosed is a persisted lifecycle override set by the caller,
	// never computed by the classifier.
	StatusClosed Status = "CLOSED"
)

// Position type values.
const (
	PositionSingle = "single"
	PositionMulti  = "multi"
)

// Position is a structure: the set of option legs grouped as one economic
// strategy. Positions are recomputed wholesale from the full trade set on
// every aggregation run; they are projections of history, not mutable state.
type Position struct {
	Venue        Venue  `json:"venue"`
	Underlying   string `json:"underlying"`
	StructureKey string `json:"structure_key"`

	Legs      []*Leg `json:"legs"`
	LegsCount int    `json:"legs_count"`
	Type      string `json:"type"` // single or multi

	// Expiry is the earliest leg expiry, anchored at UTC midnight.
	Expiry time.Time `json:"expiry"`
	DTE    int       `json:"dte"`

	RealizedPnl float64  `json:"realized_pnl"`
	NetPremium  float64  `json:"net_premium"`
	PnlPct      *float64 `json:"pnl_pct,omitempty"`

	Status Status `json:"status"`
	// Closed mirrors the persisted open/closed lifecycle owned by the
	// caller. When set, Status reads CLOSED regardless of classification.
	Closed bool `json:"closed,omitempty"`
}

// Greeks is a per-contract or aggregated sensitivity tuple.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// Add accumulates g2 into a copy of g.
func (g Greeks) Add(g2 Greeks) Greeks {
	return Greeks{
		Delta: g.Delta + g2.Delta,
		Gamma: g.Gamma + g2.Gamma,
		Theta: g.Theta + g2.Theta,
		Vega:  g.Vega + g2.Vega,
		Rho:   g.Rho + g2.Rho,
	}
}

// Scale multiplies every greek by k.
func (g Greeks) Scale(k float64) Greeks {
	return Greeks{
		Delta: g.Delta * k,
		Gamma: g.Gamma * k,
		Theta: g.Theta * k,
		Vega:  g.Vega * k,
		Rho:   g.Rho * k,
	}
}
