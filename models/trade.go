package models

import "time"

// Venue identifies one of the supported option trading venues.
type Venue string

const (
	VenueDeribit Venue = "deribit"
	VenueBybit   Venue = "bybit"
)

// Side is the taker side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Action is the optional open/close intent tagged on a trade by the source.
// The engine does not trust it for FIFO matching; it is carried for display.
type Action string

const (
	ActionOpen  Action = "open"
	ActionClose Action = "close"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	OptionCall OptionType = "C"
	OptionPut  OptionType = "P"
)

// TradeRecord is a single validated option trade. Records are immutable once
// ingested: the aggregation pipeline only ever reads them.
type TradeRecord struct {
	Instrument string    `json:"instrument"`
	Side       Side      `json:"side"`
	Action     Action    `json:"action,omitempty"`
	Amount     float64   `json:"amount"`
	Price      float64   `json:"price"`
	Fee        float64   `json:"fee,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
	TradeID    string    `json:"trade_id,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	Venue      Venue     `json:"venue"`

	// Parsed from Instrument at the ingestion boundary.
	Underlying   string     `json:"underlying"`
	Expiry       time.Time  `json:"expiry"` // UTC midnight
	Strike       float64    `json:"strike"`
	OptionType   OptionType `json:"option_type"`
	StructureKey string     `json:"structure_key"`
}

// Direction returns +1 for a buy and -1 for a sell.
func (t TradeRecord) Direction() int {
	if t.Side == SideSell {
		return -1
	}
	return 1
}

// HasLegFields reports whether the record carries everything needed to place
// it on a leg. Records without these fields are dropped from aggregation.
func (t TradeRecord) HasLegFields() bool {
	return t.Underlying != "" && !t.Expiry.IsZero() && t.Strike > 0 && (t.OptionType == OptionCall || t.OptionType == OptionPut)
}

// ExcludedTrade is a source row the ingestion boundary refused, kept so
// callers can surface it instead of silently losing data.
type ExcludedTrade struct {
	Line       int    `json:"line"`
	Venue      string `json:"venue,omitempty"`
	Instrument string `json:"instrument,omitempty"`
	Reason     string `json:"reason"`
}
