package models

import "time"

// DefaultMultiplier is the contract multiplier assumed for a leg until its
// venue reports one.
const DefaultMultiplier = 1.0

// MarkRef is the derived, cacheable market reference for one leg: the venue
// instrument symbol plus the cache key it is stored under.
type MarkRef struct {
	Venue      Venue   `json:"venue"`
	Symbol     string  `json:"symbol"`
	Key        string  `json:"key"` // "<venue>:<symbol>"
	Multiplier float64 `json:"multiplier"`
}

// MarkInfo is the last observed market state for one mark reference. Price
// and Multiplier are nil when a fetch failed or the venue reports none.
type MarkInfo struct {
	Price      *float64  `json:"price"`
	Multiplier *float64  `json:"multiplier"`
	Greeks     *Greeks   `json:"greeks,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// RefreshProgress is the observable state of a mark refresh run, updated
// after each batch settles.
type RefreshProgress struct {
	InProgress bool `json:"in_progress"`
	Total      int  `json:"total"`
	Done       int  `json:"done"`
	Errors     int  `json:"errors"`
}
