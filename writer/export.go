package writer

import (
	"time"

	"optionflow/marks"
	"optionflow/models"
)

// ValuationExport is the unit both writers publish: one fully-valued
// portfolio snapshot produced after a mark refresh.
type ValuationExport struct {
	SnapshotID  string                    `json:"snapshot_id"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Valuations  []marks.PositionValuation `json:"valuations"`
	Portfolio   models.Greeks             `json:"portfolio_greeks"`
	// IndexPrices maps underlying to spot index price; DeltaUSD is the
	// portfolio delta converted through them. Both are empty when no index
	// source is configured.
	IndexPrices map[string]float64 `json:"index_prices,omitempty"`
	DeltaUSD    float64            `json:"delta_usd,omitempty"`
}

// ValuationRecord is one parquet row: a position flattened with its exposure.
type ValuationRecord struct {
	SnapshotID    string  `parquet:"name=snapshot_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Venue         string  `parquet:"name=venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	Underlying    string  `parquet:"name=underlying, type=BYTE_ARRAY, convertedtype=UTF8"`
	StructureKey  string  `parquet:"name=structure_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	PositionType  string  `parquet:"name=position_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status        string  `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	LegsCount     int32   `parquet:"name=legs_count, type=INT32"`
	MarkedLegs    int32   `parquet:"name=marked_legs, type=INT32"`
	Expiry        int64   `parquet:"name=expiry, type=INT64"`
	DTE           int32   `parquet:"name=dte, type=INT32"`
	RealizedPnl   float64 `parquet:"name=realized_pnl, type=DOUBLE"`
	UnrealizedPnl float64 `parquet:"name=unrealized_pnl, type=DOUBLE"`
	NetPremium    float64 `parquet:"name=net_premium, type=DOUBLE"`
	Delta         float64 `parquet:"name=delta, type=DOUBLE"`
	Gamma         float64 `parquet:"name=gamma, type=DOUBLE"`
	Theta         float64 `parquet:"name=theta, type=DOUBLE"`
	Vega          float64 `parquet:"name=vega, type=DOUBLE"`
	Rho           float64 `parquet:"name=rho, type=DOUBLE"`
	GeneratedAt   int64   `parquet:"name=generated_at, type=INT64"`
}

// buildRecords flattens an export into parquet rows, one per position.
func buildRecords(export *ValuationExport) []ValuationRecord {
	records := make([]ValuationRecord, 0, len(export.Valuations))
	for _, val := range export.Valuations {
		pos := val.Position
		records = append(records, ValuationRecord{
			SnapshotID:    export.SnapshotID,
			Venue:         string(pos.Venue),
			Underlying:    pos.Underlying,
			StructureKey:  pos.StructureKey,
			PositionType:  pos.Type,
			Status:        string(pos.Status),
			LegsCount:     int32(pos.LegsCount),
			MarkedLegs:    int32(val.MarkedLegs),
			Expiry:        pos.Expiry.UnixMilli(),
			DTE:           int32(pos.DTE),
			RealizedPnl:   pos.RealizedPnl,
			UnrealizedPnl: val.UnrealizedPnl,
			NetPremium:    pos.NetPremium,
			Delta:         val.Greeks.Delta,
			Gamma:         val.Greeks.Gamma,
			Theta:         val.Greeks.Theta,
			Vega:          val.Greeks.Vega,
			Rho:           val.Greeks.Rho,
			GeneratedAt:   export.GeneratedAt.UnixMilli(),
		})
	}
	return records
}
