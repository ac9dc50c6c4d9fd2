package processor

import "optionflow/models"

// Status classification thresholds.
const (
	alertDTE         = 7
	alertPnlPct      = -10.0
	alertRealizedPnl = -100.0
	attentionDTE     = 14
)

// ClassifyStatus derives the risk status for a position from its days to
// expiry, PnL percentage (nil when no premium denominator exists) and
// realized PnL. The persisted open/closed lifecycle is a separate state
// applied by the caller, not computed here.
func ClassifyStatus(dte int, pnlPct *float64, realizedPnl float64) models.Status {
	if dte <= alertDTE || (pnlPct != nil && *pnlPct <= alertPnlPct) || realizedPnl <= alertRealizedPnl {
		return models.StatusAlert
	}
	if dte <= attentionDTE || (pnlPct != nil && *pnlPct < 0) {
		return models.StatusAttention
	}
	return models.StatusOpen
}
