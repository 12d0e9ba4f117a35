// Package ledger derives balances from the trade log. Both values are pure
// folds over the ordered history, recomputed on every run; no balance is
// ever stored as mutable state of its own.
package ledger

import "EtfSentinel/internal/model"

// Cash-pool sources.
const (
	SourceAuto   = "AUTO"
	SourceManual = "MANUAL"
)

// ReserveBalance returns the reserve pool in CNY: cumulative reserve
// additions minus cumulative reserve uses. Zero for an empty history.
func ReserveBalance(history []model.TradeLogRecord) float64 {
	var add, use float64
	for _, rec := range history {
		add += rec.ReserveAddCNY
		use += rec.ReserveUseCNY
	}
	return add - use
}

// CashPoolStart returns the cash-pool carry balance in CNY at the start of a
// run: 0 when the pool is disabled, the manual value when the source is
// MANUAL, otherwise the last recorded cash-pool end balance.
func CashPoolStart(history []model.TradeLogRecord, enabled bool, source string, manualCNY float64) float64 {
	if !enabled {
		return 0
	}
	if source == SourceManual {
		return manualCNY
	}
	if len(history) == 0 {
		return 0
	}
	return history[len(history)-1].CashPoolEndCNY
}
