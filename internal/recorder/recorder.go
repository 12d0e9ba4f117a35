package recorder

import (
	"time"

	"EtfSentinel/internal/model"
)

// Store persists the engine's durable records: the append-only trade log,
// the current holdings, and the produced order lines (a report artifact).
// The engine reads a full history and appends new rows; it never rewrites
// past rows.
type Store interface {
	LoadTradeLog() ([]model.TradeLogRecord, error)
	AppendTradeLog(rec model.TradeLogRecord) error
	LoadHoldings() ([]model.Holding, error)
	SaveHoldings(holdings []model.Holding) error
	RecordOrders(date time.Time, orders []model.OrderLine) error
	Close() error
}
