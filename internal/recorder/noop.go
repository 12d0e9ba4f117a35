package recorder

import (
	"time"

	"EtfSentinel/internal/model"
)

// NoopStore is an in-memory implementation used when SQLite is not
// configured. State lives only for the lifetime of the process.
type NoopStore struct {
	history  []model.TradeLogRecord
	holdings []model.Holding
}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) LoadTradeLog() ([]model.TradeLogRecord, error) { return n.history, nil }

func (n *NoopStore) AppendTradeLog(rec model.TradeLogRecord) error {
	n.history = append(n.history, rec)
	return nil
}

func (n *NoopStore) LoadHoldings() ([]model.Holding, error) { return n.holdings, nil }

func (n *NoopStore) SaveHoldings(holdings []model.Holding) error {
	n.holdings = append([]model.Holding(nil), holdings...)
	return nil
}

func (n *NoopStore) RecordOrders(_ time.Time, _ []model.OrderLine) error { return nil }
func (n *NoopStore) Close() error                                        { return nil }
