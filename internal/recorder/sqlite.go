package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"EtfSentinel/internal/model"
)

const dateLayout = "2006-01-02"

// SQLiteStore persists trade history, holdings and order lines to SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so ad-hoc reads do not block the bot's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trade_log (
			id                    INTEGER PRIMARY KEY AUTOINCREMENT,
			date                  TEXT NOT NULL,
			month_key             TEXT NOT NULL,
			signal                TEXT NOT NULL,
			base_buy_cny          REAL,
			below_ma200           INTEGER,
			reserve_add_cny       REAL,
			reserve_use_cny       REAL,
			recommended_buy_cny   REAL,
			total_fee_usd         REAL,
			cash_pool_end_cny     REAL,
			signal_close          REAL,
			month_high_close      REAL,
			monthly_drawdown      REAL,
			third_friday          INTEGER,
			days_since_last_trade INTEGER,
			cooldown_ok           INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_log_date ON trade_log(date)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_log_month ON trade_log(month_key)`,

		`CREATE TABLE IF NOT EXISTS holdings (
			position INTEGER PRIMARY KEY,
			ticker   TEXT NOT NULL UNIQUE,
			shares   REAL NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS order_lines (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			date          TEXT NOT NULL,
			ticker        TEXT NOT NULL,
			side          TEXT NOT NULL,
			shares        REAL,
			price         REAL,
			est_fee_usd   REAL,
			est_gross_usd REAL,
			note          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_lines_date ON order_lines(date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// LoadTradeLog returns the full history in date order. Rows inserted the
// same day keep their insertion order.
func (s *SQLiteStore) LoadTradeLog() ([]model.TradeLogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT date, month_key, signal, base_buy_cny, below_ma200,
		reserve_add_cny, reserve_use_cny, recommended_buy_cny, total_fee_usd,
		cash_pool_end_cny, signal_close, month_high_close, monthly_drawdown,
		third_friday, days_since_last_trade, cooldown_ok
		FROM trade_log ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("query trade_log: %w", err)
	}
	defer rows.Close()

	var history []model.TradeLogRecord
	for rows.Next() {
		var rec model.TradeLogRecord
		var date, monthKey, signal string
		var belowMA, thirdFriday, cooldownOk int
		if err := rows.Scan(&date, &monthKey, &signal, &rec.BaseBuyCNY, &belowMA,
			&rec.ReserveAddCNY, &rec.ReserveUseCNY, &rec.RecommendedBuyCNY, &rec.TotalFeeUSD,
			&rec.CashPoolEndCNY, &rec.SignalClose, &rec.MonthHighClose, &rec.MonthlyDrawdown,
			&thirdFriday, &rec.DaysSinceLastTrade, &cooldownOk); err != nil {
			return nil, fmt.Errorf("scan trade_log: %w", err)
		}
		if rec.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("parse trade_log date %q: %w", date, err)
		}
		if rec.MonthKey, err = time.Parse(dateLayout, monthKey); err != nil {
			return nil, fmt.Errorf("parse trade_log month_key %q: %w", monthKey, err)
		}
		rec.Signal = model.Signal(signal)
		rec.BelowMA200 = belowMA != 0
		rec.ThirdFriday = thirdFriday != 0
		rec.CooldownOk = cooldownOk != 0
		history = append(history, rec)
	}
	return history, rows.Err()
}

func (s *SQLiteStore) AppendTradeLog(rec model.TradeLogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO trade_log
		(date, month_key, signal, base_buy_cny, below_ma200,
		 reserve_add_cny, reserve_use_cny, recommended_buy_cny, total_fee_usd,
		 cash_pool_end_cny, signal_close, month_high_close, monthly_drawdown,
		 third_friday, days_since_last_trade, cooldown_ok)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.Date.Format(dateLayout), rec.MonthKey.Format(dateLayout), string(rec.Signal),
		rec.BaseBuyCNY, boolToInt(rec.BelowMA200),
		rec.ReserveAddCNY, rec.ReserveUseCNY, rec.RecommendedBuyCNY, rec.TotalFeeUSD,
		rec.CashPoolEndCNY, rec.SignalClose, rec.MonthHighClose, rec.MonthlyDrawdown,
		boolToInt(rec.ThirdFriday), rec.DaysSinceLastTrade, boolToInt(rec.CooldownOk),
	)
	return err
}

// LoadHoldings returns the portfolio in its stored position order, which
// the allocator treats as significant.
func (s *SQLiteStore) LoadHoldings() ([]model.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT ticker, shares FROM holdings ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		var h model.Holding
		if err := rows.Scan(&h.Ticker, &h.Shares); err != nil {
			return nil, fmt.Errorf("scan holdings: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *SQLiteStore) SaveHoldings(holdings []model.Holding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin holdings tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM holdings`); err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}
	for i, h := range holdings {
		if _, err := tx.Exec(`INSERT INTO holdings (position, ticker, shares) VALUES (?,?,?)`,
			i, h.Ticker, h.Shares); err != nil {
			return fmt.Errorf("insert holding %s: %w", h.Ticker, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecordOrders(date time.Time, orders []model.OrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin orders tx: %w", err)
	}
	defer tx.Rollback()

	for _, ol := range orders {
		if _, err := tx.Exec(`INSERT INTO order_lines
			(date, ticker, side, shares, price, est_fee_usd, est_gross_usd, note)
			VALUES (?,?,?,?,?,?,?,?)`,
			date.Format(dateLayout), ol.Ticker, string(ol.Side), ol.Shares, ol.Price,
			ol.EstFeeUSD, ol.EstGrossUSD, ol.Note); err != nil {
			return fmt.Errorf("insert order line %s: %w", ol.Ticker, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
