package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"EtfSentinel/internal/allocator"
	"EtfSentinel/internal/calendar"
	"EtfSentinel/internal/collector"
	"EtfSentinel/internal/config"
	"EtfSentinel/internal/ledger"
	"EtfSentinel/internal/model"
	"EtfSentinel/internal/notifier"
	"EtfSentinel/internal/recorder"
	"EtfSentinel/internal/strategy"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the daily decision task on a cron schedule and serves
// user commands arriving over Telegram.
type Scheduler struct {
	Cron      *cron.Cron
	Cfg       *config.Config
	Collector *collector.Collector
	Calendar  calendar.Oracle
	Store     recorder.Store
	Notifier  *notifier.TelegramNotifier
	Ctx       context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, cfg *config.Config, col *collector.Collector,
	cal calendar.Oracle, store recorder.Store, tn *notifier.TelegramNotifier) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Cfg:       cfg,
		Collector: col,
		Calendar:  cal,
		Store:     store,
		Notifier:  tn,
		Ctx:       ctx,
	}
}

// RegisterAll registers the daily task.
func (s *Scheduler) RegisterAll() error {
	if _, err := s.Cron.AddFunc(s.Cfg.Schedule.DailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunDailyNow executes the daily task immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunDailyNow() {
	s.dailyTask()
}

// sessionCloseCutoff is minutes past midnight ET after which the current
// session's close is considered settled (16:10).
const sessionCloseCutoff = 16*60 + 10

// marketNow is the current wall-clock time in New York.
func marketNow() time.Time {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Now().UTC()
	}
	return time.Now().In(loc)
}

// decisionDate backtracks from now to the most recent closed session.
// Before the 16:10 ET cutoff today's close is not settled yet, so a run
// during market hours decides on the previous trading day, never on
// intraday data.
func decisionDate(now time.Time, cal calendar.Oracle) time.Time {
	d := now
	if now.Hour()*60+now.Minute() < sessionCloseCutoff && cal.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	for !cal.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func (s *Scheduler) dailyTask() {
	log.Println("[INFO] running daily task")
	asof := decisionDate(marketNow(), s.Calendar)

	snap, err := s.Collector.Collect(asof)
	if err != nil {
		log.Printf("[ERROR] daily collect: %v", err)
		s.trySend(fmt.Sprintf("❌ 日任务数据采集失败: %v", err))
		return
	}

	history, err := s.Store.LoadTradeLog()
	if err != nil {
		log.Printf("[ERROR] load trade log: %v", err)
		s.trySend(fmt.Sprintf("❌ 读取交易记录失败: %v", err))
		return
	}

	sig := strategy.EvaluateSignal(s.Cfg, s.Calendar, asof, snap.Reading, history)
	if sig.Signal == model.SignalNotTradingDay {
		log.Println("[INFO] not a trading day, skipping")
		return
	}

	var (
		orders      []model.OrderLine
		totalFeeUSD float64
	)
	poolEnd := ledger.CashPoolStart(history, s.Cfg.CashPool.Enabled,
		s.Cfg.CashPool.Source, s.Cfg.CashPool.ManualCNY)

	if sig.RecommendedBuyCNY > 0 {
		holdings, err := s.loadHoldings()
		if err != nil {
			log.Printf("[ERROR] load holdings: %v", err)
			s.trySend(fmt.Sprintf("❌ 读取持仓失败: %v", err))
			return
		}

		orders, totalFeeUSD, poolEnd, err = allocator.AllocateOrders(
			s.Cfg, holdings, snap.Prices, sig.RecommendedBuyCNY, poolEnd, snap.FxUsdCny)
		if err != nil {
			log.Printf("[ERROR] allocate orders: %v", err)
			s.trySend(fmt.Sprintf("❌ 下单分配失败: %v", err))
			return
		}

		rec := model.TradeLogRecord{
			Date:               sig.Date,
			MonthKey:           sig.MonthKey,
			Signal:             sig.Signal,
			BaseBuyCNY:         sig.BaseBuyCNY,
			BelowMA200:         sig.BelowMA200Valid && sig.BelowMA200,
			ReserveAddCNY:      sig.ReserveAddCNY,
			ReserveUseCNY:      sig.ReserveUseCNY,
			RecommendedBuyCNY:  sig.RecommendedBuyCNY,
			TotalFeeUSD:        totalFeeUSD,
			CashPoolEndCNY:     poolEnd,
			SignalClose:        sig.Close,
			MonthHighClose:     sig.MonthHighClose,
			MonthlyDrawdown:    sig.MonthlyDrawdown,
			ThirdFriday:        sig.ThirdFriday,
			DaysSinceLastTrade: sig.DaysSinceLastTrade,
			CooldownOk:         sig.CooldownOk,
		}
		if err := s.Store.AppendTradeLog(rec); err != nil {
			log.Printf("[ERROR] append trade log: %v", err)
		}
		if err := s.Store.RecordOrders(sig.Date, orders); err != nil {
			log.Printf("[ERROR] record orders: %v", err)
		}
		s.applyBuys(holdings, orders)
	}

	report := notifier.FormatDailyReport(sig, orders, totalFeeUSD, poolEnd, snap.FxUsdCny)
	s.trySend(report)
}

// loadHoldings returns the stored portfolio, seeding zero positions from
// the configured tickers on first run so the allocator has an ordering to
// work with.
func (s *Scheduler) loadHoldings() ([]model.Holding, error) {
	holdings, err := s.Store.LoadHoldings()
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		for _, ticker := range s.Cfg.Symbols.Portfolio {
			holdings = append(holdings, model.Holding{Ticker: ticker})
		}
		if err := s.Store.SaveHoldings(holdings); err != nil {
			return nil, err
		}
		log.Printf("[INFO] seeded %d empty positions", len(holdings))
	}
	return holdings, nil
}

func (s *Scheduler) applyBuys(holdings []model.Holding, orders []model.OrderLine) {
	bought := make(map[string]float64)
	for _, ol := range orders {
		if ol.Side == model.SideBuy {
			bought[ol.Ticker] += ol.Shares
		}
	}
	if len(bought) == 0 {
		return
	}
	for i := range holdings {
		holdings[i].Shares += bought[holdings[i].Ticker]
	}
	if err := s.Store.SaveHoldings(holdings); err != nil {
		log.Printf("[ERROR] save holdings: %v", err)
	}
}

func (s *Scheduler) statusReport() string {
	history, err := s.Store.LoadTradeLog()
	if err != nil {
		return fmt.Sprintf("读取交易记录失败: %v", err)
	}
	holdings, err := s.Store.LoadHoldings()
	if err != nil {
		return fmt.Sprintf("读取持仓失败: %v", err)
	}
	var last *model.TradeLogRecord
	if len(history) > 0 {
		last = &history[len(history)-1]
	}
	reserve := ledger.ReserveBalance(history)
	pool := ledger.CashPoolStart(history, s.Cfg.CashPool.Enabled,
		s.Cfg.CashPool.Source, s.Cfg.CashPool.ManualCNY)
	return notifier.FormatStatus(reserve, pool, holdings, last)
}

func (s *Scheduler) bootstrapPlan() string {
	snap, err := s.Collector.Collect(decisionDate(marketNow(), s.Calendar))
	if err != nil {
		return fmt.Sprintf("数据采集失败: %v", err)
	}
	orders, usedUSD, feeUSD, err := allocator.BuildEqualWeightPlan(
		s.Cfg, snap.Prices, s.Cfg.Bootstrap.InitialInvestCNY)
	if err != nil {
		return fmt.Sprintf("建仓计划生成失败: %v", err)
	}
	return notifier.FormatBootstrapPlan(orders, usedUSD, feeUSD, snap.FxUsdCny)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "立即运行", "/run":
		s.dailyTask()
		return ""
	case "查看状态", "/status":
		return s.statusReport()
	case "查看记录", "/log":
		history, err := s.Store.LoadTradeLog()
		if err != nil {
			return fmt.Sprintf("读取交易记录失败: %v", err)
		}
		return notifier.FormatTradeLogTail(history, 10)
	case "建仓计划", "/bootstrap":
		return s.bootstrapPlan()
	default:
		return "可用命令:\n• /run 立即运行\n• /status 查看状态\n• /log 查看记录\n• /bootstrap 建仓计划"
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
