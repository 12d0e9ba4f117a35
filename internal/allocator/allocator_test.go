package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EtfSentinel/internal/config"
	"EtfSentinel/internal/fees"
	"EtfSentinel/internal/model"
)

// allocConfig builds a config with frictionless defaults; tests tighten
// individual knobs as needed.
func allocConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Symbols.Portfolio = []string{"IWY", "SPMO", "RSP", "PFF", "VNQ"}
	cfg.Params.FxUsdCny = 1
	cfg.Params.TargetWeightEach = 0.20
	cfg.Params.WeightCeilingGuardrail = 0.30
	cfg.Execution.AllowFractionalShares = true
	cfg.Execution.FractionalStep = 0.0001
	cfg.Execution.SpreadCostPct = 0
	return cfg
}

func realisticFees(cfg *config.Config) {
	cfg.Fees.Buy.CommissionPerShare = 0.0049
	cfg.Fees.Buy.CommissionMinUSD = 0.99
	cfg.Fees.Buy.PlatformPerShare = 0.005
	cfg.Fees.Buy.PlatformMinUSD = 1.0
	cfg.Fees.Buy.ClearingPerShare = 0.003
	cfg.Execution.SpreadCostPct = 0.001
}

func TestAllocate_ZeroBudgetNoOrders(t *testing.T) {
	cfg := allocConfig()
	orders, fee, pool, err := AllocateOrders(cfg, []model.Holding{{Ticker: "IWY", Shares: 1}},
		map[string]float64{"IWY": 100}, 0, 42.5, 1)
	require.NoError(t, err)
	assert.Nil(t, orders)
	assert.Zero(t, fee)
	assert.Equal(t, 42.5, pool)
}

func TestAllocate_UnknownTickerErrors(t *testing.T) {
	cfg := allocConfig()
	holdings := []model.Holding{{Ticker: "IWY", Shares: 1}, {Ticker: "RSP", Shares: 1}}
	_, _, _, err := AllocateOrders(cfg, holdings, map[string]float64{"IWY": 100}, 1000, 0, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RSP")
}

func TestAllocate_ProportionalSplitTopTwo(t *testing.T) {
	cfg := allocConfig()
	// Weights: A 0.17, B 0.19, C 0.24, D 0.20, E 0.20 at price 1, fx 1.
	// Underweight scores: A 0.03, B 0.01, rest 0.
	holdings := []model.Holding{
		{Ticker: "A", Shares: 170}, {Ticker: "B", Shares: 190},
		{Ticker: "C", Shares: 240}, {Ticker: "D", Shares: 200}, {Ticker: "E", Shares: 200},
	}
	prices := map[string]float64{"A": 1, "B": 1, "C": 1, "D": 1, "E": 1}

	orders, fee, pool, err := AllocateOrders(cfg, holdings, prices, 10000, 0, 1)
	require.NoError(t, err)
	require.Len(t, orders, 5)

	// 10000 * 0.03/0.04 and 10000 * 0.01/0.04, frictionless
	assert.InDelta(t, 7500, orders[0].Shares, 1e-6)
	assert.InDelta(t, 2500, orders[1].Shares, 1e-6)
	for _, i := range []int{2, 3, 4} {
		assert.Equal(t, model.SideHold, orders[i].Side, orders[i].Ticker)
		assert.Zero(t, orders[i].Shares)
	}
	assert.Zero(t, fee)
	assert.InDelta(t, 0, pool, 1e-6)
}

func TestAllocate_TieBreakByInputOrder(t *testing.T) {
	cfg := allocConfig()
	// A and B equally underweight; top1 must be A purely because it comes
	// first in the input. This ordering is a contract, not an accident.
	holdings := []model.Holding{
		{Ticker: "A", Shares: 150}, {Ticker: "B", Shares: 150}, {Ticker: "C", Shares: 700},
	}
	prices := map[string]float64{"A": 1, "B": 1, "C": 1}

	orders, _, _, err := AllocateOrders(cfg, holdings, prices, 1000, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", orders[0].Ticker)
	assert.InDelta(t, 500, orders[0].Shares, 1e-6)
	assert.InDelta(t, 500, orders[1].Shares, 1e-6)
	assert.Equal(t, model.SideHold, orders[2].Side)
}

func TestAllocate_SingleTickerWhenRunnerUpZero(t *testing.T) {
	cfg := allocConfig()
	// Only A is underweight; the whole budget routes to it.
	holdings := []model.Holding{
		{Ticker: "A", Shares: 100}, {Ticker: "B", Shares: 450}, {Ticker: "C", Shares: 450},
	}
	prices := map[string]float64{"A": 1, "B": 1, "C": 1}

	orders, _, _, err := AllocateOrders(cfg, holdings, prices, 2000, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2000, orders[0].Shares, 1e-6)
	assert.Equal(t, model.SideHold, orders[1].Side)
	assert.Equal(t, model.SideHold, orders[2].Side)
}

func TestAllocate_EqualSplitWhenBalanced(t *testing.T) {
	cfg := allocConfig()
	// Everyone sits above target: all scores zero, budget splits evenly.
	holdings := []model.Holding{
		{Ticker: "A", Shares: 250}, {Ticker: "B", Shares: 250},
		{Ticker: "C", Shares: 250}, {Ticker: "D", Shares: 250},
	}
	prices := map[string]float64{"A": 1, "B": 1, "C": 1, "D": 1}

	orders, _, _, err := AllocateOrders(cfg, holdings, prices, 10000, 0, 1)
	require.NoError(t, err)
	for _, ol := range orders {
		assert.Equal(t, model.SideBuy, ol.Side, ol.Ticker)
		assert.InDelta(t, 2500, ol.Shares, 1e-6)
	}
}

func TestAllocate_NoOverspendAndCashConservation(t *testing.T) {
	cfg := allocConfig()
	realisticFees(cfg)
	cfg.Params.FxUsdCny = 7.2
	holdings := []model.Holding{
		{Ticker: "IWY", Shares: 10}, {Ticker: "SPMO", Shares: 2},
		{Ticker: "RSP", Shares: 30}, {Ticker: "PFF", Shares: 40}, {Ticker: "VNQ", Shares: 25},
	}
	prices := map[string]float64{"IWY": 215.3, "SPMO": 102.7, "RSP": 183.1, "PFF": 31.2, "VNQ": 84.9}

	fx := 7.2
	budgetCNY := 10000.0
	orders, totalFee, poolCNY, err := AllocateOrders(cfg, holdings, prices, budgetCNY, 0, fx)
	require.NoError(t, err)
	require.Len(t, orders, 5)

	spent := 0.0
	feeSum := 0.0
	for _, ol := range orders {
		if ol.Side != model.SideBuy {
			assert.Zero(t, ol.Shares, ol.Ticker)
			continue
		}
		assert.Greater(t, ol.Shares, 0.0, ol.Ticker)
		assert.InDelta(t, ol.Shares*ol.Price, ol.EstGrossUSD, 1e-9, ol.Ticker)
		spent += ol.EstGrossUSD + ol.EstFeeUSD
		feeSum += ol.EstFeeUSD
	}
	assert.InDelta(t, feeSum, totalFee, 1e-9)

	// No cash created or destroyed: everything spent plus the final pool
	// equals the after-spread USD budget.
	totalUSD := (budgetCNY / fx) * (1 - cfg.Execution.SpreadCostPct)
	assert.InDelta(t, totalUSD, spent+poolCNY/fx, 1e-6)
	assert.LessOrEqual(t, spent, totalUSD+1e-9)
}

func TestAllocate_ZeroPriceForcesHold(t *testing.T) {
	cfg := allocConfig()
	// B has no usable price: it must end HOLD with zero shares, never error,
	// and its sub-budget must flow back through the leftover pool.
	holdings := []model.Holding{
		{Ticker: "A", Shares: 100}, {Ticker: "B", Shares: 50}, {Ticker: "C", Shares: 850},
	}
	prices := map[string]float64{"A": 1, "B": 0, "C": 1}

	orders, _, poolCNY, err := AllocateOrders(cfg, holdings, prices, 1000, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, model.SideHold, orders[1].Side)
	assert.Zero(t, orders[1].Shares)
	assert.Zero(t, orders[1].EstFeeUSD)
	// B was top-1 underweight but HOLD lines never reopen: its sub-budget
	// joins the leftover pool and lands on A, the runner-up.
	assert.InDelta(t, 1000, orders[0].Shares, 0.001)
	assert.InDelta(t, 0, poolCNY, 0.001)
}

func TestAllocate_WholeSharesDecrementForFees(t *testing.T) {
	cfg := allocConfig()
	realisticFees(cfg)
	cfg.Execution.SpreadCostPct = 0
	cfg.Execution.AllowFractionalShares = false
	// Only A underweight; 991 USD at price 33: 30 shares cost 992.08 with
	// fees, so the search must settle on 29.
	holdings := []model.Holding{{Ticker: "A", Shares: 0}, {Ticker: "B", Shares: 1000}}
	prices := map[string]float64{"A": 33, "B": 1}

	orders, _, _, err := AllocateOrders(cfg, holdings, prices, 991, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 29.0, orders[0].Shares)
	cost := orders[0].EstGrossUSD + orders[0].EstFeeUSD
	assert.LessOrEqual(t, cost, 991.0)
}

func TestAllocate_CashPoolJoinsBudget(t *testing.T) {
	cfg := allocConfig()
	cfg.CashPool.Enabled = true
	holdings := []model.Holding{{Ticker: "A", Shares: 100}, {Ticker: "B", Shares: 900}}
	prices := map[string]float64{"A": 1, "B": 1}

	orders, _, _, err := AllocateOrders(cfg, holdings, prices, 1000, 500, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1500, orders[0].Shares, 1e-6)

	// Disabled pool: carry value passes through untouched
	cfg.CashPool.Enabled = false
	orders, _, pool, err := AllocateOrders(cfg, holdings, prices, 1000, 500, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1000, orders[0].Shares, 1e-6)
	assert.InDelta(t, 0, pool, 1e-6)
}

func TestAffordableBuyShares_FeeBoundary(t *testing.T) {
	sched := fees.BuySchedule{CommissionMinUSD: 0.99, PlatformMinUSD: 1.0}
	// 10 USD at price 1 with 1.99 fixed fee: at most 8.01 can buy shares
	shares, fee := affordableBuyShares(10, 1, true, 0.01, sched)
	assert.InDelta(t, 8.01, shares, 1e-9)
	assert.InDelta(t, 1.99, fee, 1e-9)
	assert.LessOrEqual(t, shares*1+fee, 10+1e-9)

	// A budget below the minimum fee buys nothing and charges nothing
	shares, fee = affordableBuyShares(1.5, 1, true, 0.01, sched)
	assert.Zero(t, shares)
	assert.Zero(t, fee)
}

func TestBuildEqualWeightPlan(t *testing.T) {
	cfg := allocConfig()
	realisticFees(cfg)
	cfg.Symbols.Portfolio = []string{"IWY", "SPMO", "RSP"}
	cfg.Params.FxUsdCny = 7.2
	prices := map[string]float64{"IWY": 215.3, "SPMO": 102.7, "RSP": 183.1}

	orders, usedUSD, feeUSD, err := BuildEqualWeightPlan(cfg, prices, 72000)
	require.NoError(t, err)
	require.Len(t, orders, 3)

	availUSD := (72000.0 / 7.2) * (1 - cfg.Execution.SpreadCostPct)
	for _, ol := range orders {
		assert.Equal(t, model.SideBuy, ol.Side, ol.Ticker)
		assert.Greater(t, ol.Shares, 0.0, ol.Ticker)
	}
	assert.Greater(t, feeUSD, 0.0)
	assert.LessOrEqual(t, usedUSD, availUSD+1e-9)
	// Nearly fully invested: leftover under one slice's worth of a share
	assert.Greater(t, usedUSD, availUSD-prices["IWY"])
}

func TestBuildEqualWeightPlan_MissingPrice(t *testing.T) {
	cfg := allocConfig()
	cfg.Symbols.Portfolio = []string{"IWY", "SPMO"}
	_, _, _, err := BuildEqualWeightPlan(cfg, map[string]float64{"IWY": 100}, 1000)
	require.Error(t, err)
}
