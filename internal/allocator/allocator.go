// Package allocator turns a CNY budget into fee-feasible BUY order lines.
// Money is routed to the two most underweight holdings, every share
// quantity is searched against the fee schedule so the order never
// overspends its sub-budget, and unspent cash rolls into the next run's
// cash pool. Sells are out of scope here.
package allocator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"EtfSentinel/internal/config"
	"EtfSentinel/internal/fees"
	"EtfSentinel/internal/model"
)

const (
	// Tolerance applied to feasibility comparisons to absorb float drift.
	feasTolerance = 1e-10
	// Safety net for the post-search decrement pass. The binary search is
	// the primary algorithm; this cap only guarantees termination.
	fallbackCap = 200000
	// Share quantities are re-rounded to this many places after every
	// adjustment to suppress drift.
	sharePrecision = 10
)

func buySchedule(cfg *config.Config) fees.BuySchedule {
	return fees.BuySchedule{
		CommissionPerShare: cfg.Fees.Buy.CommissionPerShare,
		CommissionMinUSD:   cfg.Fees.Buy.CommissionMinUSD,
		PlatformPerShare:   cfg.Fees.Buy.PlatformPerShare,
		PlatformMinUSD:     cfg.Fees.Buy.PlatformMinUSD,
		ClearingPerShare:   cfg.Fees.Buy.ClearingPerShare,
		OtherFixedFeeUSD:   cfg.Execution.OtherFixedFeeUSD,
	}
}

// sharesAt converts a step count into a share quantity, rounded to the
// fixed precision.
func sharesAt(n int64, step float64) float64 {
	q := decimal.NewFromFloat(step).Mul(decimal.NewFromInt(n)).Round(sharePrecision)
	f, _ := q.Float64()
	if f < 0 {
		return 0
	}
	return f
}

// maxFeasibleSteps finds the largest n in [0, hi] for which cost(n) fits.
// cost must be monotonic nondecreasing in n, which holds because price is
// positive and the fee schedule is monotonic.
func maxFeasibleSteps(hi int64, cost func(n int64) float64, budget float64) int64 {
	lo := int64(0) // n=0 is always feasible: zero shares cost nothing
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if cost(mid) <= budget+feasTolerance {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	// Drift safety net: step down if the chosen count somehow overshoots.
	for i := 0; lo > 0 && cost(lo) > budget+feasTolerance && i < fallbackCap; i++ {
		lo--
	}
	return lo
}

// affordableBuyShares returns the maximum share quantity such that
// shares*price + fee(shares) <= usdBudget, and the fee at that quantity.
func affordableBuyShares(usdBudget, price float64, allowFractional bool, step float64, sched fees.BuySchedule) (float64, float64) {
	if usdBudget <= 0 || price <= 0 {
		return 0, 0
	}
	if !allowFractional {
		step = 1
	}
	if step <= 0 {
		return 0, 0
	}

	hi := int64(usdBudget / price / step)
	cost := func(n int64) float64 {
		s := sharesAt(n, step)
		return s*price + sched.Fee(s)
	}
	n := maxFeasibleSteps(hi, cost, usdBudget)
	shares := sharesAt(n, step)
	if shares <= 0 {
		return 0, 0
	}
	return shares, sched.Fee(shares)
}

// additionalBuyShares returns the maximum extra quantity on top of
// oldShares whose marginal cost (new total cost minus old total cost) fits
// within pool, together with the marginal cost actually incurred.
func additionalBuyShares(oldShares, pool, price float64, allowFractional bool, step float64, sched fees.BuySchedule) (float64, float64) {
	if pool <= 0 || price <= 0 || oldShares <= 0 {
		return 0, 0
	}
	if !allowFractional {
		step = 1
	}
	if step <= 0 {
		return 0, 0
	}

	oldCost := oldShares*price + sched.Fee(oldShares)
	hi := int64(pool / price / step)
	marginal := func(n int64) float64 {
		add := sharesAt(n, step)
		total := roundShares(oldShares + add)
		return total*price + sched.Fee(total) - oldCost
	}
	n := maxFeasibleSteps(hi, marginal, pool)
	add := sharesAt(n, step)
	if add <= 0 {
		return 0, 0
	}
	return add, marginal(n)
}

func roundShares(s float64) float64 {
	f, _ := decimal.NewFromFloat(s).Round(sharePrecision).Float64()
	if f < 0 {
		return 0
	}
	return f
}

// AllocateOrders converts a CNY budget into BUY order lines. It returns the
// order lines (one per holding, HOLD side for the rest), the total
// estimated fee in USD, and the new cash-pool carry balance in CNY.
//
// When fxUsdCny is not positive the configured fixed rate is used. A budget
// of zero or less returns no orders and leaves the cash pool untouched.
// The only error is a holdings/prices mismatch: a ticker without a quote
// must fail loudly rather than misallocate.
func AllocateOrders(cfg *config.Config, holdings []model.Holding, prices map[string]float64,
	buyTotalCNY, cashPoolCNY, fxUsdCny float64) ([]model.OrderLine, float64, float64, error) {

	if buyTotalCNY <= 0 {
		return nil, 0, cashPoolCNY, nil
	}
	if len(holdings) == 0 {
		return nil, 0, cashPoolCNY, fmt.Errorf("allocate: no holdings")
	}
	for _, h := range holdings {
		if _, ok := prices[h.Ticker]; !ok {
			return nil, 0, 0, fmt.Errorf("allocate: no price for ticker %s", h.Ticker)
		}
	}

	fx := fxUsdCny
	if fx <= 0 {
		fx = cfg.Params.FxUsdCny
	}

	totalCNY := buyTotalCNY
	if cfg.CashPool.Enabled {
		totalCNY += cashPoolCNY
	}

	// Current weights in CNY terms.
	values := make([]float64, len(holdings))
	portValue := 0.0
	for i, h := range holdings {
		values[i] = h.Shares * prices[h.Ticker] * fx
		portValue += values[i]
	}

	target := cfg.Params.TargetWeightEach
	ceiling := cfg.Params.WeightCeilingGuardrail
	scores := make([]float64, len(holdings))
	scoreSum := 0.0
	for i := range holdings {
		w := 0.0
		if portValue > 0 {
			w = values[i] / portValue
		}
		if w < ceiling && target > w {
			scores[i] = target - w
		}
		scoreSum += scores[i]
	}

	// Top two underweight tickers. Ties resolve to the earlier input
	// position; callers rely on that ordering being stable.
	top1, top2 := -1, -1
	for i := range holdings {
		if top1 < 0 || scores[i] > scores[top1] {
			top1 = i
		}
	}
	for i := range holdings {
		if i == top1 {
			continue
		}
		if top2 < 0 || scores[i] > scores[top2] {
			top2 = i
		}
	}

	suggested := make([]float64, len(holdings))
	switch {
	case scoreSum == 0:
		// Fresh or perfectly balanced portfolio: split evenly.
		for i := range holdings {
			suggested[i] = totalCNY / float64(len(holdings))
		}
		top2 = -1 // runner-up has no claim on the leftover pool
	case top2 < 0 || scores[top2] == 0:
		suggested[top1] = totalCNY
		top2 = -1
	default:
		denom := scores[top1] + scores[top2]
		suggested[top1] = totalCNY * scores[top1] / denom
		suggested[top2] = totalCNY * scores[top2] / denom
	}

	sched := buySchedule(cfg)
	spread := cfg.Execution.SpreadCostPct
	allowFrac := cfg.Execution.AllowFractionalShares
	step := cfg.Execution.FractionalStep

	orders := make([]model.OrderLine, len(holdings))
	leftoverPoolUSD := 0.0

	for i, h := range holdings {
		price := prices[h.Ticker]
		ol := model.OrderLine{Ticker: h.Ticker, Side: model.SideHold, Price: price}
		if suggested[i] > 0 {
			usdBudget := (suggested[i] / fx) * (1 - spread)
			shares, fee := affordableBuyShares(usdBudget, price, allowFrac, step, sched)
			gross := shares * price
			leftover := usdBudget - (gross + fee)
			if leftover > 0 {
				leftoverPoolUSD += leftover
			}
			if shares > 0 {
				ol.Side = model.SideBuy
				ol.Shares = shares
				ol.EstFeeUSD = fee
				ol.EstGrossUSD = gross
				ol.Note = "OK"
			} else {
				ol.Note = "整股/费用限制导致0股"
			}
		}
		orders[i] = ol
	}

	// Spend the pooled leftover as extra shares on top1 then top2, against
	// the marginal cost only. Tickers that got no base budget stay closed.
	for _, idx := range []int{top1, top2} {
		if idx < 0 || leftoverPoolUSD <= 0 {
			continue
		}
		ol := &orders[idx]
		if ol.Side != model.SideBuy || ol.Shares <= 0 {
			continue
		}
		add, cost := additionalBuyShares(ol.Shares, leftoverPoolUSD, ol.Price, allowFrac, step, sched)
		if add <= 0 {
			continue
		}
		ol.Shares = roundShares(ol.Shares + add)
		ol.EstFeeUSD = sched.Fee(ol.Shares)
		ol.EstGrossUSD = ol.Shares * ol.Price
		ol.Note = "OK(含二次分配)"
		leftoverPoolUSD -= cost
	}

	totalFeeUSD := 0.0
	for _, ol := range orders {
		if ol.Side == model.SideBuy && ol.Shares > 0 {
			totalFeeUSD += ol.EstFeeUSD
		}
	}
	if leftoverPoolUSD < 0 {
		leftoverPoolUSD = 0
	}

	return orders, totalFeeUSD, leftoverPoolUSD * fx, nil
}
