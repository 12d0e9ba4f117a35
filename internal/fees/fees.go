package fees

// BuySchedule is the per-share buy fee schedule with per-component minimums.
// Fee is pure and monotonic nondecreasing in shares: the allocator calls it
// inside its feasibility search and relies on both properties.
type BuySchedule struct {
	CommissionPerShare float64
	CommissionMinUSD   float64
	PlatformPerShare   float64
	PlatformMinUSD     float64
	ClearingPerShare   float64
	OtherFixedFeeUSD   float64
}

// Fee returns the total buy fee in USD for the given share quantity.
// Non-positive quantities cost nothing.
func (s BuySchedule) Fee(shares float64) float64 {
	if shares <= 0 {
		return 0
	}
	commission := s.CommissionPerShare * shares
	if commission < s.CommissionMinUSD {
		commission = s.CommissionMinUSD
	}
	platform := s.PlatformPerShare * shares
	if platform < s.PlatformMinUSD {
		platform = s.PlatformMinUSD
	}
	return commission + platform + s.ClearingPerShare*shares + s.OtherFixedFeeUSD
}

// SellExtraSchedule covers the sell-side regulatory extras: an activity fee
// clamped to [min, max], a per-share CAT fee and a flat SEC fee.
type SellExtraSchedule struct {
	ActivityPerShare float64
	ActivityMinUSD   float64
	ActivityMaxUSD   float64
	CatPerShare      float64
	SecFeeUSD        float64
}

// Fee returns the extra sell-side fee in USD for the given share quantity
// (absolute shares sold). Non-positive quantities cost nothing.
func (s SellExtraSchedule) Fee(shares float64) float64 {
	if shares <= 0 {
		return 0
	}
	activity := s.ActivityPerShare * shares
	if activity < s.ActivityMinUSD {
		activity = s.ActivityMinUSD
	}
	if activity > s.ActivityMaxUSD {
		activity = s.ActivityMaxUSD
	}
	return activity + s.CatPerShare*shares + s.SecFeeUSD
}
