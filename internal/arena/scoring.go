package arena

import "math"

const (
	// VisibilityMultiplier amplifies price moves so a short match shows spread
	VisibilityMultiplier = 15.0
	// FrictionFee is charged every tick regardless of direction
	FrictionFee = 0.0005
)

// PerformanceFactor is the multiplicative balance change for one tick
func PerformanceFactor(target, priceChangePct float64) float64 {
	return 1 + target*priceChangePct*VisibilityMultiplier - FrictionFee
}

// Score compounds every seat's credits for a move from prev to next.
// Balances are floored at zero, and a zero balance stays zero.
func Score(prev, next float64, seats []Seat) {
	change := 0.0
	if prev > 0 {
		change = (next - prev) / prev
	}
	for i := range seats {
		credits := seats[i].Credits * PerformanceFactor(seats[i].Target, change)
		if math.IsNaN(credits) || credits < 0 {
			credits = 0
		}
		seats[i].Credits = credits
	}
}
