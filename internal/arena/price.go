package arena

import (
	"context"
	"math"
)

// DefaultVolatility bounds the per-tick drift of the internal price walk
const DefaultVolatility = 250.0

// Quote is a price returned by a PriceFeed
type Quote struct {
	Price  float64
	Source string
}

// PriceFeed optionally replaces the internal walk with an external price
type PriceFeed interface {
	Price(ctx context.Context, matchID string, previous float64) (Quote, error)
}

// walk returns the next internal price. The draw always happens so the
// sequence stays aligned whether or not a feed overrides the result.
func walk(prev float64, volatility float64, rng *Sequence) float64 {
	drift := (rng.Next()*2 - 1) * volatility
	return math.Max(1, prev+drift)
}

func validQuote(q Quote) bool {
	return !math.IsNaN(q.Price) && !math.IsInf(q.Price, 0) && q.Price > 0
}
