package arena

import (
	"fmt"

	"github.com/ismaiel54/match-arena/internal/protocol"
)

// Strategy is the rule-based policy a seat uses to choose its target
type Strategy string

const (
	StrategyHold       Strategy = protocol.StrategyHold
	StrategyRandom     Strategy = protocol.StrategyRandom
	StrategyTrend      Strategy = protocol.StrategyTrend
	StrategyMeanRevert Strategy = protocol.StrategyMeanRevert
)

// ParseStrategy validates a strategy tag
func ParseStrategy(s string) (Strategy, error) {
	if !protocol.IsStrategy(s) {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
	return Strategy(s), nil
}
