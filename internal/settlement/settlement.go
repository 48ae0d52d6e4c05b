// Package settlement turns final match standings into a winner and payout.
package settlement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRake     = errors.New("rake must be between 0 and 10000 bps")
	ErrInvalidEntryFee = errors.New("entry fee must be a non-negative decimal")
	ErrNoStandings     = errors.New("no standings to settle")
)

const bpsDenominator = 10000

// Standing is one seat's final balance, in seat order
type Standing struct {
	SeatID  string
	Credits float64
}

// Result is the outcome of settling a match
type Result struct {
	WinnerSeatID string
	// PayoutSeatID is empty when nobody finished with a positive balance
	PayoutSeatID string
	Pot          decimal.Decimal
	Rake         decimal.Decimal
	Payout       decimal.Decimal
}

// Config holds the settlement parameters
type Config struct {
	EntryFee string
	RakeBps  int
}

// Calculator computes payouts for finished matches
type Calculator struct {
	entryFee decimal.Decimal
	rakeBps  int64
}

// NewCalculator validates the configuration and builds a Calculator
func NewCalculator(cfg Config) (*Calculator, error) {
	if cfg.RakeBps < 0 || cfg.RakeBps > bpsDenominator {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRake, cfg.RakeBps)
	}
	fee, err := decimal.NewFromString(cfg.EntryFee)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntryFee, err)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidEntryFee, cfg.EntryFee)
	}
	return &Calculator{entryFee: fee, rakeBps: int64(cfg.RakeBps)}, nil
}

// Settle picks the winner and splits the pot
func (c *Calculator) Settle(standings []Standing) (Result, error) {
	winner, payoutSeat, err := Winner(standings)
	if err != nil {
		return Result{}, err
	}

	pot := c.entryFee.Mul(decimal.NewFromInt(int64(len(standings))))
	rake := pot.Mul(decimal.NewFromInt(c.rakeBps)).
		Div(decimal.NewFromInt(bpsDenominator)).
		RoundBank(2)
	payout := pot.Sub(rake)
	if payoutSeat == "" {
		payout = decimal.Zero
	}

	return Result{
		WinnerSeatID: winner,
		PayoutSeatID: payoutSeat,
		Pot:          pot,
		Rake:         rake,
		Payout:       payout,
	}, nil
}

// Winner returns the seat with the highest credits (earliest seat on ties) and
// the seat to pay, which is the winner unless every balance reached zero
func Winner(standings []Standing) (winner, payout string, err error) {
	if len(standings) == 0 {
		return "", "", ErrNoStandings
	}
	best := 0
	for i := 1; i < len(standings); i++ {
		if standings[i].Credits > standings[best].Credits {
			best = i
		}
	}
	winner = standings[best].SeatID
	if standings[best].Credits > 0 {
		payout = winner
	}
	return winner, payout, nil
}
