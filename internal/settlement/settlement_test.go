package settlement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCalculator_Validation(t *testing.T) {
	_, err := NewCalculator(Config{EntryFee: "10", RakeBps: -1})
	assert.True(t, errors.Is(err, ErrInvalidRake))

	_, err = NewCalculator(Config{EntryFee: "10", RakeBps: 10001})
	assert.True(t, errors.Is(err, ErrInvalidRake))

	_, err = NewCalculator(Config{EntryFee: "ten", RakeBps: 500})
	assert.True(t, errors.Is(err, ErrInvalidEntryFee))

	_, err = NewCalculator(Config{EntryFee: "-1", RakeBps: 500})
	assert.True(t, errors.Is(err, ErrInvalidEntryFee))
}

func TestSettle(t *testing.T) {
	calc, err := NewCalculator(Config{EntryFee: "10", RakeBps: 500})
	require.NoError(t, err)

	res, err := calc.Settle([]Standing{
		{SeatID: "1", Credits: 990},
		{SeatID: "2", Credits: 1074.5},
		{SeatID: "3", Credits: 1074.5},
		{SeatID: "4", Credits: 0},
		{SeatID: "5", Credits: 1000},
	})
	require.NoError(t, err)

	assert.Equal(t, "2", res.WinnerSeatID, "ties go to the earlier seat")
	assert.Equal(t, "2", res.PayoutSeatID)
	assert.Equal(t, "50", res.Pot.String())
	assert.Equal(t, "2.5", res.Rake.String())
	assert.Equal(t, "47.5", res.Payout.String())
}

func TestSettle_AllBusted(t *testing.T) {
	calc, err := NewCalculator(Config{EntryFee: "3.33", RakeBps: 250})
	require.NoError(t, err)

	res, err := calc.Settle([]Standing{{SeatID: "1", Credits: 0}, {SeatID: "2", Credits: 0}})
	require.NoError(t, err)

	assert.Equal(t, "1", res.WinnerSeatID)
	assert.Empty(t, res.PayoutSeatID)
	assert.True(t, res.Payout.IsZero())
	assert.Equal(t, "6.66", res.Pot.String())
	assert.Equal(t, "0.17", res.Rake.String())
}

func TestWinner_Empty(t *testing.T) {
	_, _, err := Winner(nil)
	assert.ErrorIs(t, err, ErrNoStandings)
}
