package arena

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestScore_Example(t *testing.T) {
	seats := []Seat{{ID: "1", Credits: 1000, Target: 1}}
	Score(100000, 100500, seats)
	assert.InDelta(t, 1074.5, seats[0].Credits, 1e-9)
}

func TestScore_HoldPaysFee(t *testing.T) {
	seats := []Seat{{ID: "1", Credits: 1000, Target: 0}}
	Score(100000, 90000, seats)
	assert.InDelta(t, 1000*(1-FrictionFee), seats[0].Credits, 1e-9)
}

func TestScore_FloorsAtZero(t *testing.T) {
	// a 10% drop at full long with K=15 loses more than the balance
	seats := []Seat{{ID: "1", Credits: 1000, Target: 1}}
	Score(100000, 90000, seats)
	assert.Equal(t, 0.0, seats[0].Credits)

	Score(90000, 200000, seats)
	assert.Equal(t, 0.0, seats[0].Credits, "zero stays zero")
}

func TestScore_CreditsNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prev := rapid.Float64Range(1, 1e6).Draw(t, "prev")
		next := rapid.Float64Range(1, 1e6).Draw(t, "next")
		seats := []Seat{{
			Credits: rapid.Float64Range(0, 1e6).Draw(t, "credits"),
			Target:  rapid.Float64Range(-1, 1).Draw(t, "target"),
		}}
		Score(prev, next, seats)
		if seats[0].Credits < 0 || math.IsNaN(seats[0].Credits) {
			t.Fatalf("credits %v", seats[0].Credits)
		}
	})
}
