package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSequence_SameIDSameStream(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.String().Draw(t, "id")
		a, b := NewSequence(id), NewSequence(id)
		for i := 0; i < 64; i++ {
			va, vb := a.Next(), b.Next()
			if va != vb {
				t.Fatalf("draw %d differs: %v vs %v", i, va, vb)
			}
			if va < 0 || va >= 1 {
				t.Fatalf("draw %d out of range: %v", i, va)
			}
		}
	})
}

func TestSequence_DifferentIDsDiverge(t *testing.T) {
	a, b := NewSequence("match-a"), NewSequence("match-b")
	same := 0
	for i := 0; i < 16; i++ {
		if a.Next() == b.Next() {
			same++
		}
	}
	assert.Less(t, same, 16)
}

func TestSequence_Spread(t *testing.T) {
	s := NewSequence("spread")
	var buckets [10]int
	for i := 0; i < 10000; i++ {
		buckets[int(s.Next()*10)]++
	}
	for i, n := range buckets {
		assert.InDelta(t, 1000, n, 200, "bucket %d", i)
	}
}
