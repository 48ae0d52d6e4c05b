package arena

import "hash/fnv"

// Sequence is a reproducible stream of floats in [0, 1) derived from a match id.
// Price drift and the random strategy both draw from the match's Sequence, so
// a match id fully determines its simulation.
type Sequence struct {
	state uint32
}

// NewSequence seeds a Sequence from the FNV-1a hash of the match id
func NewSequence(matchID string) *Sequence {
	h := fnv.New32a()
	_, _ = h.Write([]byte(matchID))
	return &Sequence{state: h.Sum32()}
}

// Next returns the next value using the mulberry32 mixer
func (s *Sequence) Next() float64 {
	s.state += 0x6D2B79F5
	t := s.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}
