package main

import (
	"fmt"
	"sort"
)

// sequences tracks which ticks were seen for each match
type sequences struct {
	seen map[string]map[int]int
}

func newSequences() *sequences {
	return &sequences{seen: make(map[string]map[int]int)}
}

func (s *sequences) add(matchID string, tick int) {
	ticks, ok := s.seen[matchID]
	if !ok {
		ticks = make(map[int]int)
		s.seen[matchID] = ticks
	}
	ticks[tick]++
}

// violation describes one broken match sequence
type violation struct {
	MatchID    string
	Missing    []int
	Duplicates []int
	Invalid    []int
}

func (v violation) String() string {
	return fmt.Sprintf("match %s: missing=%v duplicates=%v invalid=%v", v.MatchID, v.Missing, v.Duplicates, v.Invalid)
}

// check verifies each match's ticks form 1..n with no gaps or repeats
func (s *sequences) check() (events int, violations []violation) {
	ids := make([]string, 0, len(s.seen))
	for id := range s.seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		ticks := s.seen[id]
		v := violation{MatchID: id}
		maxTick := 0
		for tick, count := range ticks {
			events += count
			if tick < 1 {
				v.Invalid = append(v.Invalid, tick)
				continue
			}
			if tick > maxTick {
				maxTick = tick
			}
			if count > 1 {
				v.Duplicates = append(v.Duplicates, tick)
			}
		}
		for tick := 1; tick <= maxTick; tick++ {
			if ticks[tick] == 0 {
				v.Missing = append(v.Missing, tick)
			}
		}
		sort.Ints(v.Duplicates)
		sort.Ints(v.Invalid)
		if len(v.Missing)+len(v.Duplicates)+len(v.Invalid) > 0 {
			violations = append(violations, v)
		}
	}
	return events, violations
}
