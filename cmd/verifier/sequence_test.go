package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequences_CleanRun(t *testing.T) {
	s := newSequences()
	for tick := 1; tick <= 60; tick++ {
		s.add("m1", tick)
		s.add("m2", tick)
	}

	events, violations := s.check()
	assert.Equal(t, 120, events)
	assert.Empty(t, violations)
}

func TestSequences_ReportsGapsAndDuplicates(t *testing.T) {
	s := newSequences()
	s.add("m1", 1)
	s.add("m1", 2)
	s.add("m1", 2)
	s.add("m1", 5)
	s.add("m2", 0)

	events, violations := s.check()
	assert.Equal(t, 5, events)
	require.Len(t, violations, 2)

	assert.Equal(t, "m1", violations[0].MatchID)
	assert.Equal(t, []int{3, 4}, violations[0].Missing)
	assert.Equal(t, []int{2}, violations[0].Duplicates)

	assert.Equal(t, "m2", violations[1].MatchID)
	assert.Equal(t, []int{0}, violations[1].Invalid)
}
