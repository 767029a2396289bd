package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEveryNextIsOnTheGrid(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s := Every(anchor, 30*time.Minute)

	assert.Equal(t, anchor, s.Next(anchor.Add(-time.Hour)))
	assert.Equal(t, anchor.Add(30*time.Minute), s.Next(anchor))
	assert.Equal(t, anchor.Add(30*time.Minute), s.Next(anchor.Add(29*time.Minute)))
	assert.Equal(t, anchor.Add(60*time.Minute), s.Next(anchor.Add(30*time.Minute)))
}

func TestEveryDoesNotDrift(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s := Every(anchor, 30*time.Minute)

	// each run finishes late; the next fire stays on the grid
	fire := s.Next(anchor)
	for i := 1; i <= 48; i++ {
		assert.Equal(t, anchor.Add(time.Duration(i)*30*time.Minute), fire)
		finished := fire.Add(7*time.Minute + 13*time.Second)
		fire = s.Next(finished)
	}
}

func TestEverySkipsMissedSlots(t *testing.T) {
	anchor := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s := Every(anchor, 30*time.Minute)

	// a run that overran two slots resumes on the next grid point
	assert.Equal(t, anchor.Add(90*time.Minute), s.Next(anchor.Add(75*time.Minute)))
}
