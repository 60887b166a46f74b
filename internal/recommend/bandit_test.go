package recommend

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/ovaphlow/pitchfork/service-recommend/internal/catalog/entity"
)

func candidates(n int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		// ascending scores so sorting is observable
		out[i] = Candidate{Event: catalog.Event{ID: fmt.Sprintf("e%02d", i)}, Score: float64(i) / float64(n)}
	}
	return out
}

func TestSelectEpsilonGreedy_Partition(t *testing.T) {
	s := NewSelector(42)
	for run := 0; run < 50; run++ {
		got := s.SelectEpsilonGreedy(candidates(20), 10, 0.15)
		require.Len(t, got, 10)

		// exploit: the 8 best in descending order
		for i := 0; i < 8; i++ {
			assert.Equal(t, fmt.Sprintf("e%02d", 19-i), got[i].Event.ID)
		}
		// explore: 2 distinct ids from the remaining 12
		seen := map[string]bool{}
		for _, c := range got {
			require.False(t, seen[c.Event.ID], "duplicate %s", c.Event.ID)
			seen[c.Event.ID] = true
		}
		for _, c := range got[8:] {
			assert.Less(t, c.Score, candidates(20)[12].Score)
		}
	}
}

func TestSelectEpsilonGreedy_SmallInputUnchanged(t *testing.T) {
	s := NewSelector(1)
	in := candidates(5)
	got := s.SelectEpsilonGreedy(in, 10, 0.15)
	assert.Equal(t, in, got)

	got = s.SelectEpsilonGreedy(in, 5, 0.15)
	assert.Equal(t, in, got)
}

func TestSelectEpsilonGreedy_OutputSize(t *testing.T) {
	s := NewSelector(7)
	for _, tt := range []struct{ n, count int }{{20, 10}, {100, 30}, {31, 30}, {3, 1}, {50, 1}} {
		got := s.SelectEpsilonGreedy(candidates(tt.n), tt.count, 0.15)
		assert.Len(t, got, min(tt.n, tt.count), "n=%d count=%d", tt.n, tt.count)
	}
}

func TestSelectEpsilonGreedy_DoesNotMutateInput(t *testing.T) {
	in := candidates(20)
	snapshot := append([]Candidate(nil), in...)
	NewSelector(3).SelectEpsilonGreedy(in, 10, 0.15)
	assert.Equal(t, snapshot, in)
}

func TestUCBScore(t *testing.T) {
	assert.Equal(t, 1.0, UCBScore(0.3, 0, 0, DefaultExplorationFactor))
	// 0.5 + 1.41 * sqrt(25/100) / sqrt(100)
	assert.InDelta(t, 0.5705, UCBScore(0.5, 100, 25, DefaultExplorationFactor), 1e-9)
	assert.Equal(t, 0.5, UCBScore(0.5, 10, 0, DefaultExplorationFactor))
}
