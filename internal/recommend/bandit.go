package recommend

import (
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"
)

// DefaultExplorationFactor is the UCB exploration weight.
const DefaultExplorationFactor = 1.41

// Selector picks a feed from scored candidates with an epsilon-greedy
// policy. It is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector seeds the explore sampler. A zero seed uses the clock.
func NewSelector(seed int64) *Selector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Selector{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))}
}

// SelectEpsilonGreedy returns min(count, len(cands)) candidates. When there
// are no more candidates than count they are returned unchanged. Otherwise
// the top floor(count*(1-epsilon)) by score come first, followed by a
// uniform sample without replacement from the rest.
func (s *Selector) SelectEpsilonGreedy(cands []Candidate, count int, epsilon float64) []Candidate {
	if len(cands) <= count {
		return cands
	}
	if count <= 0 {
		return []Candidate{}
	}

	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	exploit := int(float64(count) * (1 - epsilon))
	exploit = min(max(exploit, 0), count)
	out := make([]Candidate, 0, count)
	out = append(out, sorted[:exploit]...)

	rest := sorted[exploit:]
	n := min(count-exploit, len(rest))
	s.mu.Lock()
	// partial Fisher-Yates over rest
	for i := 0; i < n; i++ {
		j := i + s.rng.IntN(len(rest)-i)
		rest[i], rest[j] = rest[j], rest[i]
	}
	s.mu.Unlock()
	return append(out, rest[:n]...)
}

// UCBScore ranks an arm by upper confidence bound. It is not used by the
// feed; callers opt in explicitly. An arm with no impressions scores 1.
func UCBScore(score float64, impressions, clicks int, factor float64) float64 {
	if impressions == 0 {
		return 1.0
	}
	rate := float64(clicks) / float64(impressions)
	return score + factor*math.Sqrt(rate)/math.Sqrt(float64(impressions))
}
