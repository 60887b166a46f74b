package recommend

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	catalog "github.com/ovaphlow/pitchfork/service-recommend/internal/catalog/entity"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/catalog/repo"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference/entity"
)

// Signal weights and defaults for the cold-start blend.
const (
	popularWeight  = 0.40
	trendingWeight = 0.25
	intentWeight   = 0.20
	timeWeight     = 0.15

	defaultPopularity = 0.5
	defaultTrending   = 0.6
	intentSignal      = 0.7
	timeSignal        = 0.6

	trendingAgeWindow = 3
)

var intentCategories = map[entity.Intent][]string{
	entity.IntentExplore:   {"diverse_category"},
	entity.IntentCreate:    {"large_scale", "production_event"},
	entity.IntentFreelance: {"industry_networking", "professional_event"},
}

// EventQuerier is the read side of the event catalog.
type EventQuerier interface {
	Query(ctx context.Context, f repo.Filter) ([]catalog.Event, error)
}

type ColdStartRequest struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
	Count    int
	Intent   entity.Intent
	Age      int
}

// ColdStartEngine ranks events for users without enough history, blending
// four catalog signals: popular nearby, trending in the user's age group,
// onboarding intent and the current day of week.
type ColdStartEngine struct {
	events EventQuerier
	now    func() time.Time
}

func NewColdStartEngine(events EventQuerier) *ColdStartEngine {
	return &ColdStartEngine{events: events, now: func() time.Time { return time.Now().UTC() }}
}

type signal struct {
	filter repo.Filter
	score  func(e *catalog.Event) float64
}

// Recommend returns at most req.Count candidates ordered by composite
// score. An event found by several signals keeps its earliest signal.
func (c *ColdStartEngine) Recommend(ctx context.Context, req ColdStartRequest) ([]Candidate, error) {
	if req.Count <= 0 {
		return []Candidate{}, nil
	}
	intent := req.Intent
	cats, ok := intentCategories[intent]
	if !ok {
		cats = intentCategories[entity.IntentExplore]
	}
	near := &repo.GeoRadius{Lat: req.Lat, Lng: req.Lng, RadiusKm: req.RadiusKm}
	ageMin, ageMax := req.Age-trendingAgeWindow, req.Age+trendingAgeWindow
	day := c.now().Weekday().String()

	signals := []signal{
		{
			filter: repo.Filter{Near: near, SortBy: repo.SortPopularity, Limit: fetchSize(req.Count, 2)},
			score:  func(e *catalog.Event) float64 { return e.Popularity(defaultPopularity) * popularWeight },
		},
		{
			filter: repo.Filter{Near: near, TrendingAgeMin: &ageMin, TrendingAgeMax: &ageMax, SortBy: repo.SortTrending, Limit: fetchSize(req.Count, 3)},
			score:  func(e *catalog.Event) float64 { return e.Trending(defaultTrending) * trendingWeight },
		},
		{
			filter: repo.Filter{Categories: cats, Limit: fetchSize(req.Count, 4)},
			score:  func(*catalog.Event) float64 { return intentSignal * intentWeight },
		},
		{
			filter: repo.Filter{DayOfWeek: &day, SortBy: repo.SortPopularity, Limit: fetchSize(req.Count, 4)},
			score:  func(*catalog.Event) float64 { return timeSignal * timeWeight },
		},
	}

	results := make([][]catalog.Event, len(signals))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range signals {
		g.Go(func() error {
			events, err := c.events.Query(gctx, s.filter)
			if err != nil {
				return err
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := make([]Candidate, 0, req.Count)
	for i, events := range results {
		for j := range events {
			e := events[j]
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, Candidate{Event: e, Score: signals[i].score(&e), Reason: coldStartReason})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > req.Count {
		out = out[:req.Count]
	}
	return out, nil
}

// fetchSize is count/div. A share that rounds down to zero fetches up to
// count instead, so small feeds still draw from every signal.
func fetchSize(count, div int) int {
	if n := count / div; n > 0 {
		return n
	}
	return count
}
