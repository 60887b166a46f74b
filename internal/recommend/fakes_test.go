package recommend

import (
	"context"
	"slices"
	"sort"
	"sync"

	catalog "github.com/ovaphlow/pitchfork/service-recommend/internal/catalog/entity"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/catalog/repo"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/nlp"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference/entity"
)

func ptr[T any](v T) *T { return &v }

// memCatalog evaluates filters in memory. Geo radius is not evaluated; every
// event counts as nearby.
type memCatalog struct {
	mu      sync.Mutex
	events  []catalog.Event
	err     error
	queries []repo.Filter
}

func (m *memCatalog) Query(_ context.Context, f repo.Filter) ([]catalog.Event, error) {
	m.mu.Lock()
	m.queries = append(m.queries, f)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	var out []catalog.Event
	for _, e := range m.events {
		switch {
		case len(f.Categories) > 0 && !slices.Contains(f.Categories, e.Category):
		case f.PriceMax != nil && e.Price > *f.PriceMax:
		case f.AgeRestriction != nil && (e.AgeRestriction == nil || *e.AgeRestriction != *f.AgeRestriction):
		case f.TrendingAgeMin != nil && (e.TrendingAgeRange == nil || *e.TrendingAgeRange < *f.TrendingAgeMin):
		case f.TrendingAgeMax != nil && (e.TrendingAgeRange == nil || *e.TrendingAgeRange > *f.TrendingAgeMax):
		case f.DayOfWeek != nil && (e.DayOfWeek == nil || *e.DayOfWeek != *f.DayOfWeek):
		case f.MinTrendingScore != nil && (e.TrendingScore == nil || *e.TrendingScore < *f.MinTrendingScore):
		default:
			out = append(out, e)
		}
	}
	switch f.SortBy {
	case repo.SortPopularity:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Popularity(-1) > out[j].Popularity(-1) })
	case repo.SortTrending:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Trending(-1) > out[j].Trending(-1) })
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type memProfiles struct {
	profiles map[string]*entity.Profile
	err      error
}

func (m *memProfiles) Find(_ context.Context, userID string) (*entity.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.profiles[userID], nil
}

type stubParser struct {
	result  nlp.ParseResult
	explain string
	counts  []int
}

func (s *stubParser) Parse(context.Context, string) nlp.ParseResult { return s.result }

func (s *stubParser) Explain(_ context.Context, _ string, _ nlp.Intent, count int) nlp.ExplainResult {
	s.counts = append(s.counts, count)
	if s.explain == "" {
		return nlp.ExplainResult{Text: nlp.FallbackExplanation, Source: nlp.SourceFallback, Reason: nlp.ReasonDisabled}
	}
	return nlp.ExplainResult{Text: s.explain, Source: nlp.SourceLLM}
}
