package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	catalog "github.com/ovaphlow/pitchfork/service-recommend/internal/catalog/entity"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/nlp"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference/entity"
)

var testOptions = Options{
	Epsilon:            0.15,
	FeedCandidateLimit: 1000,
	HighlightsMinScore: 0.7,
	HighlightsLimit:    10,
	NaturalQueryLimit:  100,
	NaturalResultLimit: 50,
}

func newTestService(cat *memCatalog, profiles map[string]*entity.Profile, parser IntentParser) *Service {
	svc := NewService(&memProfiles{profiles: profiles}, cat, NewSelector(11), parser, testOptions, zap.NewNop().Sugar())
	svc.coldStart.now = func() time.Time { return friday }
	return svc
}

func warmProfile(id string) *entity.Profile {
	p := entity.NewProfile(id, friday)
	p.ColdStartCompleted = true
	p.TotalEventsAttended = 3
	p.PreferredCategories = []entity.CategoryScore{{Name: "Techno", Score: 0.8}}
	p.PreferredPriceRange = &entity.PriceRange{Avg: 40, MaxEverPaid: 40, SweetSpotMin: 32, SweetSpotMax: 48}
	return p
}

func TestFeed_ColdStartForNewUser(t *testing.T) {
	cat := &memCatalog{events: []catalog.Event{
		{ID: "e1", PopularityScore: ptr(0.9)},
		{ID: "e2", PopularityScore: ptr(0.4)},
	}}
	svc := newTestService(cat, nil, &stubParser{})

	resp, err := svc.Feed(context.Background(), "new-user", FeedRequest{Lat: 40.7, Lng: -73.9, RadiusKm: 25, Count: 10})
	require.NoError(t, err)
	require.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, "e1", resp.Events[0].EventID)
	assert.Equal(t, "Recommended for new members", resp.Events[0].Reason)
	assert.InDelta(t, 0.36, resp.Events[0].Score, 1e-9)
}

func TestFeed_ColdStartUsesOnboardingAnswers(t *testing.T) {
	cat := &memCatalog{}
	p := entity.NewProfile("u1", friday)
	intent, age := entity.IntentFreelance, 40
	p.OnboardingIntent, p.Age = &intent, &age
	svc := newTestService(cat, map[string]*entity.Profile{"u1": p}, &stubParser{})

	_, err := svc.Feed(context.Background(), "u1", FeedRequest{Count: 8})
	require.NoError(t, err)
	var sawIntent, sawAge bool
	for _, q := range cat.queries {
		if len(q.Categories) > 0 {
			sawIntent = assert.Equal(t, []string{"industry_networking", "professional_event"}, q.Categories)
		}
		if q.TrendingAgeMin != nil {
			sawAge = assert.Equal(t, 37, *q.TrendingAgeMin)
		}
	}
	assert.True(t, sawIntent)
	assert.True(t, sawAge)
}

func TestFeed_PersonalizedForWarmUser(t *testing.T) {
	var events []catalog.Event
	for i := 0; i < 20; i++ {
		events = append(events, catalog.Event{ID: fmt.Sprintf("c%02d", i), Category: "Comedy", Price: 100})
	}
	events = append(events, catalog.Event{ID: "techno", Category: "Techno", Price: 40})
	cat := &memCatalog{events: events}
	svc := newTestService(cat, map[string]*entity.Profile{"u1": warmProfile("u1")}, &stubParser{})

	resp, err := svc.Feed(context.Background(), "u1", FeedRequest{Lat: 40.7, Lng: -73.9, RadiusKm: 25, Count: 10})
	require.NoError(t, err)
	require.Len(t, resp.Events, 10)
	assert.Equal(t, 10, resp.TotalCount)
	assert.Equal(t, "techno", resp.Events[0].EventID)
	assert.Equal(t, "You love Techno", resp.Events[0].Reason)
	assert.InDelta(t, 0.9, resp.Events[0].Score, 1e-9)
	require.Len(t, cat.queries, 1)
	assert.Equal(t, 1000, cat.queries[0].Limit)
}

func TestFeed_StoreFailuresPropagate(t *testing.T) {
	t.Run("profile", func(t *testing.T) {
		svc := NewService(&memProfiles{err: errors.New("db down")}, &memCatalog{}, NewSelector(1), &stubParser{}, testOptions, zap.NewNop().Sugar())
		_, err := svc.Feed(context.Background(), "u1", FeedRequest{Count: 10})
		assert.ErrorContains(t, err, "find profile")
	})
	t.Run("catalog", func(t *testing.T) {
		svc := newTestService(&memCatalog{err: errors.New("db down")}, map[string]*entity.Profile{"u1": warmProfile("u1")}, &stubParser{})
		_, err := svc.Feed(context.Background(), "u1", FeedRequest{Count: 10})
		assert.Error(t, err)
	})
}

func TestNatural(t *testing.T) {
	events := []catalog.Event{
		{ID: "cheap-techno", Category: "Techno", Price: 35, AgeRestriction: ptr("21+")},
		{ID: "pricey-techno", Category: "Techno", Price: 80, AgeRestriction: ptr("21+")},
		{ID: "house", Category: "House", Price: 20, AgeRestriction: ptr("21+")},
		{ID: "jazz", Category: "Jazz", Price: 10},
	}

	t.Run("llm intent filters and scores", func(t *testing.T) {
		parser := &stubParser{
			result: nlp.ParseResult{Source: nlp.SourceLLM, Intent: nlp.Intent{
				Categories:     []string{"Techno", "House"},
				PriceMax:       ptr(40.0),
				AgeRestriction: ptr("21+"),
				VibeKeywords:   []string{"underground"},
			}},
			explain: "Found 2 techno and house nights under $40.",
		}
		cat := &memCatalog{events: events}
		svc := newTestService(cat, map[string]*entity.Profile{"u1": warmProfile("u1")}, parser)

		resp, err := svc.Natural(context.Background(), "u1", "techno or house under $40, 21+")
		require.NoError(t, err)
		assert.Equal(t, nlp.SourceLLM, resp.IntentSource)
		assert.Empty(t, resp.FallbackReason)
		require.Len(t, resp.Events, 2)
		assert.Equal(t, "cheap-techno", resp.Events[0].EventID)
		assert.InDelta(t, 0.9, resp.Events[0].Score, 1e-9)
		assert.Equal(t, "house", resp.Events[1].EventID)
		assert.Equal(t, "Found 2 techno and house nights under $40.", resp.Explanation)
		assert.Equal(t, []int{2}, parser.counts)
		assert.Equal(t, 100, cat.queries[0].Limit)
	})

	t.Run("fallback intent searches everything for a new user", func(t *testing.T) {
		parser := &stubParser{result: nlp.ParseResult{Intent: nlp.FallbackIntent(), Source: nlp.SourceFallback, Reason: nlp.ReasonTimeout}}
		svc := newTestService(&memCatalog{events: events}, nil, parser)

		resp, err := svc.Natural(context.Background(), "new-user", "something fun")
		require.NoError(t, err)
		assert.Equal(t, nlp.SourceFallback, resp.IntentSource)
		assert.Equal(t, nlp.ReasonTimeout, resp.FallbackReason)
		assert.Equal(t, []string{"general"}, resp.ParsedIntent.VibeKeywords)
		require.Len(t, resp.Events, 4)
		for _, e := range resp.Events {
			assert.Equal(t, 0.5, e.Score)
			assert.Equal(t, "Trending now", e.Reason)
		}
		assert.Equal(t, nlp.FallbackExplanation, resp.Explanation)
	})

	t.Run("results are capped after explaining the full count", func(t *testing.T) {
		var many []catalog.Event
		for i := 0; i < 70; i++ {
			many = append(many, catalog.Event{ID: fmt.Sprintf("e%02d", i), Category: "Jazz"})
		}
		parser := &stubParser{result: nlp.ParseResult{Intent: nlp.FallbackIntent(), Source: nlp.SourceFallback, Reason: nlp.ReasonError}}
		svc := newTestService(&memCatalog{events: many}, nil, parser)
		resp, err := svc.Natural(context.Background(), "u", "jazz")
		require.NoError(t, err)
		assert.Len(t, resp.Events, 50)
		assert.Equal(t, []int{70}, parser.counts)
	})
}

func TestHighlights(t *testing.T) {
	cat := &memCatalog{events: []catalog.Event{
		{ID: "low", TrendingScore: ptr(0.5)},
		{ID: "mid", TrendingScore: ptr(0.7)},
		{ID: "top", TrendingScore: ptr(0.95)},
		{ID: "none"},
	}}
	svc := newTestService(cat, nil, &stubParser{})
	resp, err := svc.Highlights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "mid"}, resp.EventIDs)
	assert.Equal(t, "Trending tonight in your area", resp.Message)
}
