package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	catalog "github.com/ovaphlow/pitchfork/service-recommend/internal/catalog/entity"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/catalog/repo"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/nlp"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference/entity"
)

const (
	coldStartReason   = "Recommended for new members"
	highlightsMessage = "Trending tonight in your area"
)

// Candidate is an event under consideration for a response, with the score
// and reason it was ranked by.
type Candidate struct {
	Event  catalog.Event
	Score  float64
	Reason string
}

type Recommendation struct {
	EventID string  `json:"event_id"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

type FeedRequest struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
	Count    int
}

type FeedResponse struct {
	Events     []Recommendation `json:"events"`
	TotalCount int              `json:"total_count"`
}

type NaturalResponse struct {
	ParsedIntent   nlp.Intent       `json:"parsed_intent"`
	IntentSource   nlp.Source       `json:"intent_source"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
	Events         []Recommendation `json:"events"`
	Explanation    string           `json:"explanation"`
}

type HighlightsResponse struct {
	EventIDs []string `json:"event_ids"`
	Message  string   `json:"message"`
}

// ProfileFinder reads preference profiles; absence is (nil, nil).
type ProfileFinder interface {
	Find(ctx context.Context, userID string) (*entity.Profile, error)
}

// IntentParser is the natural-language collaborator. Its methods never fail.
type IntentParser interface {
	Parse(ctx context.Context, query string) nlp.ParseResult
	Explain(ctx context.Context, query string, in nlp.Intent, count int) nlp.ExplainResult
}

type Options struct {
	Epsilon            float64
	FeedCandidateLimit int
	HighlightsMinScore float64
	HighlightsLimit    int
	NaturalQueryLimit  int
	NaturalResultLimit int
}

// Service builds feeds, natural-language search results and highlights.
type Service struct {
	profiles  ProfileFinder
	events    EventQuerier
	coldStart *ColdStartEngine
	selector  *Selector
	parser    IntentParser
	opts      Options
	logger    *zap.SugaredLogger
}

func NewService(profiles ProfileFinder, events EventQuerier, selector *Selector, parser IntentParser, opts Options, logger *zap.SugaredLogger) *Service {
	return &Service{
		profiles:  profiles,
		events:    events,
		coldStart: NewColdStartEngine(events),
		selector:  selector,
		parser:    parser,
		opts:      opts,
		logger:    logger,
	}
}

// Feed returns the home feed. Users still in cold start get the blended
// cold-start ranking; everyone else gets profile-scored events picked by
// the epsilon-greedy selector.
func (s *Service) Feed(ctx context.Context, userID string, req FeedRequest) (*FeedResponse, error) {
	start := time.Now()
	p, err := s.profiles.Find(ctx, userID)
	if err != nil {
		metrics.RecommendFailures.WithLabelValues("feed").Inc()
		return nil, fmt.Errorf("find profile: %w", err)
	}

	path := "personalized"
	var picked []Candidate
	if p.InColdStart() {
		path = "cold_start"
		picked, err = s.coldStart.Recommend(ctx, ColdStartRequest{
			Lat:      req.Lat,
			Lng:      req.Lng,
			RadiusKm: req.RadiusKm,
			Count:    req.Count,
			Intent:   p.IntentOrDefault(),
			Age:      p.AgeOrDefault(),
		})
	} else {
		picked, err = s.personalized(ctx, p, req.Count)
	}
	if err != nil {
		metrics.RecommendFailures.WithLabelValues(path).Inc()
		return nil, err
	}

	recs := toRecommendations(picked)
	metrics.RecommendRequests.WithLabelValues(path).Inc()
	metrics.RecommendLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	s.logger.Debugw("feed served", "user_id", userID, "path", path, "count", len(recs))
	return &FeedResponse{Events: recs, TotalCount: len(recs)}, nil
}

func (s *Service) personalized(ctx context.Context, p *entity.Profile, count int) ([]Candidate, error) {
	events, err := s.events.Query(ctx, repo.Filter{Limit: s.opts.FeedCandidateLimit})
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	cands := make([]Candidate, 0, len(events))
	for i := range events {
		score, why := Score(&events[i], p)
		cands = append(cands, Candidate{Event: events[i], Score: score, Reason: why})
	}
	return s.selector.SelectEpsilonGreedy(cands, count, s.opts.Epsilon), nil
}

// Natural answers a free-text search. Parsing and explanation fall back to
// safe defaults; catalog and profile failures fail the request.
func (s *Service) Natural(ctx context.Context, userID, query string) (*NaturalResponse, error) {
	start := time.Now()
	parsed := s.parser.Parse(ctx, query)
	in := parsed.Intent

	f := repo.Filter{Categories: in.Categories, Limit: s.opts.NaturalQueryLimit}
	if in.PriceMax != nil && *in.PriceMax > 0 {
		f.PriceMax = in.PriceMax
	}
	if in.AgeRestriction != nil && *in.AgeRestriction != "" {
		f.AgeRestriction = in.AgeRestriction
	}
	events, err := s.events.Query(ctx, f)
	if err != nil {
		metrics.RecommendFailures.WithLabelValues("natural").Inc()
		return nil, fmt.Errorf("query events: %w", err)
	}
	p, err := s.profiles.Find(ctx, userID)
	if err != nil {
		metrics.RecommendFailures.WithLabelValues("natural").Inc()
		return nil, fmt.Errorf("find profile: %w", err)
	}

	cands := make([]Candidate, 0, len(events))
	for i := range events {
		score, why := Score(&events[i], p)
		cands = append(cands, Candidate{Event: events[i], Score: score, Reason: why})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Score > cands[j].Score })

	explanation := s.parser.Explain(ctx, query, in, len(cands))
	if n := s.opts.NaturalResultLimit; n > 0 && len(cands) > n {
		cands = cands[:n]
	}

	metrics.RecommendRequests.WithLabelValues("natural").Inc()
	metrics.RecommendLatency.WithLabelValues("natural").Observe(time.Since(start).Seconds())
	s.logger.Debugw("natural search served",
		"user_id", userID,
		"intent_source", parsed.Source,
		"fallback_reason", parsed.Reason,
		"matches", len(events),
	)
	return &NaturalResponse{
		ParsedIntent:   in,
		IntentSource:   parsed.Source,
		FallbackReason: parsed.Reason,
		Events:         toRecommendations(cands),
		Explanation:    explanation.Text,
	}, nil
}

// Highlights returns the ids of the top trending events.
func (s *Service) Highlights(ctx context.Context) (*HighlightsResponse, error) {
	start := time.Now()
	minScore := s.opts.HighlightsMinScore
	events, err := s.events.Query(ctx, repo.Filter{
		MinTrendingScore: &minScore,
		SortBy:           repo.SortTrending,
		Limit:            s.opts.HighlightsLimit,
	})
	if err != nil {
		metrics.RecommendFailures.WithLabelValues("highlights").Inc()
		return nil, fmt.Errorf("query highlights: %w", err)
	}
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	metrics.RecommendRequests.WithLabelValues("highlights").Inc()
	metrics.RecommendLatency.WithLabelValues("highlights").Observe(time.Since(start).Seconds())
	return &HighlightsResponse{EventIDs: ids, Message: highlightsMessage}, nil
}

func toRecommendations(cands []Candidate) []Recommendation {
	out := make([]Recommendation, 0, len(cands))
	for _, c := range cands {
		out = append(out, Recommendation{EventID: c.Event.ID, Score: c.Score, Reason: c.Reason})
	}
	return out
}
