// Package nlp turns free-text event searches into structured intents and
// explains search results, using an LLM with a deterministic fallback.
package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ovaphlow/pitchfork/service-recommend/internal/metrics"
)

// Intent is the structured form of a natural-language event search.
type Intent struct {
	Categories     []string `json:"categories"`
	PriceMax       *float64 `json:"price_max"`
	TimeSlot       *string  `json:"time_slot"`
	Location       *string  `json:"location"`
	AgeRestriction *string  `json:"age_restriction"`
	VibeKeywords   []string `json:"vibe_keywords"`
}

// FallbackIntent matches everything: no categories and a generic vibe.
func FallbackIntent() Intent {
	return Intent{Categories: []string{}, VibeKeywords: []string{"general"}}
}

type Source string

const (
	SourceLLM      Source = "llm"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// Fallback reasons.
const (
	ReasonDisabled    = "disabled"
	ReasonRateLimited = "rate_limited"
	ReasonCircuitOpen = "circuit_open"
	ReasonTimeout     = "timeout"
	ReasonError       = "error"
	ReasonDecode      = "decode"
)

// ParseResult carries the parsed intent and where it came from. Reason is
// set only when Source is SourceFallback.
type ParseResult struct {
	Intent Intent
	Source Source
	Reason string
}

func (r ParseResult) Fallback() bool { return r.Source == SourceFallback }

type ExplainResult struct {
	Text   string
	Source Source
	Reason string
}

// FallbackExplanation is returned when no explanation can be generated.
const FallbackExplanation = "Here are personalized event recommendations based on your search."

type Options struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	CacheSize     int
	CacheTTL      time.Duration
}

// Parser wraps a Completer with a deadline, a circuit breaker, a process-wide
// rate limit and a cache of successful parses. Its methods never fail.
type Parser struct {
	completer Completer
	timeout   time.Duration
	breaker   *gobreaker.CircuitBreaker[string]
	limiter   *rate.Limiter
	cache     *expirable.LRU[string, Intent]
	logger    *zap.SugaredLogger
}

// NewParser builds a Parser. A nil completer disables the LLM and every
// call returns the fallback.
func NewParser(c Completer, opts Options, logger *zap.SugaredLogger) *Parser {
	if opts.Timeout <= 0 {
		opts.Timeout = 4 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}

	p := &Parser{
		completer: c,
		timeout:   opts.Timeout,
		limiter:   rate.NewLimiter(limit, opts.Burst),
		cache:     expirable.NewLRU[string, Intent](opts.CacheSize, nil, opts.CacheTTL),
		logger:    logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("llm circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return p
}

const parseSystemPrompt = "You are a JSON parsing API. Always respond with valid JSON only."

const parsePromptTemplate = `
You are an expert event search query parser. Parse the following user query and extract:
1. Event categories (Techno, Hip-Hop, House, Jazz, Comedy, Theater, etc.)
2. Max price willing to pay (if mentioned)
3. Time slot preference (Early Evening, Evening, Late Night, Afternoon, All Day)
4. Location/neighborhood preferences
5. Age restrictions (21+, 18+, All Ages)
6. Vibe keywords (intimate, energetic, chill, underground, mainstream, etc.)

Query: %q

Respond ONLY with valid JSON (no markdown, no code blocks):
{
  "categories": ["category1", "category2"],
  "price_max": null or number,
  "time_slot": "Evening" or null,
  "location": "Brooklyn" or null,
  "age_restriction": "21+" or null,
  "vibe_keywords": ["keyword1", "keyword2"]
}
`

// Parse converts query into an Intent.
func (p *Parser) Parse(ctx context.Context, query string) ParseResult {
	key := strings.ToLower(strings.TrimSpace(query))
	if in, ok := p.cache.Get(key); ok {
		metrics.LLMCalls.WithLabelValues("parse", string(SourceCache)).Inc()
		return ParseResult{Intent: in, Source: SourceCache}
	}

	out, reason := p.complete(ctx, "parse", CompletionRequest{
		System:      parseSystemPrompt,
		Prompt:      fmt.Sprintf(parsePromptTemplate, query),
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if reason != "" {
		return ParseResult{Intent: FallbackIntent(), Source: SourceFallback, Reason: reason}
	}

	in, err := decodeIntent(out)
	if err != nil {
		p.logger.Warnw("llm returned undecodable intent", "err", err)
		metrics.LLMCalls.WithLabelValues("parse", ReasonDecode).Inc()
		return ParseResult{Intent: FallbackIntent(), Source: SourceFallback, Reason: ReasonDecode}
	}
	metrics.LLMCalls.WithLabelValues("parse", string(SourceLLM)).Inc()
	p.cache.Add(key, in)
	return ParseResult{Intent: in, Source: SourceLLM}
}

const explainPromptTemplate = `
Summarize why we found %d events for this search in 1 short sentence.

User query: %q
Parsed as:
- Categories: %s
- Max price: %s
- Time: %s
- Location: %s

Response with just 1 sentence explanation.
`

// Explain summarizes a search result in one sentence.
func (p *Parser) Explain(ctx context.Context, query string, in Intent, count int) ExplainResult {
	cats := "any"
	if len(in.Categories) > 0 {
		cats = strings.Join(in.Categories, ", ")
	}
	price := "no limit"
	if in.PriceMax != nil {
		price = fmt.Sprintf("$%g", *in.PriceMax)
	}
	out, reason := p.complete(ctx, "explain", CompletionRequest{
		Prompt:      fmt.Sprintf(explainPromptTemplate, count, query, cats, price, orDefault(in.TimeSlot, "any time"), orDefault(in.Location, "nearby")),
		Temperature: 0.7,
		MaxTokens:   100,
	})
	if reason == "" && out == "" {
		reason = ReasonError
		metrics.LLMCalls.WithLabelValues("explain", reason).Inc()
	}
	if reason != "" {
		return ExplainResult{Text: FallbackExplanation, Source: SourceFallback, Reason: reason}
	}
	metrics.LLMCalls.WithLabelValues("explain", string(SourceLLM)).Inc()
	return ExplainResult{Text: out, Source: SourceLLM}
}

type completion struct {
	text string
	err  error
}

// complete runs one guarded LLM call. It returns the reply, or an empty
// reply and the fallback reason. Failures are counted here; successes are
// counted by the caller once the reply is usable.
func (p *Parser) complete(ctx context.Context, op string, req CompletionRequest) (string, string) {
	a := p.tryComplete(ctx, req)
	if a.reason != "" {
		metrics.LLMCalls.WithLabelValues(op, a.reason).Inc()
		p.logger.Warnw("llm call fell back", "op", op, "reason", a.reason, "err", a.err)
	}
	return a.text, a.reason
}

type attempt struct {
	text   string
	reason string
	err    error
}

func (p *Parser) tryComplete(ctx context.Context, req CompletionRequest) attempt {
	if p.completer == nil {
		return attempt{reason: ReasonDisabled}
	}
	if !p.limiter.Allow() {
		return attempt{reason: ReasonRateLimited}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// the completer may ignore ctx; the select bounds the wait regardless
	done := make(chan completion, 1)
	go func() {
		text, err := p.breaker.Execute(func() (string, error) {
			return p.completer.Complete(ctx, req)
		})
		done <- completion{text: text, err: err}
	}()

	select {
	case c := <-done:
		switch {
		case c.err == nil:
			return attempt{text: c.text}
		case errors.Is(c.err, gobreaker.ErrOpenState), errors.Is(c.err, gobreaker.ErrTooManyRequests):
			return attempt{reason: ReasonCircuitOpen, err: c.err}
		case errors.Is(c.err, context.DeadlineExceeded):
			return attempt{reason: ReasonTimeout, err: c.err}
		default:
			return attempt{reason: ReasonError, err: c.err}
		}
	case <-ctx.Done():
		return attempt{reason: ReasonTimeout, err: ctx.Err()}
	}
}

func decodeIntent(content string) (Intent, error) {
	content = stripFence(content)
	var in Intent
	if err := json.Unmarshal([]byte(content), &in); err != nil {
		return Intent{}, err
	}
	if in.Categories == nil {
		in.Categories = []string{}
	}
	if in.VibeKeywords == nil {
		in.VibeKeywords = []string{}
	}
	return in, nil
}

// stripFence unwraps a reply wrapped in a markdown code block.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return s
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[1]), "json"))
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
