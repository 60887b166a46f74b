package preference

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	behavior "github.com/ovaphlow/pitchfork/service-recommend/internal/behavior/entity"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference/entity"
)

const (
	categoryBoost = 0.15
	categorySeed  = 0.5
	locationBoost = 0.1
	locationSeed  = 0.4
	skipPenalty   = 0.05

	sweetSpotLow  = 0.8
	sweetSpotHigh = 1.2
)

// Store is the profile persistence contract. Find returns (nil, nil) when
// the user has no profile yet.
type Store interface {
	Find(ctx context.Context, userID string) (*entity.Profile, error)
	Upsert(ctx context.Context, p *entity.Profile) error
	Delete(ctx context.Context, userID string) (int64, error)
}

// primaryFinder is implemented by stores that front an authoritative copy,
// such as CachedStore. Updates must never start from a cached profile.
type primaryFinder interface {
	FindPrimary(ctx context.Context, userID string) (*entity.Profile, error)
}

// EventData is the part of a catalog event the updater learns from.
type EventData struct {
	Category string
	Price    float64
	City     string
	// Neighborhood is nil when the event has none; (city, nil) and
	// (city, "x") are different location keys.
	Neighborhood *string
}

// Updater applies behavior events to preference profiles. Updates for the
// same user are serialized; different users proceed in parallel.
type Updater struct {
	store  Store
	locks  *keyedMutex
	now    func() time.Time
	logger *zap.SugaredLogger
}

func NewUpdater(store Store, logger *zap.SugaredLogger) *Updater {
	return &Updater{
		store:  store,
		locks:  newKeyedMutex(256),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Update fetches (or lazily creates) the profile, applies the reward policy
// when reward is set and upserts the result.
func (u *Updater) Update(ctx context.Context, userID string, kind behavior.Kind, data *EventData, reward *float64) error {
	unlock := u.locks.Lock(userID)
	defer unlock()

	p, err := u.find(ctx, userID)
	if err != nil {
		return fmt.Errorf("find profile: %w", err)
	}
	if p == nil {
		p = entity.NewProfile(userID, u.now())
	}

	if reward != nil {
		ApplyReward(p, kind, *reward, data)
	} else {
		observe(p, kind, data)
	}
	p.UpdatedAt = u.now()

	if err := u.store.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	metrics.ProfileUpdates.WithLabelValues(string(kind), strconv.FormatBool(reward != nil)).Inc()
	u.logger.Debugw("profile updated",
		"user_id", userID,
		"kind", kind,
		"rewarded", reward != nil,
		"events_attended", p.TotalEventsAttended,
		"cold_start_completed", p.ColdStartCompleted,
	)
	return nil
}

// Onboard stores the onboarding answers and resets learned categories,
// locations and the cold-start progress. An existing price range is kept.
func (u *Updater) Onboard(ctx context.Context, userID string, intent entity.Intent, age int, gender entity.Gender) (*entity.Profile, error) {
	unlock := u.locks.Lock(userID)
	defer unlock()

	prev, err := u.find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	p := entity.NewProfile(userID, u.now())
	if prev != nil {
		p.PreferredPriceRange = prev.PreferredPriceRange
	}
	p.OnboardingIntent = &intent
	p.Age = &age
	p.Gender = &gender
	if err := u.store.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return p, nil
}

func (u *Updater) find(ctx context.Context, userID string) (*entity.Profile, error) {
	if pf, ok := u.store.(primaryFinder); ok {
		return pf.FindPrimary(ctx, userID)
	}
	return u.store.Find(ctx, userID)
}

// Reset deletes the profile so the user starts over in cold start.
func (u *Updater) Reset(ctx context.Context, userID string) (int64, error) {
	unlock := u.locks.Lock(userID)
	defer unlock()
	return u.store.Delete(ctx, userID)
}

// ApplyReward mutates p according to the reward policy for kind.
// Purchase and attend learn category, price and location preferences and
// count towards leaving cold start; skip decays an existing category.
// Other kinds are ignored. Missing event data skips the sub-updates.
func ApplyReward(p *entity.Profile, kind behavior.Kind, reward float64, data *EventData) {
	switch kind {
	case behavior.KindPurchase, behavior.KindAttend:
		if data == nil {
			return
		}
		learnCategory(p, data.Category, reward)
		learnPrice(p, data.Price)
		if data.City != "" {
			learnLocation(p, data.City, data.Neighborhood, reward)
		}
		p.TotalEventsAttended++
		if p.TotalEventsAttended >= entity.ColdStartThreshold {
			p.ColdStartCompleted = true
		}
	case behavior.KindSkip:
		if data == nil || data.Category == "" {
			return
		}
		if c := p.Category(data.Category); c != nil {
			c.Score = clamp01(c.Score - skipPenalty)
		}
	}
}

// observe is where unrewarded signals (search, view, like, repost,
// natural_query, open_app) would shape the profile. They are logged
// upstream but deliberately do not mutate preferences yet.
func observe(*entity.Profile, behavior.Kind, *EventData) {}

func learnCategory(p *entity.Profile, name string, reward float64) {
	if name == "" {
		name = "Unknown"
	}
	if c := p.Category(name); c != nil {
		c.Score = clamp01(c.Score + reward*categoryBoost)
		return
	}
	p.PreferredCategories = append(p.PreferredCategories, entity.CategoryScore{
		Name:  name,
		Score: clamp01(reward * categorySeed),
	})
}

func learnPrice(p *entity.Profile, price float64) {
	pr := p.PreferredPriceRange
	if pr == nil {
		p.PreferredPriceRange = &entity.PriceRange{
			Avg:          price,
			MaxEverPaid:  price,
			SweetSpotMin: price * sweetSpotLow,
			SweetSpotMax: price * sweetSpotHigh,
		}
		return
	}
	pr.Avg = (pr.Avg + price) / 2
	if price > pr.MaxEverPaid {
		pr.MaxEverPaid = price
	}
}

func learnLocation(p *entity.Profile, city string, neighborhood *string, reward float64) {
	if l := p.Location(city, neighborhood); l != nil {
		l.Score = clamp01(l.Score + reward*locationBoost)
		return
	}
	p.PreferredLocations = append(p.PreferredLocations, entity.LocationPreference{
		City:         city,
		Neighborhood: neighborhood,
		Score:        clamp01(reward * locationSeed),
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// keyedMutex is a fixed set of mutexes striped by key hash. Two keys may
// share a stripe; a key always maps to the same one.
type keyedMutex struct {
	stripes []sync.Mutex
}

func newKeyedMutex(n int) *keyedMutex {
	return &keyedMutex{stripes: make([]sync.Mutex, n)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.stripes[h.Sum32()%uint32(len(k.stripes))]
	m.Lock()
	return m.Unlock
}
