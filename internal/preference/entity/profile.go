package entity

import "time"

// Intent is the onboarding answer to "what brings you here".
type Intent string

const (
	IntentExplore   Intent = "explore"
	IntentCreate    Intent = "create"
	IntentFreelance Intent = "freelance"
)

type Gender string

const (
	GenderMale           Gender = "male"
	GenderFemale         Gender = "female"
	GenderNonBinary      Gender = "non_binary"
	GenderPreferNotToSay Gender = "prefer_not_to_say"
)

// DefaultAge is assumed for users that skipped onboarding.
const DefaultAge = 25

// ColdStartThreshold is the number of attended or purchased events after
// which a profile leaves the cold-start phase.
const ColdStartThreshold = 3

type CategoryScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// PriceRange is a running statistic over qualifying purchase prices.
type PriceRange struct {
	Avg          float64 `json:"avg"`
	MaxEverPaid  float64 `json:"max_ever_paid"`
	SweetSpotMin float64 `json:"sweet_spot_min"`
	SweetSpotMax float64 `json:"sweet_spot_max"`
}

// InSweetSpot reports whether price falls inside [SweetSpotMin, SweetSpotMax].
func (p *PriceRange) InSweetSpot(price float64) bool {
	return p != nil && p.SweetSpotMin <= price && price <= p.SweetSpotMax
}

type LocationPreference struct {
	City         string  `json:"city"`
	Neighborhood *string `json:"neighborhood,omitempty"`
	Score        float64 `json:"score"`
}

// Profile is the per-user preference document. It is stored as a single
// JSON document keyed by UserID.
type Profile struct {
	UserID              string               `json:"user_id"`
	UpdatedAt           time.Time            `json:"updated_at"`
	OnboardingIntent    *Intent              `json:"onboarding_intent,omitempty"`
	Age                 *int                 `json:"age,omitempty"`
	Gender              *Gender              `json:"gender,omitempty"`
	PreferredCategories []CategoryScore      `json:"preferred_categories"`
	PreferredPriceRange *PriceRange          `json:"preferred_price_range,omitempty"`
	PreferredLocations  []LocationPreference `json:"preferred_locations"`
	TotalEventsAttended int                  `json:"total_events_attended"`
	ColdStartCompleted  bool                 `json:"cold_start_completed"`
}

// NewProfile returns an empty profile for a user seen for the first time.
func NewProfile(userID string, now time.Time) *Profile {
	return &Profile{
		UserID:              userID,
		UpdatedAt:           now,
		PreferredCategories: []CategoryScore{},
		PreferredLocations:  []LocationPreference{},
	}
}

// Category returns the entry for name, or nil.
func (p *Profile) Category(name string) *CategoryScore {
	for i := range p.PreferredCategories {
		if p.PreferredCategories[i].Name == name {
			return &p.PreferredCategories[i]
		}
	}
	return nil
}

// Location returns the entry matching the exact (city, neighborhood) pair, or nil.
func (p *Profile) Location(city string, neighborhood *string) *LocationPreference {
	for i := range p.PreferredLocations {
		l := &p.PreferredLocations[i]
		if l.City == city && sameNeighborhood(l.Neighborhood, neighborhood) {
			return l
		}
	}
	return nil
}

// IntentOrDefault returns the onboarding intent, defaulting to explore.
func (p *Profile) IntentOrDefault() Intent {
	if p == nil || p.OnboardingIntent == nil || *p.OnboardingIntent == "" {
		return IntentExplore
	}
	return *p.OnboardingIntent
}

// AgeOrDefault returns the onboarding age, defaulting to DefaultAge.
func (p *Profile) AgeOrDefault() int {
	if p == nil || p.Age == nil {
		return DefaultAge
	}
	return *p.Age
}

// InColdStart reports whether recommendations should come from the
// cold-start blend. A nil profile is a new user.
func (p *Profile) InColdStart() bool {
	return p == nil || !p.ColdStartCompleted
}

func sameNeighborhood(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
