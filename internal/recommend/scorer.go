package recommend

import (
	catalog "github.com/ovaphlow/pitchfork/service-recommend/internal/catalog/entity"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference/entity"
)

const (
	baseScore      = 0.5
	sweetSpotBonus = 0.1
)

// Score rates how well e fits profile p, in [0, 1], with a short reason.
// A matching category replaces the base score; a price inside the sweet
// spot adds a flat bonus.
func Score(e *catalog.Event, p *entity.Profile) (float64, string) {
	if p == nil {
		return baseScore, "Trending now"
	}
	score := baseScore
	if e.Category != "" {
		if c := p.Category(e.Category); c != nil {
			score = c.Score
		}
	}
	if p.PreferredPriceRange.InSweetSpot(e.Price) {
		score += sweetSpotBonus
	}
	return clamp01(score), reason(e)
}

func reason(e *catalog.Event) string {
	if e.Category != "" {
		return "You love " + e.Category
	}
	return "Curated for you"
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
