package entity

// Event is a catalog record. The catalog is read-only to this service.
type Event struct {
	ID               string   `db:"id" json:"event_id"`
	Title            string   `db:"title" json:"title"`
	Category         string   `db:"category" json:"category"`
	Price            float64  `db:"price" json:"price"`
	City             string   `db:"city" json:"city"`
	Neighborhood     *string  `db:"neighborhood" json:"neighborhood,omitempty"`
	Lat              *float64 `db:"lat" json:"lat,omitempty"`
	Lng              *float64 `db:"lng" json:"lng,omitempty"`
	PopularityScore  *float64 `db:"popularity_score" json:"popularity_score,omitempty"`
	TrendingScore    *float64 `db:"trending_score" json:"trending_score,omitempty"`
	TrendingAgeRange *int     `db:"trending_age_range" json:"trending_age_range,omitempty"`
	DayOfWeek        *string  `db:"day_of_week" json:"day_of_week,omitempty"`
	AgeRestriction   *string  `db:"age_restriction" json:"age_restriction,omitempty"`
}

// Popularity returns the popularity score or def when unset.
func (e *Event) Popularity(def float64) float64 {
	if e.PopularityScore == nil {
		return def
	}
	return *e.PopularityScore
}

// Trending returns the trending score or def when unset.
func (e *Event) Trending(def float64) float64 {
	if e.TrendingScore == nil {
		return def
	}
	return *e.TrendingScore
}
