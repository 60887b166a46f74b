package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-recommend/internal/catalog/entity"
)

// SortField names a numeric column the catalog can order by, descending.
type SortField string

const (
	SortNone       SortField = ""
	SortPopularity SortField = "popularity_score"
	SortTrending   SortField = "trending_score"
)

// GeoRadius limits results to events within RadiusKm of (Lat, Lng).
type GeoRadius struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// Filter describes a catalog query. Zero-valued fields do not filter.
type Filter struct {
	Categories       []string
	PriceMax         *float64
	AgeRestriction   *string
	Near             *GeoRadius
	TrendingAgeMin   *int
	TrendingAgeMax   *int
	DayOfWeek        *string
	MinTrendingScore *float64
	SortBy           SortField
	Limit            int
}

const eventColumns = `id, title, category, price, city, neighborhood, lat, lng,
	popularity_score, trending_score, trending_age_range, day_of_week, age_restriction`

// EventRepo reads the event catalog.
type EventRepo struct {
	db *sqlx.DB
}

func NewEventRepo(db *sqlx.DB) *EventRepo { return &EventRepo{db: db} }

// EnsureTable creates the events table if not exists (idempotent).
func (r *EventRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS events (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  price DOUBLE PRECISION NOT NULL DEFAULT 0,
  city TEXT NOT NULL DEFAULT '',
  neighborhood TEXT,
  lat DOUBLE PRECISION,
  lng DOUBLE PRECISION,
  popularity_score DOUBLE PRECISION,
  trending_score DOUBLE PRECISION,
  trending_age_range INT,
  day_of_week TEXT,
  age_restriction TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
CREATE INDEX IF NOT EXISTS idx_events_popularity ON events(popularity_score DESC);
CREATE INDEX IF NOT EXISTS idx_events_trending ON events(trending_score DESC);
CREATE INDEX IF NOT EXISTS idx_events_day_of_week ON events(day_of_week);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Get returns the event with id, or (nil, nil) when it does not exist.
func (r *EventRepo) Get(ctx context.Context, id string) (*entity.Event, error) {
	var e entity.Event
	if err := r.db.GetContext(ctx, &e, `SELECT `+eventColumns+` FROM events WHERE id=$1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// Query returns events matching f.
func (r *EventRepo) Query(ctx context.Context, f Filter) ([]entity.Event, error) {
	q, args, err := buildQuery(f)
	if err != nil {
		return nil, err
	}
	events := []entity.Event{}
	if err := r.db.SelectContext(ctx, &events, q, args...); err != nil {
		return nil, err
	}
	return events, nil
}

func buildQuery(f Filter) (string, []any, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Categories) > 0 {
		where = append(where, "category = ANY("+arg(pq.Array(f.Categories))+")")
	}
	if f.PriceMax != nil {
		where = append(where, "price <= "+arg(*f.PriceMax))
	}
	if f.AgeRestriction != nil {
		where = append(where, "age_restriction = "+arg(*f.AgeRestriction))
	}
	if f.Near != nil {
		lat, lng, radius := arg(f.Near.Lat), arg(f.Near.Lng), arg(f.Near.RadiusKm)
		// haversine distance in km
		where = append(where, fmt.Sprintf(`lat IS NOT NULL AND lng IS NOT NULL AND
	6371 * 2 * ASIN(SQRT(POWER(SIN(RADIANS(lat - %[1]s) / 2), 2) +
	COS(RADIANS(%[1]s)) * COS(RADIANS(lat)) * POWER(SIN(RADIANS(lng - %[2]s) / 2), 2))) <= %[3]s`, lat, lng, radius))
	}
	if f.TrendingAgeMin != nil {
		where = append(where, "trending_age_range >= "+arg(*f.TrendingAgeMin))
	}
	if f.TrendingAgeMax != nil {
		where = append(where, "trending_age_range <= "+arg(*f.TrendingAgeMax))
	}
	if f.DayOfWeek != nil {
		where = append(where, "day_of_week = "+arg(*f.DayOfWeek))
	}
	if f.MinTrendingScore != nil {
		where = append(where, "trending_score >= "+arg(*f.MinTrendingScore))
	}

	var b strings.Builder
	b.WriteString("SELECT " + eventColumns + " FROM events")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	switch f.SortBy {
	case SortNone:
		b.WriteString(" ORDER BY id")
	case SortPopularity, SortTrending:
		b.WriteString(" ORDER BY " + string(f.SortBy) + " DESC NULLS LAST, id")
	default:
		return "", nil, fmt.Errorf("unsupported sort field %q", f.SortBy)
	}
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + arg(f.Limit))
	}
	return b.String(), args, nil
}
