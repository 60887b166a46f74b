package entity

import "time"

// Kind is the closed set of user behaviors the client reports.
type Kind string

const (
	KindSearch       Kind = "search"
	KindView         Kind = "view"
	KindLike         Kind = "like"
	KindRepost       Kind = "repost"
	KindPurchase     Kind = "purchase"
	KindAttend       Kind = "attend"
	KindSkip         Kind = "skip"
	KindNaturalQuery Kind = "natural_query"
	KindOpenApp      Kind = "open_app"
)

// Kinds lists every valid Kind.
var Kinds = []Kind{
	KindSearch, KindView, KindLike, KindRepost, KindPurchase,
	KindAttend, KindSkip, KindNaturalQuery, KindOpenApp,
}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// KindForReward derives the behavior kind implied by explicit reward
// feedback: strong positive rewards count as a purchase, strong negative
// ones as a skip, anything in between as a like.
func KindForReward(reward float64) Kind {
	switch {
	case reward >= 0.8:
		return KindPurchase
	case reward < -0.5:
		return KindSkip
	default:
		return KindLike
	}
}

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Filters struct {
	Category       *string  `json:"category,omitempty"`
	PriceMax       *float64 `json:"price_max,omitempty"`
	Time           *string  `json:"time,omitempty"`
	RadiusKm       *float64 `json:"radius_km,omitempty"`
	AgeRestriction *string  `json:"age_restriction,omitempty"`
}

// Event is a write-once behavior log entry. Only Reward may be set later.
type Event struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Kind           Kind      `db:"kind" json:"type"`
	EventID        *string   `db:"event_id" json:"event_id,omitempty"`
	QueryText      *string   `db:"query_text" json:"query_text,omitempty"`
	Filters        *Filters  `db:"-" json:"filters_applied,omitempty"`
	Location       *Point    `db:"-" json:"location,omitempty"`
	ChosenEventIDs []string  `db:"-" json:"chosen_event_ids,omitempty"`
	SessionID      string    `db:"session_id" json:"session_id"`
	Reward         *float64  `db:"reward" json:"reward"`
	Timestamp      time.Time `db:"ts" json:"timestamp"`
}
