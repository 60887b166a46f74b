package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-recommend/internal/behavior/entity"
)

// BehaviorRepo is the append-only behavior log. Rows are never updated
// except for the reward column.
type BehaviorRepo struct {
	db *sqlx.DB
}

func NewBehaviorRepo(db *sqlx.DB) *BehaviorRepo { return &BehaviorRepo{db: db} }

// EnsureTable creates the behavior log table if not exists (idempotent).
func (r *BehaviorRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_behavior_events (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  event_id TEXT,
  query_text TEXT,
  filters JSONB,
  location JSONB,
  chosen_event_ids JSONB,
  session_id TEXT NOT NULL,
  reward DOUBLE PRECISION,
  ts TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_behavior_user_ts ON user_behavior_events(user_id, ts DESC);
CREATE INDEX IF NOT EXISTS idx_behavior_event_id ON user_behavior_events(event_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Append writes e to the log. e.ID and e.Timestamp must be set.
func (r *BehaviorRepo) Append(ctx context.Context, e *entity.Event) error {
	filters, err := jsonOrNil(e.Filters)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}
	loc, err := jsonOrNil(e.Location)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	var chosen any
	if len(e.ChosenEventIDs) > 0 {
		if chosen, err = jsonOrNil(&e.ChosenEventIDs); err != nil {
			return fmt.Errorf("encode chosen_event_ids: %w", err)
		}
	}
	const q = `INSERT INTO user_behavior_events
		(id, user_id, kind, event_id, query_text, filters, location, chosen_event_ids, session_id, reward, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.db.ExecContext(ctx, q,
		e.ID, e.UserID, string(e.Kind), e.EventID, e.QueryText,
		filters, loc, chosen, e.SessionID, e.Reward, e.Timestamp,
	)
	return err
}

// SetReward records reward on the user's most recent log entry that
// references eventID (or whose own id is eventID). It returns the number of
// rows updated; no matching entry is not an error.
func (r *BehaviorRepo) SetReward(ctx context.Context, userID, eventID string, reward float64) (int64, error) {
	const q = `UPDATE user_behavior_events SET reward=$3
		WHERE id = (
			SELECT id FROM user_behavior_events
			WHERE user_id=$1 AND (event_id=$2 OR id=$2)
			ORDER BY ts DESC LIMIT 1
		)`
	res, err := r.db.ExecContext(ctx, q, userID, eventID, reward)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// jsonOrNil keeps absent optional documents as SQL NULL. The result must be
// an untyped nil in that case: lib/pq sends a nil []byte as '', which JSONB
// rejects.
func jsonOrNil[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
