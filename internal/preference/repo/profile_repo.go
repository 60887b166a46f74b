package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference/entity"
)

// ProfileRepo stores one JSONB preference document per user.
type ProfileRepo struct {
	db *sqlx.DB
}

func NewProfileRepo(db *sqlx.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// EnsureTable creates the profile table if not exists (idempotent).
func (r *ProfileRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_preference_profiles (
  user_id TEXT PRIMARY KEY,
  doc JSONB NOT NULL,
  cold_start_completed BOOLEAN NOT NULL DEFAULT false,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_profiles_cold_start ON user_preference_profiles(cold_start_completed);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Find returns the profile for userID. An absent profile is (nil, nil).
func (r *ProfileRepo) Find(ctx context.Context, userID string) (*entity.Profile, error) {
	const q = `SELECT doc FROM user_preference_profiles WHERE user_id=$1`
	var raw []byte
	if err := r.db.GetContext(ctx, &raw, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var p entity.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	return &p, nil
}

// Upsert writes the whole document, replacing any previous version.
func (r *ProfileRepo) Upsert(ctx context.Context, p *entity.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.UserID, err)
	}
	const q = `INSERT INTO user_preference_profiles (user_id, doc, cold_start_completed, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET doc=EXCLUDED.doc, cold_start_completed=EXCLUDED.cold_start_completed, updated_at=EXCLUDED.updated_at`
	_, err = r.db.ExecContext(ctx, q, p.UserID, raw, p.ColdStartCompleted, p.UpdatedAt)
	return err
}

// Delete removes the profile and returns the number of deleted rows.
func (r *ProfileRepo) Delete(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_preference_profiles WHERE user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
