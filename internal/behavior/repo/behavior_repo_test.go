package repo

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-recommend/internal/behavior/entity"
)

func newMock(t *testing.T) (*BehaviorRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBehaviorRepo(sqlx.NewDb(db, "postgres")), mock
}

func TestBehaviorRepo_Append(t *testing.T) {
	r, mock := newMock(t)
	ts := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	eventID := "evt-1"
	e := &entity.Event{
		ID:        "1",
		UserID:    "u1",
		Kind:      entity.KindPurchase,
		EventID:   &eventID,
		Location:  &entity.Point{Lat: 40.7, Lng: -74},
		SessionID: "s1",
		Timestamp: ts,
	}

	mock.ExpectExec(`INSERT INTO user_behavior_events`).
		WithArgs("1", "u1", "purchase", &eventID, (*string)(nil),
			nil, []byte(`{"lat":40.7,"lng":-74}`), nil, "s1", (*float64)(nil), ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Append(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// nullArg matches only an untyped nil driver value, which lib/pq sends as
// SQL NULL.
type nullArg struct{}

func (nullArg) Match(v driver.Value) bool { return v == nil }

func TestBehaviorRepo_AppendAbsentDocumentsAreNull(t *testing.T) {
	r, mock := newMock(t)
	ts := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	e := &entity.Event{ID: "2", UserID: "u1", Kind: entity.KindOpenApp, SessionID: "s1", Timestamp: ts}

	mock.ExpectExec(`INSERT INTO user_behavior_events`).
		WithArgs("2", "u1", "open_app", (*string)(nil), (*string)(nil),
			nullArg{}, nullArg{}, nullArg{}, "s1", (*float64)(nil), ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Append(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBehaviorRepo_AppendChosenEventIDs(t *testing.T) {
	r, mock := newMock(t)
	ts := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	e := &entity.Event{ID: "3", UserID: "u1", Kind: entity.KindSearch, SessionID: "s1", Timestamp: ts,
		ChosenEventIDs: []string{"a", "b"}}

	mock.ExpectExec(`INSERT INTO user_behavior_events`).
		WithArgs("3", "u1", "search", (*string)(nil), (*string)(nil),
			nullArg{}, nullArg{}, []byte(`["a","b"]`), "s1", (*float64)(nil), ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Append(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBehaviorRepo_SetReward(t *testing.T) {
	t.Run("updates most recent matching entry", func(t *testing.T) {
		r, mock := newMock(t)
		mock.ExpectExec(`UPDATE user_behavior_events SET reward`).
			WithArgs("u1", "evt-1", 1.0).
			WillReturnResult(sqlmock.NewResult(0, 1))

		n, err := r.SetReward(context.Background(), "u1", "evt-1", 1.0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("no match is not an error", func(t *testing.T) {
		r, mock := newMock(t)
		mock.ExpectExec(`UPDATE user_behavior_events SET reward`).
			WithArgs("u1", "evt-x", -1.0).
			WillReturnResult(sqlmock.NewResult(0, 0))

		n, err := r.SetReward(context.Background(), "u1", "evt-x", -1.0)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("propagates store failure", func(t *testing.T) {
		r, mock := newMock(t)
		mock.ExpectExec(`UPDATE user_behavior_events SET reward`).
			WillReturnError(errors.New("connection reset"))

		_, err := r.SetReward(context.Background(), "u1", "evt-1", 0.5)
		assert.Error(t, err)
	})
}
