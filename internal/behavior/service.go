package behavior

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-recommend/internal/behavior/entity"
	catalog "github.com/ovaphlow/pitchfork/service-recommend/internal/catalog/entity"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference"
	"github.com/ovaphlow/pitchfork/service-recommend/pkg/utilities"
)

// ErrUnknownKind is returned by Record for a kind outside entity.Kinds.
var ErrUnknownKind = errors.New("unknown behavior kind")

// Log is the behavior log contract.
type Log interface {
	Append(ctx context.Context, e *entity.Event) error
	SetReward(ctx context.Context, userID, eventID string, reward float64) (int64, error)
}

// Catalog resolves referenced catalog events. Get returns (nil, nil) for
// unknown ids.
type Catalog interface {
	Get(ctx context.Context, id string) (*catalog.Event, error)
}

type ProfileUpdater interface {
	Update(ctx context.Context, userID string, kind entity.Kind, data *preference.EventData, reward *float64) error
}

// Service records user behavior and forwards it to the preference updater.
type Service struct {
	log     Log
	catalog Catalog
	updater ProfileUpdater
	nodeID  int64
	now     func() time.Time
	logger  *zap.SugaredLogger
}

func NewService(log Log, cat Catalog, updater ProfileUpdater, nodeID int64, logger *zap.SugaredLogger) *Service {
	return &Service{
		log:     log,
		catalog: cat,
		updater: updater,
		nodeID:  nodeID,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// Record appends e to the behavior log and updates the user's profile
// without a reward. It assigns e.ID, e.UserID and e.Timestamp and returns
// the new log entry id.
func (s *Service) Record(ctx context.Context, userID string, e *entity.Event) (string, error) {
	if !e.Kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	e.ID = utilities.NewBehaviorID(s.nodeID)
	e.UserID = userID
	e.Reward = nil
	e.Timestamp = s.now()
	if err := s.log.Append(ctx, e); err != nil {
		return "", fmt.Errorf("append behavior: %w", err)
	}

	var data *preference.EventData
	if e.EventID != nil && *e.EventID != "" {
		var err error
		if data, err = s.eventData(ctx, *e.EventID); err != nil {
			return "", err
		}
	}
	if err := s.updater.Update(ctx, userID, e.Kind, data, nil); err != nil {
		return "", err
	}
	s.logger.Debugw("behavior recorded", "id", e.ID, "user_id", userID, "kind", e.Kind)
	return e.ID, nil
}

// SubmitReward attaches reward to the latest log entry for eventID and
// applies it to the profile under the kind the reward implies.
func (s *Service) SubmitReward(ctx context.Context, userID, eventID string, reward float64) (entity.Kind, error) {
	n, err := s.log.SetReward(ctx, userID, eventID, reward)
	if err != nil {
		return "", fmt.Errorf("set reward: %w", err)
	}
	if n == 0 {
		s.logger.Debugw("reward without matching behavior entry", "user_id", userID, "event_id", eventID)
	}
	data, err := s.eventData(ctx, eventID)
	if err != nil {
		return "", err
	}
	kind := entity.KindForReward(reward)
	if err := s.updater.Update(ctx, userID, kind, data, &reward); err != nil {
		return "", err
	}
	return kind, nil
}

func (s *Service) eventData(ctx context.Context, eventID string) (*preference.EventData, error) {
	ev, err := s.catalog.Get(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	if ev == nil {
		return nil, nil
	}
	return &preference.EventData{
		Category:     ev.Category,
		Price:        ev.Price,
		City:         ev.City,
		Neighborhood: ev.Neighborhood,
	}, nil
}
