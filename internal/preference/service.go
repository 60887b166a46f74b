package preference

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference/entity"
)

// Service exposes profile lifecycle operations to the HTTP layer.
type Service struct {
	store   Store
	updater *Updater
}

func NewService(store Store, updater *Updater) *Service {
	return &Service{store: store, updater: updater}
}

// Profile returns the user's profile or nil when the user is new.
func (s *Service) Profile(ctx context.Context, userID string) (*entity.Profile, error) {
	return s.store.Find(ctx, userID)
}

func (s *Service) Onboard(ctx context.Context, userID string, intent entity.Intent, age int, gender entity.Gender) (*entity.Profile, error) {
	return s.updater.Onboard(ctx, userID, intent, age, gender)
}

func (s *Service) Reset(ctx context.Context, userID string) (int64, error) {
	return s.updater.Reset(ctx, userID)
}
