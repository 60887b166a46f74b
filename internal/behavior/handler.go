package behavior

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-recommend/internal/auth"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/behavior/entity"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/validation"
	"github.com/ovaphlow/pitchfork/service-recommend/pkg/utilities"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type PointInput struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

type LogRequest struct {
	Type           string          `json:"type" validate:"required,oneof=search view like repost purchase attend skip natural_query open_app"`
	EventID        *string         `json:"event_id"`
	QueryText      *string         `json:"query_text"`
	FiltersApplied *entity.Filters `json:"filters_applied"`
	Location       *PointInput     `json:"location"`
	ChosenEventIDs []string        `json:"chosen_event_ids"`
	SessionID      string          `json:"session_id" validate:"required"`
}

type RewardRequest struct {
	EventID string   `json:"event_id" validate:"required"`
	Reward  *float64 `json:"reward" validate:"required,gte=-1,lte=1"`
}

// Log handles POST /v1/behavior/log.
func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	var req LogRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, http.StatusUnprocessableEntity, "invalid payload")
		return
	}
	if err := validation.Struct(req); err != nil {
		utilities.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	e := &entity.Event{
		Kind:           entity.Kind(req.Type),
		EventID:        req.EventID,
		QueryText:      req.QueryText,
		Filters:        req.FiltersApplied,
		ChosenEventIDs: req.ChosenEventIDs,
		SessionID:      req.SessionID,
	}
	if req.Location != nil {
		e.Location = &entity.Point{Lat: req.Location.Lat, Lng: req.Location.Lng}
	}
	id, err := h.svc.Record(r.Context(), userID, e)
	if errors.Is(err, ErrUnknownKind) {
		utilities.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		h.logger.Errorw("log behavior failed", "user_id", userID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error logging behavior")
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, map[string]string{
		"status":   "success",
		"message":  "Behavior logged successfully",
		"event_id": id,
	})
}

// Reward handles POST /v1/recommend/feedback/reward.
func (h *Handler) Reward(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	var req RewardRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, http.StatusUnprocessableEntity, "invalid payload")
		return
	}
	if err := validation.Struct(req); err != nil {
		utilities.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if _, err := h.svc.SubmitReward(r.Context(), userID, req.EventID, *req.Reward); err != nil {
		h.logger.Errorw("submit reward failed", "user_id", userID, "event_id", req.EventID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error processing reward")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Reward processed, profile updated",
		"reward":  *req.Reward,
	})
}
