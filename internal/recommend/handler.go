package recommend

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-recommend/internal/auth"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/validation"
	"github.com/ovaphlow/pitchfork/service-recommend/pkg/utilities"
)

const (
	defaultRadiusKm  = 25.0
	defaultFeedCount = 30
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type FeedInput struct {
	Lat      *float64 `json:"lat" validate:"required,latitude"`
	Lng      *float64 `json:"lng" validate:"required,longitude"`
	RadiusKm float64  `json:"radius_km" validate:"gt=0"`
	Count    int      `json:"count" validate:"min=1,max=100"`
}

type NaturalInput struct {
	Query string   `json:"query" validate:"required,min=3"`
	Lat   *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng   *float64 `json:"lng" validate:"omitempty,longitude"`
}

type HighlightsInput struct {
	Lat      *float64 `json:"lat" validate:"required,latitude"`
	Lng      *float64 `json:"lng" validate:"required,longitude"`
	RadiusKm float64  `json:"radius_km" validate:"gt=0"`
}

// decode reads and validates the body into v, answering 422 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := utilities.DecodeJSON(r, v); err != nil {
		utilities.WriteError(w, http.StatusUnprocessableEntity, "invalid payload")
		return false
	}
	if err := validation.Struct(v); err != nil {
		utilities.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	in := FeedInput{RadiusKm: defaultRadiusKm, Count: defaultFeedCount}
	if !decode(w, r, &in) {
		return
	}
	resp, err := h.svc.Feed(r.Context(), userID, FeedRequest{
		Lat:      *in.Lat,
		Lng:      *in.Lng,
		RadiusKm: in.RadiusKm,
		Count:    in.Count,
	})
	if err != nil {
		h.logger.Errorw("feed failed", "user_id", userID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error generating feed")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Natural(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	var in NaturalInput
	if !decode(w, r, &in) {
		return
	}
	resp, err := h.svc.Natural(r.Context(), userID, in.Query)
	if err != nil {
		h.logger.Errorw("natural search failed", "user_id", userID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error processing natural query")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Highlights(w http.ResponseWriter, r *http.Request) {
	in := HighlightsInput{RadiusKm: defaultRadiusKm}
	if !decode(w, r, &in) {
		return
	}
	resp, err := h.svc.Highlights(r.Context())
	if err != nil {
		h.logger.Errorw("highlights failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error fetching highlights")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, resp)
}
