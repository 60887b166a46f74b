package preference

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-recommend/internal/auth"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference/entity"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/validation"
	"github.com/ovaphlow/pitchfork/service-recommend/pkg/utilities"
)

// Handler exposes onboarding and profile endpoints under /v1/user.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type OnboardingRequest struct {
	Intent string `json:"intent" validate:"required,oneof=explore create freelance"`
	Age    int    `json:"age" validate:"required,min=13,max=120"`
	Gender string `json:"gender" validate:"required,oneof=male female non_binary prefer_not_to_say"`
}

func (h *Handler) Onboarding(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	var req OnboardingRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		h.logger.Debugw("invalid onboarding payload", "err", err)
		utilities.WriteError(w, http.StatusUnprocessableEntity, "invalid payload")
		return
	}
	if err := validation.Struct(req); err != nil {
		utilities.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if _, err := h.svc.Onboard(r.Context(), userID, entity.Intent(req.Intent), req.Age, entity.Gender(req.Gender)); err != nil {
		h.logger.Errorw("onboarding failed", "user_id", userID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error completing onboarding")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Onboarding completed",
		"user_id": userID,
	})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	p, err := h.svc.Profile(r.Context(), userID)
	if err != nil {
		h.logger.Errorw("fetch profile failed", "user_id", userID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error fetching profile")
		return
	}
	if p == nil {
		utilities.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "not_found",
			"message": "No preference profile yet",
			"user_id": userID,
		})
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"profile": p,
	})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	n, err := h.svc.Reset(r.Context(), userID)
	if err != nil {
		h.logger.Errorw("reset profile failed", "user_id", userID, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "Error resetting profile")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"message":       "Profile reset successfully",
		"deleted_count": n,
	})
}
