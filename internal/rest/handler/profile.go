package handler

import (
	"context"
	"net/http"

	"github.com/robalyx/roprofile/internal/rest/convert"
	"github.com/robalyx/roprofile/internal/rest/middleware/ip"
	"github.com/robalyx/roprofile/internal/rest/respond"
	"github.com/robalyx/roprofile/internal/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// ProfileGetter looks up aggregated profiles.
type ProfileGetter interface {
	GetProfile(ctx context.Context, username string) (*types.Profile, bool, error)
}

// ProfileHandler handles profile lookup endpoints.
type ProfileHandler struct {
	profiles ProfileGetter
	logger   *zap.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profiles ProfileGetter, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger.Named("profile_handler"),
	}
}

// GetProfile returns the aggregated profile for the :username path parameter.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, req bunrouter.Request) error {
	username := req.Param("username")

	profile, cached, err := h.profiles.GetProfile(req.Context(), username)
	if err != nil {
		switch types.KindOf(err) {
		case types.KindInternal:
			h.logger.Error("Failed to get profile",
				zap.String("username", username),
				zap.String("ip", ip.FromContext(req.Context())),
				zap.Error(err))
		case types.KindInvalidInput, types.KindUserNotFound:
			// Caller errors are not logged
		default:
			h.logger.Warn("Profile lookup failed",
				zap.String("username", username),
				zap.Error(err))
		}
		return respond.Error(w, err)
	}

	return respond.JSON(w, http.StatusOK, convert.Profile(profile, cached))
}
