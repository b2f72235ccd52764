package handler

import (
	"net/http"
	"time"

	"github.com/robalyx/roprofile/internal/rest/respond"
	restTypes "github.com/robalyx/roprofile/internal/rest/types"
	"github.com/uptrace/bunrouter"
)

// HealthHandler reports liveness.
type HealthHandler struct {
	version string
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version, started: time.Now()}
}

// GetHealth always reports ok while the process serves requests.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, _ bunrouter.Request) error {
	return respond.JSON(w, http.StatusOK, restTypes.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	})
}
