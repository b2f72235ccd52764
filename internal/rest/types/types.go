package types

import (
	"github.com/robalyx/roprofile/internal/profile"
	"github.com/robalyx/roprofile/internal/types"
)

// ProfileResponse is returned by the profile lookup endpoint.
type ProfileResponse struct {
	Success bool           `json:"success"`
	Cached  bool           `json:"cached"`
	Data    *types.Profile `json:"data"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Kind    types.ErrorKind `json:"kind"`
	Message string          `json:"message"`
	Details any             `json:"details,omitempty"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// StatsResponse is returned by the cache stats endpoint.
type StatsResponse struct {
	Success bool          `json:"success"`
	Data    profile.Stats `json:"data"`
}

// KeysResponse is returned by the cache keys endpoint.
type KeysResponse struct {
	Success bool     `json:"success"`
	Count   int      `json:"count"`
	Keys    []string `json:"keys"`
}

// ClearResponse is returned by the cache clear endpoint.
type ClearResponse struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}

// InvalidateResponse is returned by the single-entry cache delete endpoint.
type InvalidateResponse struct {
	Success bool   `json:"success"`
	Key     string `json:"key"`
	Removed bool   `json:"removed"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}
