package types

import "time"

// NotAvailable is used for optional text fields the upstream did not provide.
const NotAvailable = "N/A"

// ActivityStatus reports whether the account is usable on the platform.
type ActivityStatus string

const (
	ActivityStatusActive ActivityStatus = "Active"
	ActivityStatusBanned ActivityStatus = "Banned"
)

// Profile is the normalized record returned for a username.
// Every field is always populated, falling back to defaults when the
// upstream data is missing.
type Profile struct {
	ID                uint64         `json:"id"`
	Username          string         `json:"username"`
	DisplayName       string         `json:"displayName"`
	Description       string         `json:"description"`
	Created           time.Time      `json:"created"`
	AccountAge        string         `json:"accountAge"`
	AccountAgeDays    int            `json:"accountAgeDays"`
	IsVerified        bool           `json:"isVerified"`
	Status            ActivityStatus `json:"status"`
	Presence          PresenceStatus `json:"presence"`
	Followers         uint64         `json:"followers"`
	Followings        uint64         `json:"followings"`
	Friends           uint64         `json:"friends"`
	Groups            uint64         `json:"groups"`
	AvatarURL         string         `json:"avatarUrl"`
	PreviousUsernames []string       `json:"previousUsernames"`
	ProfileURL        string         `json:"profileUrl"`
	LastUpdated       time.Time      `json:"lastUpdated"`
}
