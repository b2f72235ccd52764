package types

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// ProfileQuery identifies a single aggregation request.
type ProfileQuery struct {
	username string
	key      string
}

// NewQuery validates a raw username and derives its cache key.
func NewQuery(raw string) (ProfileQuery, error) {
	username := strings.TrimSpace(raw)
	if username == "" {
		return ProfileQuery{}, NewError(KindInvalidInput, "username is required", nil)
	}

	if !usernamePattern.MatchString(username) {
		return ProfileQuery{}, NewError(KindInvalidInput,
			"username must be 3-20 characters of letters, digits or underscores", nil)
	}

	return ProfileQuery{
		username: username,
		key:      cases.Fold().String(username),
	}, nil
}

// Username returns the trimmed username as supplied by the caller.
func (q ProfileQuery) Username() string {
	return q.username
}

// Key returns the case-normalized key used for caching.
func (q ProfileQuery) Key() string {
	return q.key
}
