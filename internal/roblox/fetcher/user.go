package fetcher

import (
	"context"
	"net/http"
	"time"

	"github.com/jaxron/roapi.go/pkg/api"
	"github.com/robalyx/roprofile/internal/roblox/upstream"
	"github.com/robalyx/roprofile/internal/types"
	"go.uber.org/zap"
)

// ResolvedUser is the identity returned by a username lookup.
type ResolvedUser struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Verified    bool   `json:"hasVerifiedBadge"`
}

// UserDetails is the detailed profile payload.
type UserDetails struct {
	ID          uint64
	Name        string
	DisplayName string
	Description string
	Created     time.Time
	IsBanned    bool
}

type usernameLookupRequest struct {
	Usernames          []string `json:"usernames"`
	ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
}

type usernameLookupResponse struct {
	Data []ResolvedUser `json:"data"`
}

// UserFetcher handles identity resolution and detailed profile retrieval.
type UserFetcher struct {
	client Caller
	logger *zap.Logger
}

// NewUserFetcher creates a UserFetcher with the provided API client and logger.
func NewUserFetcher(client Caller, logger *zap.Logger) *UserFetcher {
	return &UserFetcher{
		client: client,
		logger: logger.Named("user_fetcher"),
	}
}

// ResolveUsername maps a username to its account. No match is a UserNotFound error.
// roapi has no username lookup, so this is a raw request.
func (u *UserFetcher) ResolveUsername(ctx context.Context, username string) (*ResolvedUser, error) {
	var resp usernameLookupResponse
	err := u.client.Do(ctx, upstream.Endpoint{
		Name:   "username_lookup",
		Method: http.MethodPost,
		URL:    upstream.UsersAPI + "/v1/usernames/users",
		Body: usernameLookupRequest{
			Usernames:          []string{username},
			ExcludeBannedUsers: false,
		},
		Required: true,
	}, &resp)
	if err != nil {
		return nil, classify(err, "failed to resolve username", 0)
	}

	if len(resp.Data) == 0 || resp.Data[0].ID == 0 {
		u.logger.Debug("Username did not match any user", zap.String("username", username))
		return nil, types.NewError(types.KindUserNotFound, "user not found", nil)
	}

	user := resp.Data[0]
	return &user, nil
}

// GetUserDetails fetches the detailed profile for a user id.
func (u *UserFetcher) GetUserDetails(ctx context.Context, userID uint64) (*UserDetails, error) {
	const name = "user_details"

	var details *UserDetails
	err := u.client.Call(ctx, upstream.Endpoint{Name: name, Required: true},
		func(ctx context.Context, roAPI *api.API) error {
			userInfo, err := roAPI.Users().GetUserByID(ctx, userID)
			if err != nil {
				return err
			}

			details = &UserDetails{
				ID:          userInfo.ID,
				Name:        userInfo.Name,
				DisplayName: userInfo.DisplayName,
				Description: userInfo.Description,
				Created:     userInfo.Created,
				IsBanned:    userInfo.IsBanned,
			}
			return nil
		})
	if err != nil {
		return nil, classify(err, "failed to fetch user details", http.StatusNotFound)
	}

	if details == nil || details.ID == 0 {
		return nil, classify(&upstream.Failure{
			Reason:   upstream.ReasonDecode,
			Endpoint: name,
			Err:      ErrUnexpectedShape,
		}, "failed to fetch user details", 0)
	}

	return details, nil
}
