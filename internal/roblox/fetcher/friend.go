package fetcher

import (
	"context"
	"strconv"

	"github.com/robalyx/roprofile/internal/roblox/upstream"
	"go.uber.org/zap"
)

type countResponse struct {
	Count *uint64 `json:"count"`
}

// FriendFetcher retrieves friend counts.
type FriendFetcher struct {
	client Caller
	logger *zap.Logger
}

// NewFriendFetcher creates a FriendFetcher with the provided API client and logger.
func NewFriendFetcher(client Caller, logger *zap.Logger) *FriendFetcher {
	return &FriendFetcher{
		client: client,
		logger: logger.Named("friend_fetcher"),
	}
}

// GetFriendCount returns the number of friends a user has.
// roapi only lists friends, so the count endpoint is called raw.
func (f *FriendFetcher) GetFriendCount(ctx context.Context, userID uint64) (uint64, error) {
	const name = "friends_count"

	var resp countResponse
	err := f.client.Do(ctx, upstream.Endpoint{
		Name: name,
		URL:  upstream.FriendsAPI + "/v1/users/" + strconv.FormatUint(userID, 10) + "/friends/count",
	}, &resp)
	if err != nil {
		return 0, err
	}

	if resp.Count == nil {
		return 0, &upstream.Failure{Reason: upstream.ReasonDecode, Endpoint: name, Err: ErrUnexpectedShape}
	}

	return *resp.Count, nil
}
