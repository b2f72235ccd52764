package fetcher

import (
	"context"

	"github.com/jaxron/roapi.go/pkg/api"
	"github.com/robalyx/roprofile/internal/roblox/upstream"
	"go.uber.org/zap"
)

// FollowFetcher retrieves follower and following counts.
type FollowFetcher struct {
	client Caller
	logger *zap.Logger
}

// NewFollowFetcher creates a FollowFetcher with the provided API client and logger.
func NewFollowFetcher(client Caller, logger *zap.Logger) *FollowFetcher {
	return &FollowFetcher{
		client: client,
		logger: logger.Named("follow_fetcher"),
	}
}

// GetFollowerCount returns how many users follow the user.
func (f *FollowFetcher) GetFollowerCount(ctx context.Context, userID uint64) (uint64, error) {
	var count uint64
	err := f.client.Call(ctx, upstream.Endpoint{Name: "followers_count"},
		func(ctx context.Context, roAPI *api.API) error {
			var err error
			count, err = roAPI.Friends().GetFollowerCount(ctx, userID)
			return err
		})
	return count, err
}

// GetFollowingCount returns how many users the user follows.
func (f *FollowFetcher) GetFollowingCount(ctx context.Context, userID uint64) (uint64, error) {
	var count uint64
	err := f.client.Call(ctx, upstream.Endpoint{Name: "followings_count"},
		func(ctx context.Context, roAPI *api.API) error {
			var err error
			count, err = roAPI.Friends().GetFollowingCount(ctx, userID)
			return err
		})
	return count, err
}
