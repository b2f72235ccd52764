package fetcher

import (
	"context"

	"github.com/jaxron/roapi.go/pkg/api"
	"github.com/jaxron/roapi.go/pkg/api/resources/groups"
	"github.com/robalyx/roprofile/internal/roblox/upstream"
	"go.uber.org/zap"
)

// GroupFetcher retrieves a user's group memberships.
type GroupFetcher struct {
	client Caller
	logger *zap.Logger
}

// NewGroupFetcher creates a GroupFetcher with the provided API client and logger.
func NewGroupFetcher(client Caller, logger *zap.Logger) *GroupFetcher {
	return &GroupFetcher{
		client: client,
		logger: logger.Named("group_fetcher"),
	}
}

// GetGroupCount returns how many groups the user belongs to.
func (g *GroupFetcher) GetGroupCount(ctx context.Context, userID uint64) (uint64, error) {
	var count uint64
	err := g.client.Call(ctx, upstream.Endpoint{Name: "group_roles"},
		func(ctx context.Context, roAPI *api.API) error {
			builder := groups.NewUserGroupRolesBuilder(userID)
			fetchedGroups, err := roAPI.Groups().GetUserGroupRoles(ctx, builder.Build())
			if err != nil {
				return err
			}

			count = uint64(len(fetchedGroups.Data))
			return nil
		})
	return count, err
}
