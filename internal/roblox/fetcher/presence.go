package fetcher

import (
	"context"

	"github.com/jaxron/roapi.go/pkg/api"
	"github.com/jaxron/roapi.go/pkg/api/resources/presence"
	apiTypes "github.com/jaxron/roapi.go/pkg/api/types"
	"github.com/robalyx/roprofile/internal/roblox/upstream"
	"go.uber.org/zap"
)

// PresenceFetcher retrieves online status.
type PresenceFetcher struct {
	client Caller
	logger *zap.Logger
}

// NewPresenceFetcher creates a PresenceFetcher with the provided API client and logger.
func NewPresenceFetcher(client Caller, logger *zap.Logger) *PresenceFetcher {
	return &PresenceFetcher{
		client: client,
		logger: logger.Named("presence_fetcher"),
	}
}

// GetPresenceCode returns the raw presence code for a user.
// A nil code means the upstream returned no presence for the user.
func (p *PresenceFetcher) GetPresenceCode(ctx context.Context, userID uint64) (*int, error) {
	var code *int
	err := p.client.Call(ctx, upstream.Endpoint{Name: "presence"},
		func(ctx context.Context, roAPI *api.API) error {
			params := presence.NewUserPresencesBuilder(userID).Build()
			presences, err := roAPI.Presence().GetUserPresences(ctx, params)
			if err != nil {
				return err
			}

			for _, userPresence := range presences.UserPresences {
				if userPresence.UserID != userID {
					continue
				}

				switch userPresence.UserPresenceType {
				case apiTypes.Offline:
					code = presenceCodePtr(0)
				case apiTypes.Website:
					code = presenceCodePtr(1)
				case apiTypes.InGame:
					code = presenceCodePtr(2)
				case apiTypes.InStudio:
					code = presenceCodePtr(3)
				}
				break
			}
			return nil
		})
	return code, err
}

func presenceCodePtr(code int) *int {
	return &code
}
