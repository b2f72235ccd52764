package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jaxron/roapi.go/pkg/api"
	"github.com/jaxron/roapi.go/pkg/api/resources/thumbnails"
	apiTypes "github.com/jaxron/roapi.go/pkg/api/types"
	"github.com/robalyx/roprofile/internal/roblox/upstream"
	"go.uber.org/zap"
)

// ErrThumbnailUnavailable is returned when the headshot is not in the Completed state.
var ErrThumbnailUnavailable = errors.New("thumbnail not available")

// ThumbnailFetcher retrieves avatar headshots.
type ThumbnailFetcher struct {
	client Caller
	logger *zap.Logger
}

// NewThumbnailFetcher creates a ThumbnailFetcher with the provided API client and logger.
func NewThumbnailFetcher(client Caller, logger *zap.Logger) *ThumbnailFetcher {
	return &ThumbnailFetcher{
		client: client,
		logger: logger.Named("thumbnail_fetcher"),
	}
}

// GetAvatarURL returns the 420x420 headshot URL for a user.
func (t *ThumbnailFetcher) GetAvatarURL(ctx context.Context, userID uint64) (string, error) {
	const name = "avatar_headshot"

	var (
		found     bool
		completed bool
		state     string
		imageURL  string
	)

	err := t.client.Call(ctx, upstream.Endpoint{Name: name},
		func(ctx context.Context, roAPI *api.API) error {
			requests := thumbnails.NewBatchThumbnailsBuilder()
			requests.AddRequest(apiTypes.ThumbnailRequest{
				Type:      apiTypes.AvatarHeadShotType,
				TargetID:  userID,
				RequestID: strconv.FormatUint(userID, 10),
				Size:      apiTypes.Size420x420,
				Format:    apiTypes.PNG,
			})

			thumbnailResponses, err := roAPI.Thumbnails().GetBatchThumbnails(ctx, requests.Build())
			if err != nil {
				return err
			}

			for _, response := range thumbnailResponses.Data {
				if response.TargetID != userID {
					continue
				}
				found = true
				completed = response.State == apiTypes.ThumbnailStateCompleted
				state = fmt.Sprint(response.State)
				if response.ImageURL != nil {
					imageURL = *response.ImageURL
				}
				break
			}
			return nil
		})
	if err != nil {
		return "", err
	}

	if !found {
		return "", &upstream.Failure{Reason: upstream.ReasonDecode, Endpoint: name, Err: ErrUnexpectedShape}
	}

	if !completed || imageURL == "" {
		t.logger.Debug("Headshot not ready",
			zap.Uint64("userID", userID),
			zap.String("state", state))
		return "", ErrThumbnailUnavailable
	}

	return imageURL, nil
}
