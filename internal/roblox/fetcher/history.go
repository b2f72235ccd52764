package fetcher

import (
	"context"
	"net/url"
	"slices"
	"strconv"

	"github.com/robalyx/roprofile/internal/roblox/upstream"
	"go.uber.org/zap"
)

// DefaultHistoryPages bounds how many username history pages are followed.
const DefaultHistoryPages = 3

const historyPageSize = 100

type historyResponse struct {
	NextPageCursor *string `json:"nextPageCursor"`
	Data           *[]struct {
		Name string `json:"name"`
	} `json:"data"`
}

// HistoryFetcher retrieves previous usernames.
type HistoryFetcher struct {
	client   Caller
	maxPages int
	logger   *zap.Logger
}

// NewHistoryFetcher creates a HistoryFetcher with the provided API client and logger.
func NewHistoryFetcher(client Caller, maxPages int, logger *zap.Logger) *HistoryFetcher {
	if maxPages <= 0 {
		maxPages = DefaultHistoryPages
	}

	return &HistoryFetcher{
		client:   client,
		maxPages: maxPages,
		logger:   logger.Named("history_fetcher"),
	}
}

// GetUsernameHistory returns previous usernames, oldest first.
// Pages are read newest first so truncation at the page limit drops the oldest names.
// roapi has no username history call, so this is a raw request.
func (h *HistoryFetcher) GetUsernameHistory(ctx context.Context, userID uint64) ([]string, error) {
	const name = "username_history"

	var (
		names     = make([]string, 0)
		cursor    string
		truncated = true
	)

	for page := 0; page < h.maxPages; page++ {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(historyPageSize))
		query.Set("sortOrder", "Desc")
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var resp historyResponse
		err := h.client.Do(ctx, upstream.Endpoint{
			Name:  name,
			URL:   upstream.UsersAPI + "/v1/users/" + strconv.FormatUint(userID, 10) + "/username-history",
			Query: query,
		}, &resp)
		if err != nil {
			return nil, err
		}

		if resp.Data == nil {
			return nil, &upstream.Failure{Reason: upstream.ReasonDecode, Endpoint: name, Err: ErrUnexpectedShape}
		}

		for _, entry := range *resp.Data {
			if entry.Name != "" {
				names = append(names, entry.Name)
			}
		}

		if resp.NextPageCursor == nil || *resp.NextPageCursor == "" {
			truncated = false
			break
		}
		cursor = *resp.NextPageCursor
	}

	if truncated {
		h.logger.Debug("Username history truncated at page limit",
			zap.Uint64("userID", userID),
			zap.Int("pages", h.maxPages),
			zap.Int("names", len(names)))
	}

	slices.Reverse(names)
	return names, nil
}
