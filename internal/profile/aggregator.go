// Package profile assembles aggregated profiles from the Roblox APIs.
package profile

import (
	"context"
	"fmt"

	"github.com/robalyx/roprofile/internal/types"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultAvatarPlaceholder is used when the headshot cannot be fetched.
const DefaultAvatarPlaceholder = "https://tr.rbxcdn.com/placeholder/420/420/AvatarHeadshot/Png"

// Enricher provides the best-effort enrichment calls.
type Enricher interface {
	GetFollowerCount(ctx context.Context, userID uint64) (uint64, error)
	GetFollowingCount(ctx context.Context, userID uint64) (uint64, error)
	GetFriendCount(ctx context.Context, userID uint64) (uint64, error)
	GetGroupCount(ctx context.Context, userID uint64) (uint64, error)
	GetAvatarURL(ctx context.Context, userID uint64) (string, error)
	GetUsernameHistory(ctx context.Context, userID uint64) ([]string, error)
	GetPresenceCode(ctx context.Context, userID uint64) (*int, error)
}

// Result is the settled outcome of one enrichment call.
type Result[T any] struct {
	Value T
	Err   error
}

// Enrichment holds every enrichment field after defaults have been applied.
type Enrichment struct {
	Followers         uint64
	Followings        uint64
	Friends           uint64
	Groups            uint64
	AvatarURL         string
	PreviousUsernames []string
	Presence          types.PresenceStatus
	Failed            []string // Names of the calls that fell back to defaults
}

// Aggregator runs the enrichment calls for a resolved user.
type Aggregator struct {
	source      Enricher
	placeholder string
	logger      *zap.Logger
}

// NewAggregator creates an Aggregator. An empty placeholder selects DefaultAvatarPlaceholder.
func NewAggregator(source Enricher, placeholder string, logger *zap.Logger) *Aggregator {
	if placeholder == "" {
		placeholder = DefaultAvatarPlaceholder
	}

	return &Aggregator{
		source:      source,
		placeholder: placeholder,
		logger:      logger.Named("aggregator"),
	}
}

// Enrich dispatches all enrichment calls at once and waits for every one to
// settle. A failed call never affects the others; its field takes a default.
func (a *Aggregator) Enrich(ctx context.Context, userID uint64) Enrichment {
	ctx, span := tracer.Start(ctx, "profile.Enrich")
	defer span.End()

	var (
		followers  Result[uint64]
		followings Result[uint64]
		friends    Result[uint64]
		groups     Result[uint64]
		avatar     Result[string]
		history    Result[[]string]
		presence   Result[*int]
		p          = pool.New()
	)

	p.Go(func() { followers = settle(ctx, userID, a.source.GetFollowerCount) })
	p.Go(func() { followings = settle(ctx, userID, a.source.GetFollowingCount) })
	p.Go(func() { friends = settle(ctx, userID, a.source.GetFriendCount) })
	p.Go(func() { groups = settle(ctx, userID, a.source.GetGroupCount) })
	p.Go(func() { avatar = settle(ctx, userID, a.source.GetAvatarURL) })
	p.Go(func() { history = settle(ctx, userID, a.source.GetUsernameHistory) })
	p.Go(func() { presence = settle(ctx, userID, a.source.GetPresenceCode) })
	p.Wait()

	var out Enrichment
	fallback := func(field string, err error) {
		a.logger.Warn("Enrichment call failed, using default",
			zap.Uint64("userID", userID),
			zap.String("field", field),
			zap.Error(err))
		out.Failed = append(out.Failed, field)
	}

	out.Followers = valueOr(followers, 0, "followers", fallback)
	out.Followings = valueOr(followings, 0, "followings", fallback)
	out.Friends = valueOr(friends, 0, "friends", fallback)
	out.Groups = valueOr(groups, 0, "groups", fallback)
	out.AvatarURL = valueOr(avatar, a.placeholder, "avatar", fallback)
	out.PreviousUsernames = valueOr(history, []string{}, "usernameHistory", fallback)
	if out.PreviousUsernames == nil {
		out.PreviousUsernames = []string{}
	}
	out.Presence = types.PresenceFromCode(valueOr(presence, nil, "presence", fallback))

	span.SetAttributes(
		attribute.Int64("roblox.user_id", int64(userID)),
		attribute.StringSlice("enrichment.failed", out.Failed),
	)

	return out
}

// settle runs one call and captures its outcome, converting a panic into an error.
func settle[T any](
	ctx context.Context, userID uint64, call func(context.Context, uint64) (T, error),
) (result Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			result = Result[T]{Err: fmt.Errorf("enrichment call panicked: %v", r)}
		}
	}()

	value, err := call(ctx, userID)
	return Result[T]{Value: value, Err: err}
}

// valueOr returns the call's value, or def when the call failed.
func valueOr[T any](r Result[T], def T, field string, onFail func(string, error)) T {
	if r.Err != nil {
		onFail(field, r.Err)
		return def
	}
	return r.Value
}
