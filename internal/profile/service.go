package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/roprofile/internal/cache"
	"github.com/robalyx/roprofile/internal/queue"
	"github.com/robalyx/roprofile/internal/roblox/fetcher"
	"github.com/robalyx/roprofile/internal/types"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is used when Options.CacheTTL is not positive.
const DefaultCacheTTL = 5 * time.Minute

var tracer = otel.Tracer("github.com/robalyx/roprofile/internal/profile")

// Resolver provides the mandatory identity and detail calls.
type Resolver interface {
	ResolveUsername(ctx context.Context, username string) (*fetcher.ResolvedUser, error)
	GetUserDetails(ctx context.Context, userID uint64) (*fetcher.UserDetails, error)
}

// Roblox is the full set of upstream calls the service needs.
type Roblox interface {
	Resolver
	Enricher
}

// Options configures a Service.
type Options struct {
	CacheTTL          time.Duration
	PartialTTL        time.Duration // TTL for profiles with failed enrichment calls; 0 uses CacheTTL
	AvatarPlaceholder string
	Now               func() time.Time
}

// Stats combines cache and queue activity.
type Stats struct {
	Cache cache.Stats `json:"cache"`
	Queue queue.Stats `json:"queue"`
}

// Service answers profile lookups, serving from cache when possible.
type Service struct {
	roblox     Roblox
	aggregator *Aggregator
	cache      cache.Cache
	queue      *queue.Queue[*types.Profile]
	group      singleflight.Group
	opts       Options
	logger     *zap.Logger
}

// NewService creates a Service. The queue must be started by the caller.
func NewService(
	roblox Roblox, c cache.Cache, q *queue.Queue[*types.Profile], opts Options, logger *zap.Logger,
) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.PartialTTL <= 0 {
		opts.PartialTTL = opts.CacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		roblox:     roblox,
		aggregator: NewAggregator(roblox, opts.AvatarPlaceholder, logger),
		cache:      c,
		queue:      q,
		opts:       opts,
		logger:     logger.Named("profile_service"),
	}
}

// GetProfile returns the aggregated profile for a username and whether it was served from cache.
// Concurrent requests for the same username share one aggregation.
func (s *Service) GetProfile(ctx context.Context, username string) (*types.Profile, bool, error) {
	query, err := types.NewQuery(username)
	if err != nil {
		return nil, false, err
	}

	if profile, ok := s.cache.Get(ctx, query.Key()); ok {
		s.logger.Debug("Serving profile from cache", zap.String("key", query.Key()))
		return profile, true, nil
	}

	ch := s.group.DoChan(query.Key(), func() (any, error) {
		future := s.queue.Submit(func(ctx context.Context) (*types.Profile, error) {
			return s.aggregate(ctx, query)
		})
		// Jobs always settle, so the shared wait is not tied to any single caller
		return future.Wait(context.Background())
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, classifyError(res.Err)
		}
		return res.Val.(*types.Profile), false, nil
	case <-ctx.Done():
		return nil, false, types.NewError(types.KindUpstreamUnavailable, "request cancelled before completion", ctx.Err())
	}
}

// aggregate runs resolution, details and enrichment, then normalizes and caches the result.
func (s *Service) aggregate(ctx context.Context, query types.ProfileQuery) (*types.Profile, error) {
	ctx, span := tracer.Start(ctx, "profile.Aggregate",
		trace.WithAttributes(attribute.String("roblox.username", query.Username())))
	defer span.End()

	identity, err := s.resolve(ctx, query.Username())
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("roblox.user_id", int64(identity.ID)))

	// Details run alongside enrichment; their failure abandons the enrichment calls
	enrichCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		details    *fetcher.UserDetails
		detailsErr error
		enrichment Enrichment
		p          = pool.New()
	)
	p.Go(func() {
		details, detailsErr = s.roblox.GetUserDetails(ctx, identity.ID)
		if detailsErr != nil {
			cancel()
		}
	})
	p.Go(func() {
		enrichment = s.aggregator.Enrich(enrichCtx, identity.ID)
	})
	p.Wait()

	if detailsErr != nil {
		s.logger.Warn("Failed to fetch user details",
			zap.Uint64("userID", identity.ID),
			zap.Error(detailsErr))
		recordError(span, detailsErr)
		return nil, detailsErr
	}

	profile, err := s.normalize(Input{Identity: identity, Details: details, Enrichment: enrichment})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	ttl := s.opts.CacheTTL
	if len(enrichment.Failed) > 0 {
		ttl = s.opts.PartialTTL
	}
	if err := s.cache.Set(ctx, query.Key(), profile, ttl); err != nil {
		s.logger.Warn("Failed to cache profile", zap.String("key", query.Key()), zap.Error(err))
	}

	s.logger.Debug("Aggregated profile",
		zap.String("username", profile.Username),
		zap.Uint64("userID", profile.ID),
		zap.Strings("failed", enrichment.Failed))

	return profile, nil
}

func (s *Service) resolve(ctx context.Context, username string) (*fetcher.ResolvedUser, error) {
	ctx, span := tracer.Start(ctx, "profile.Resolve")
	defer span.End()

	identity, err := s.roblox.ResolveUsername(ctx, username)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return identity, nil
}

// normalize guards against unexpected panics while shaping the record.
func (s *Service) normalize(in Input) (profile *types.Profile, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Normalization panicked", zap.Any("panic", r))
			profile = nil
			err = types.NewError(types.KindInternal, "failed to build profile", fmt.Errorf("panic: %v", r))
		}
	}()

	return Normalize(in, s.opts.Now()), nil
}

// Stats reports cache and queue activity.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	cacheStats, err := s.cache.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Cache: cacheStats, Queue: s.queue.Stats()}, nil
}

// Keys lists cached keys.
func (s *Service) Keys(ctx context.Context) ([]string, error) {
	return s.cache.Keys(ctx)
}

// Clear removes every cached profile.
func (s *Service) Clear(ctx context.Context) (int, error) {
	return s.cache.Clear(ctx)
}

// Invalidate removes the cached profile for a username.
func (s *Service) Invalidate(ctx context.Context, username string) (bool, error) {
	query, err := types.NewQuery(username)
	if err != nil {
		return false, err
	}
	return s.cache.Delete(ctx, query.Key())
}

// classifyError makes sure every error leaving the service has a kind.
func classifyError(err error) error {
	var e *types.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, queue.ErrStopped) {
		return types.NewError(types.KindUpstreamUnavailable, "service is shutting down", err)
	}
	return types.NewError(types.KindInternal, "unexpected error", err)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
