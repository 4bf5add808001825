package geo

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/model"
)

// CachedClient resolves the Home and Anywhere sentinels and memoizes route
// minutes in a bounded cache whose entries expire after a TTL.
type CachedClient struct {
	next   RouteClient
	home   string
	cache  *expirable.LRU[string, int]
	logger *slog.Logger
}

func NewCachedClient(next RouteClient, homeAddress string, size int, ttl time.Duration, logger *slog.Logger) *CachedClient {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "route_cache")
	onEvict := func(key string, minutes int) {
		logger.Debug("route evicted", "key", key, "minutes", minutes)
	}
	return &CachedClient{
		next:   next,
		home:   strings.TrimSpace(homeAddress),
		cache:  expirable.NewLRU[string, int](size, onEvict, ttl),
		logger: logger,
	}
}

func (c *CachedClient) EstimateDuration(ctx context.Context, q RouteQuery) (RouteEstimate, error) {
	q.Origin = c.resolve(q.Origin)
	q.Destination = c.resolve(q.Destination)
	if isAnywhere(q.Origin) || isAnywhere(q.Destination) || strings.EqualFold(q.Origin, q.Destination) {
		return q.estimate(0), nil
	}
	if isHome(q.Origin) || isHome(q.Destination) {
		return RouteEstimate{}, apperr.New(apperr.KindConfiguration, "geo.EstimateDuration", "home address is not configured")
	}

	key := cacheKey(q)
	if minutes, ok := c.cache.Get(key); ok {
		return q.estimate(minutes), nil
	}
	est, err := c.next.EstimateDuration(ctx, q)
	if err != nil {
		return RouteEstimate{}, err
	}
	c.cache.Add(key, est.Minutes)
	return est, nil
}

// Len reports how many routes are cached.
func (c *CachedClient) Len() int {
	return c.cache.Len()
}

func (c *CachedClient) resolve(loc string) string {
	loc = strings.TrimSpace(loc)
	if strings.EqualFold(loc, model.LocationHome) && c.home != "" {
		return c.home
	}
	return loc
}

func isHome(loc string) bool {
	return strings.EqualFold(loc, model.LocationHome)
}

func isAnywhere(loc string) bool {
	return loc == "" || strings.EqualFold(loc, model.LocationAnywhere)
}

func cacheKey(q RouteQuery) string {
	mode := strings.ToLower(strings.TrimSpace(q.Mode))
	if mode == "" {
		mode = "driving"
	}
	return strings.ToLower(q.Origin) + "|" + strings.ToLower(q.Destination) + "|" + mode
}
