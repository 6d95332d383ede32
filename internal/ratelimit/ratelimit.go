// Package ratelimit throttles requests per client IP. Counters live in memory,
// or in Redis when several instances must share them.
package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/georgemunganga/sso-users/internal/common"
	"github.com/georgemunganga/sso-users/internal/httpx"
)

const keyPrefix = "sso:ratelimit"

// Middleware is a net/http middleware.
type Middleware func(http.Handler) http.Handler

// New builds a limiter for rate, formatted as "<limit>-<S|M|H|D>" (e.g. "20-M").
// A nil client keeps counters in process memory. Clients are keyed by
// r.RemoteAddr; forwarding headers are never read here.
func New(rate string, client *redis.Client, log *zap.Logger) (Middleware, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}

	var store limiter.Store
	if client != nil {
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix:   keyPrefix,
			MaxRetry: 3,
		})
		if err != nil {
			return nil, fmt.Errorf("redis limiter store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: keyPrefix})
	}

	mw := mhttp.NewMiddleware(
		limiter.New(store, r, limiter.WithTrustForwardHeader(false)),
		mhttp.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Respond(w, http.StatusTooManyRequests, httpx.ErrorBody{Error: "Too many requests"})
		}),
		mhttp.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			httpx.Error(w, r, log, common.Internal("Rate limiter unavailable", err))
		}),
	)
	return mw.Handler, nil
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
