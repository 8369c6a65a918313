package ratelimit

import (
	"context"
	"net/http"
)

// SendFunc performs a single HTTP exchange.
type SendFunc func(*http.Request) (*http.Response, error)

// Middleware wraps a SendFunc with one pipeline stage.
type Middleware func(SendFunc) SendFunc

// Chain applies the stages around base, first stage outermost:
// Chain(base, a, b) sends through a, then b, then base.
func Chain(base SendFunc, stages ...Middleware) SendFunc {
	send := base
	for i := len(stages) - 1; i >= 0; i-- {
		send = stages[i](send)
	}
	return send
}

type ctxKey int

const cacheBypassKey ctxKey = iota

// WithCacheBypass marks the request context so the cache stage skips both
// lookup and store for this call.
func WithCacheBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheBypassKey, true)
}

func cacheBypassed(ctx context.Context) bool {
	bypass, _ := ctx.Value(cacheBypassKey).(bool)
	return bypass
}

// CacheStage serves idempotent GETs from the page cache. The key is
// normalized before use, and any method that is not a plain GET forces a
// bypass regardless of the caller's caching hint.
func CacheStage(cache *Cache) Middleware {
	return func(next SendFunc) SendFunc {
		return func(req *http.Request) (*http.Response, error) {
			bypass := cacheBypassed(req.Context())
			if req.Method != http.MethodGet {
				bypass = true
			}
			if bypass {
				return next(req)
			}

			key := KeyFor(req).Normalize()
			if resp := cache.Get(key); resp != nil {
				return resp, nil
			}

			resp, err := next(req)
			if err != nil {
				return nil, err
			}
			return cache.Put(key, resp)
		}
	}
}

// LimitStage delays the send until the quota window allows it and feeds the
// response headers back into the limiter. A transport error propagates
// unchanged and leaves the limiter state untouched.
func LimitStage(limiter *Limiter) Middleware {
	return func(next SendFunc) SendFunc {
		return func(req *http.Request) (*http.Response, error) {
			limiter.Delay()
			resp, err := next(req)
			if err != nil {
				return nil, err
			}
			limiter.Update(resp.Header)
			return resp, nil
		}
	}
}

// Transport is an http.RoundTripper running every request through the full
// pipeline: cache-key fixing and the page cache outside the rate limiter,
// the base transport innermost.
type Transport struct {
	send SendFunc
}

// NewTransport assembles the pipeline around base. A nil base uses
// http.DefaultTransport.
func NewTransport(base http.RoundTripper, limiter *Limiter, cache *Cache) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		send: Chain(base.RoundTrip, CacheStage(cache), LimitStage(limiter)),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.send(req)
}
