// Package ratelimit throttles outgoing reddit API requests according to the
// X-Ratelimit-* response headers.
//
// The limiter is tuned for interactive use: short, sporadic bursts of
// requests pass through with no delay, and only when the provider reports
// zero remaining quota does the next request wait for the window to reset.
// This differs from the evenly-spaced pacing a bot or crawler would want.
//
// The package also provides the request pipeline wrapped around every send:
// an ordered middleware chain of cache-key normalization, a short-lived page
// cache for idempotent GETs, and the rate limiter itself. Each stage is
// independently testable and transport failures pass through all stages
// unchanged.
package ratelimit
