package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/Aareon/rtv/internal/logging"
)

// Quota headers reported by the reddit API. Lookups are case-insensitive.
const (
	HeaderUsed      = "X-Ratelimit-Used"
	HeaderRemaining = "X-Ratelimit-Remaining"
	HeaderReset     = "X-Ratelimit-Reset"
)

const meterName = "github.com/Aareon/rtv/internal/ratelimit"

// Limiter delays outgoing requests until the provider's quota window allows
// them again. It keeps no history beyond the single next-allowed instant.
//
// A Limiter is meant for one request pipeline. Concurrent callers racing
// Delay against Update get no protection here; the client issues requests
// serially.
type Limiter struct {
	logger *slog.Logger

	// next is the earliest instant the next request may be sent. The zero
	// value means no delay is required.
	next time.Time

	// now and sleep are swapped out by tests.
	now   func() time.Time
	sleep func(time.Duration)

	delaySeconds metric.Float64Histogram
	throttled    metric.Int64Counter
}

// NewLimiter creates a rate limiter. If logger is nil, slog.Default is used.
func NewLimiter(logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}

	meter := otel.Meter(meterName)
	delaySeconds, err := meter.Float64Histogram("rtv.ratelimit.delay.seconds",
		metric.WithDescription("Time spent waiting for the quota window to reset"),
		metric.WithUnit("s"))
	if err != nil {
		logger.Warn("failed to create delay histogram", logging.Err(err))
		delaySeconds = noop.Float64Histogram{}
	}
	throttled, err := meter.Int64Counter("rtv.ratelimit.throttled.requests",
		metric.WithDescription("Requests that had to wait before being sent"))
	if err != nil {
		logger.Warn("failed to create throttled counter", logging.Err(err))
		throttled = noop.Int64Counter{}
	}

	return &Limiter{
		logger:       logger,
		now:          time.Now,
		sleep:        time.Sleep,
		delaySeconds: delaySeconds,
		throttled:    throttled,
	}
}

// Delay blocks the caller until the next request is allowed. It returns
// immediately when no next-allowed instant is set or the instant has passed.
func (l *Limiter) Delay() {
	if l.next.IsZero() {
		return
	}

	remaining := l.next.Sub(l.now())
	if remaining <= 0 {
		return
	}

	l.logger.Debug("rate limited, pausing before next request",
		slog.Duration("wait", remaining))
	l.throttled.Add(context.Background(), 1)
	l.delaySeconds.Record(context.Background(), remaining.Seconds())
	l.sleep(remaining)
}

// Update recalibrates the limiter from a response's quota headers.
//
// A response without X-Ratelimit-Remaining leaves the state untouched: error
// responses and unmetered read-only credentials simply don't report quota.
// When the header is present, zero remaining quota pushes the next allowed
// instant to the end of the window; any remaining quota clears it.
func (l *Limiter) Update(headers http.Header) {
	if _, ok := headers[http.CanonicalHeaderKey(HeaderRemaining)]; !ok {
		return
	}

	used, err := strconv.ParseFloat(strings.TrimSpace(headers.Get(HeaderUsed)), 64)
	if err != nil {
		l.logger.Warn("unparseable quota header", slog.String("header", HeaderUsed), logging.Err(err))
		return
	}
	remaining, err := strconv.ParseFloat(strings.TrimSpace(headers.Get(HeaderRemaining)), 64)
	if err != nil {
		l.logger.Warn("unparseable quota header", slog.String("header", HeaderRemaining), logging.Err(err))
		return
	}
	secondsToReset, err := strconv.Atoi(strings.TrimSpace(headers.Get(HeaderReset)))
	if err != nil {
		l.logger.Warn("unparseable quota header", slog.String("header", HeaderReset), logging.Err(err))
		return
	}

	l.logger.Debug("rate limit",
		slog.Float64("used", used),
		slog.Float64("remaining", remaining),
		slog.Int("reset", secondsToReset))

	if remaining <= 0 {
		l.next = l.now().Add(time.Duration(secondsToReset) * time.Second)
	} else {
		l.next = time.Time{}
	}
}
