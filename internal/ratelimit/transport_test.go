package ratelimit

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_Order(t *testing.T) {
	var calls []string
	base := func(req *http.Request) (*http.Response, error) {
		calls = append(calls, "base")
		return cachedHTTPResponse("{}"), nil
	}
	stage := func(name string) Middleware {
		return func(next SendFunc) SendFunc {
			return func(req *http.Request) (*http.Response, error) {
				calls = append(calls, name)
				return next(req)
			}
		}
	}

	send := Chain(base, stage("outer"), stage("inner"))
	_, err := send(httptest.NewRequest(http.MethodGet, "https://example.com/", nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"outer", "inner", "base"}, calls)
}

func TestLimitStage_TransportErrorBypassesUpdate(t *testing.T) {
	limiter, slept := testLimiter(t)
	sendErr := errors.New("connection reset")
	base := func(req *http.Request) (*http.Response, error) {
		return nil, sendErr
	}

	send := Chain(base, LimitStage(limiter))
	_, err := send(httptest.NewRequest(http.MethodGet, "https://example.com/", nil))
	assert.ErrorIs(t, err, sendErr)

	// The failed send must not have fed anything into the limiter
	limiter.Delay()
	assert.Empty(t, *slept)
}

func TestLimitStage_UpdatesFromResponseHeaders(t *testing.T) {
	limiter, slept := testLimiter(t)
	base := func(req *http.Request) (*http.Response, error) {
		resp := cachedHTTPResponse("{}")
		resp.Header.Set(HeaderUsed, "600")
		resp.Header.Set(HeaderRemaining, "0")
		resp.Header.Set(HeaderReset, "30")
		return resp, nil
	}

	send := Chain(base, LimitStage(limiter))
	_, err := send(httptest.NewRequest(http.MethodGet, "https://example.com/", nil))
	require.NoError(t, err)

	limiter.Delay()
	require.Len(t, *slept, 1)
	assert.InDelta(t, 30, (*slept)[0].Seconds(), 1)
}

func TestCacheStage_ServesSecondGETFromCache(t *testing.T) {
	hits := 0
	base := func(req *http.Request) (*http.Response, error) {
		hits++
		return cachedHTTPResponse(`{"page":1}`), nil
	}

	send := Chain(base, CacheStage(NewCache(DefaultCacheTTL)))

	for i := 0; i < 2; i++ {
		resp, err := send(httptest.NewRequest(http.MethodGet, "https://oauth.reddit.com/r/golang/hot", nil))
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"page":1}`, string(body))
	}

	assert.Equal(t, 1, hits)
}

func TestCacheStage_NonGETForcesBypass(t *testing.T) {
	hits := 0
	base := func(req *http.Request) (*http.Response, error) {
		hits++
		return cachedHTTPResponse("{}"), nil
	}

	send := Chain(base, CacheStage(NewCache(DefaultCacheTTL)))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "https://oauth.reddit.com/api/vote", strings.NewReader("dir=1"))
		_, err := send(req)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, hits)
}

func TestCacheStage_CallerBypassHint(t *testing.T) {
	hits := 0
	base := func(req *http.Request) (*http.Response, error) {
		hits++
		return cachedHTTPResponse("{}"), nil
	}

	send := Chain(base, CacheStage(NewCache(DefaultCacheTTL)))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "https://oauth.reddit.com/api/v1/me", nil)
		req = req.WithContext(WithCacheBypass(req.Context()))
		_, err := send(req)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, hits)
}

func TestCacheStage_VolatileHeadersDoNotSplitCache(t *testing.T) {
	hits := 0
	base := func(req *http.Request) (*http.Response, error) {
		hits++
		return cachedHTTPResponse("{}"), nil
	}

	send := Chain(base, CacheStage(NewCache(DefaultCacheTTL)))

	// Same logical request with rotating session cookies
	for _, cookie := range []string{"session=first", "session=second"} {
		req := httptest.NewRequest(http.MethodGet, "https://oauth.reddit.com/r/golang/hot", nil)
		req.Header.Set("Cookie", cookie)
		_, err := send(req)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, hits)
}

func TestTransport_EndToEnd(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set(HeaderUsed, "1")
		w.Header().Set(HeaderRemaining, "599")
		w.Header().Set(HeaderReset, "600")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	limiter := NewLimiter(nil)
	limiter.sleep = func(time.Duration) { t.Fatal("no delay expected with remaining quota") }

	client := &http.Client{
		Transport: NewTransport(nil, limiter, NewCache(DefaultCacheTTL)),
	}

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL + "/api/v1/me")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, `{"ok":true}`, string(body))
	}

	// Second request served from cache
	assert.Equal(t, 1, hits)
}
