package ratelimit

import (
	"bytes"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL matches the provider's guidance that listing pages stay
// valid for roughly half a minute.
const DefaultCacheTTL = 30 * time.Second

// volatileExtras are request attributes that rotate on every request without
// distinguishing logically distinct calls. Session cookies change per
// request, and the modhash identifies the session rather than the resource.
var volatileExtras = map[string]bool{
	"Cookie":    true,
	"X-Modhash": true,
}

// Key identifies a cacheable request: the full URL plus the header material
// that differentiates logical responses.
type Key struct {
	URL    string
	Extras map[string]string
}

// KeyFor derives a cache key from a request. The extras intentionally
// include everything that might vary; Normalize strips the components that
// shouldn't participate in the key.
func KeyFor(req *http.Request) Key {
	extras := make(map[string]string)
	for _, name := range []string{"Accept", "Cookie", "X-Modhash"} {
		if v := req.Header.Get(name); v != "" {
			extras[name] = v
		}
	}
	return Key{URL: req.URL.String(), Extras: extras}
}

// Normalize returns a copy of the key without the volatile,
// session-identifying extras. Normalizing an already-normalized key is a
// no-op.
func (k Key) Normalize() Key {
	extras := make(map[string]string, len(k.Extras))
	for name, value := range k.Extras {
		if volatileExtras[name] {
			continue
		}
		extras[name] = value
	}
	return Key{URL: k.URL, Extras: extras}
}

// String renders the key in a stable order for use as a map key.
func (k Key) String() string {
	names := make([]string, 0, len(k.Extras))
	for name := range k.Extras {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(k.URL)
	for _, name := range names {
		b.WriteByte('\n')
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(k.Extras[name])
	}
	return b.String()
}

// cachedResponse holds enough of a response to replay it later.
type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// Cache is a small in-process page cache for idempotent GETs. Entries expire
// after the configured TTL; there is no size bound because an interactive
// session touches a handful of listings at a time.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	resp    cachedResponse
	expires time.Time
}

// NewCache creates a page cache with the given TTL. A non-positive TTL falls
// back to DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get replays a cached response for the key, or returns nil when the entry
// is absent or expired.
func (c *Cache) Get(key Key) *http.Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key.String()]
	if !ok {
		return nil
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key.String())
		return nil
	}
	return replay(entry.resp)
}

// Put stores the response under the key and returns a replacement response
// whose body is still readable by the caller.
func (c *Cache) Put(key Key, resp *http.Response) (*http.Response, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	stored := cachedResponse{
		status: resp.StatusCode,
		header: resp.Header.Clone(),
		body:   body,
	}

	c.mu.Lock()
	c.entries[key.String()] = cacheEntry{resp: stored, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// Evict drops all entries. Called when authentication state changes, since
// cached pages may belong to the previous identity.
func (c *Cache) Evict() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func replay(stored cachedResponse) *http.Response {
	return &http.Response{
		StatusCode:    stored.status,
		Status:        http.StatusText(stored.status),
		Header:        stored.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(stored.body)),
		ContentLength: int64(len(stored.body)),
	}
}
