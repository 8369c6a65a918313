package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, cfg ClientConfig) *Client {
	t.Helper()
	if cfg.UserAgent == "" {
		cfg.UserAgent = "rtv test suite"
	}
	c := NewClient(cfg)
	c.SetAppCredentials("client-id", "client-secret", "http://127.0.0.1:65000/")
	return c
}

// fakeProvider serves the token endpoint and the identity endpoint.
func fakeProvider(t *testing.T, tokenStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		if tokenStatus != http.StatusOK {
			http.Error(w, `{"error":"invalid_grant"}`, tokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"access_token": "access-123",
			"refresh_token": "refresh-456",
			"token_type": "bearer",
			"expires_in": 3600
		}`))
	})
	mux.HandleFunc("/api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"t2_abc","name":"spez","link_karma":100,"comment_karma":200}`))
	})
	return httptest.NewServer(mux)
}

func providerConfig(srv *httptest.Server) ClientConfig {
	return ClientConfig{
		AuthURL:  srv.URL + "/api/v1/authorize",
		TokenURL: srv.URL + "/api/v1/access_token",
		APIURL:   srv.URL,
	}
}

func TestAuthorizeURL(t *testing.T) {
	c := newTestClient(t, ClientConfig{})

	raw := c.AuthorizeURL("state-abc", "identity,read", true)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "state-abc", q.Get("state"))
	assert.Equal(t, "identity read", q.Get("scope"))
	assert.Equal(t, "permanent", q.Get("duration"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestAuthorizeURL_NotRefreshable(t *testing.T) {
	c := newTestClient(t, ClientConfig{})

	u, err := url.Parse(c.AuthorizeURL("state-abc", "identity", false))
	require.NoError(t, err)

	assert.Empty(t, u.Query().Get("duration"))
}

func TestAuthorizeURL_Compact(t *testing.T) {
	c := newTestClient(t, ClientConfig{})
	c.SetCompactAuthorize(true)

	u, err := url.Parse(c.AuthorizeURL("state-abc", "identity", true))
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/authorize.compact", u.Path)
}

func TestSplitScope(t *testing.T) {
	tests := []struct {
		name  string
		scope string
		want  []string
	}{
		{name: "single", scope: "identity", want: []string{"identity"}},
		{name: "multiple", scope: "identity,read,vote", want: []string{"identity", "read", "vote"}},
		{name: "spaces and empties", scope: " identity, ,read ", want: []string{"identity", "read"}},
		{name: "empty", scope: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitScope(tt.scope))
		})
	}
}

func TestAccessInformation(t *testing.T) {
	srv := fakeProvider(t, http.StatusOK)
	defer srv.Close()

	c := newTestClient(t, providerConfig(srv))

	info, err := c.AccessInformation(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "access-123", info.AccessToken)
	assert.Equal(t, "refresh-456", info.RefreshToken)
	assert.Equal(t, "spez", c.UserName())
	assert.True(t, c.IsAuthenticated())
}

func TestRefreshAccessInformation(t *testing.T) {
	srv := fakeProvider(t, http.StatusOK)
	defer srv.Close()

	c := newTestClient(t, providerConfig(srv))

	info, err := c.RefreshAccessInformation(context.Background(), "stored-refresh")
	require.NoError(t, err)

	assert.Equal(t, "access-123", info.AccessToken)
	// The provider rotated the refresh token in its answer
	assert.Equal(t, "refresh-456", info.RefreshToken)
	assert.Equal(t, "spez", c.UserName())
}

func TestRefreshAccessInformation_Rejected(t *testing.T) {
	srv := fakeProvider(t, http.StatusBadRequest)
	defer srv.Close()

	c := newTestClient(t, providerConfig(srv))

	_, err := c.RefreshAccessInformation(context.Background(), "stale-refresh")
	require.Error(t, err)
	assert.True(t, c.IsAuthRejected(err))
}

func TestRefreshAccessInformation_ServerError(t *testing.T) {
	srv := fakeProvider(t, http.StatusInternalServerError)
	defer srv.Close()

	c := newTestClient(t, providerConfig(srv))

	_, err := c.RefreshAccessInformation(context.Background(), "stored-refresh")
	require.Error(t, err)
	// A 5xx is transient, not a rejected token
	assert.False(t, c.IsAuthRejected(err))
}

func TestIsAuthRejected(t *testing.T) {
	c := newTestClient(t, ClientConfig{})

	rejected := &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadRequest}}
	transient := &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}}

	assert.True(t, c.IsAuthRejected(rejected))
	assert.False(t, c.IsAuthRejected(transient))
	assert.False(t, c.IsAuthRejected(errors.New("network down")))
	assert.False(t, c.IsAuthRejected(nil))
}

func TestIsAuthRejected_ConfigurableStatus(t *testing.T) {
	c := newTestClient(t, ClientConfig{AuthRejectedStatus: http.StatusUnauthorized})

	assert.True(t, c.IsAuthRejected(&oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusUnauthorized}}))
	assert.False(t, c.IsAuthRejected(&oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadRequest}}))
}

func TestClearAuthentication(t *testing.T) {
	srv := fakeProvider(t, http.StatusOK)
	defer srv.Close()

	c := newTestClient(t, providerConfig(srv))
	_, err := c.AccessInformation(context.Background(), "auth-code")
	require.NoError(t, err)

	c.ClearAuthentication()

	assert.False(t, c.IsAuthenticated())
	assert.Empty(t, c.UserName())
	_, err = c.Me(context.Background())
	assert.Error(t, err)
}

func TestUserAgentHeader(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"spez"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, ClientConfig{APIURL: srv.URL, UserAgent: "rtv/1.0 (terminal client)"})
	c.token = &oauth2.Token{AccessToken: "access-123"}

	_, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rtv/1.0 (terminal client)", agent)
}

func TestMe_NotAuthenticated(t *testing.T) {
	c := newTestClient(t, ClientConfig{})

	_, err := c.Me(context.Background())
	assert.Error(t, err)
}
