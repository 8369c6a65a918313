package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Aareon/rtv/internal/logging"
	"github.com/Aareon/rtv/internal/ratelimit"
)

// Reddit API endpoints.
const (
	DefaultAuthURL  = "https://www.reddit.com/api/v1/authorize"
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	DefaultAPIURL   = "https://oauth.reddit.com"
)

// DefaultAuthRejectedStatus is the status reddit returns when it no longer
// accepts a refresh token. Observed as a generic 400 rather than a
// structured invalid_grant signal; verify against the live API before
// trusting it for new providers.
const DefaultAuthRejectedStatus = http.StatusBadRequest

// compactSuffix switches the authorize page to reddit's mobile rendering,
// which works better in terminal browsers.
const compactSuffix = ".compact"

// ClientConfig configures a reddit session client.
type ClientConfig struct {
	// UserAgent is sent on every request; reddit rejects clients without a
	// descriptive one.
	UserAgent string

	// AuthRejectedStatus overrides the status code treated as a rejected
	// refresh token. Zero means DefaultAuthRejectedStatus.
	AuthRejectedStatus int

	// AuthURL, TokenURL, and APIURL override the reddit endpoints. Empty
	// values use the defaults; tests point these at local servers.
	AuthURL  string
	TokenURL string
	APIURL   string

	// Transport is the innermost RoundTripper for the request pipeline. Nil
	// means http.DefaultTransport.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// Client is an authenticated reddit session. All outgoing calls, including
// the token exchange, run through the rate-limited request pipeline.
type Client struct {
	conf   *oauth2.Config
	logger *slog.Logger

	httpClient *http.Client
	cache      *ratelimit.Cache

	apiURL             string
	authURL            string
	userAgent          string
	authRejectedStatus int
	compactAuthorize   bool

	token *oauth2.Token
	user  string
}

// NewClient creates a reddit session client. App credentials are supplied
// separately via SetAppCredentials before any authorization call.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	rejected := cfg.AuthRejectedStatus
	if rejected == 0 {
		rejected = DefaultAuthRejectedStatus
	}

	limiter := ratelimit.NewLimiter(logger)
	cache := ratelimit.NewCache(ratelimit.DefaultCacheTTL)
	base := &userAgentTransport{base: cfg.Transport, agent: cfg.UserAgent}

	return &Client{
		conf: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
				// reddit requires client credentials via HTTP basic auth
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		logger:             logger,
		httpClient:         &http.Client{Transport: ratelimit.NewTransport(base, limiter, cache)},
		cache:              cache,
		apiURL:             apiURL,
		authURL:            authURL,
		userAgent:          cfg.UserAgent,
		authRejectedStatus: rejected,
	}
}

// SetAppCredentials installs the registered OAuth application's identity.
func (c *Client) SetAppCredentials(clientID, clientSecret, redirectURI string) {
	c.conf.ClientID = clientID
	c.conf.ClientSecret = clientSecret
	c.conf.RedirectURL = redirectURI
}

// SetCompactAuthorize switches authorize URLs to the mobile page.
func (c *Client) SetCompactAuthorize(on bool) {
	c.compactAuthorize = on
}

// AuthorizeURL builds the provider's consent page URL for the given CSRF
// state and comma-separated scope. A refreshable grant asks for a permanent
// token so future sessions can refresh silently.
func (c *Client) AuthorizeURL(state, scope string, refreshable bool) string {
	conf := *c.conf
	conf.Scopes = splitScope(scope)
	if c.compactAuthorize {
		conf.Endpoint.AuthURL = c.authURL + compactSuffix
	}

	opts := []oauth2.AuthCodeOption{}
	if refreshable {
		opts = append(opts, oauth2.SetAuthURLParam("duration", "permanent"))
	}
	return conf.AuthCodeURL(state, opts...)
}

// AccessInformation exchanges an authorization code for access credentials
// and resolves the authenticated user's identity.
func (c *Client) AccessInformation(ctx context.Context, code string) (*AccessInfo, error) {
	tok, err := c.conf.Exchange(c.httpContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	return c.adoptToken(ctx, tok)
}

// RefreshAccessInformation obtains fresh access credentials from a stored
// refresh token without user interaction.
func (c *Client) RefreshAccessInformation(ctx context.Context, refreshToken string) (*AccessInfo, error) {
	src := c.conf.TokenSource(c.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" {
		// reddit does not rotate refresh tokens; keep the one we had
		tok.RefreshToken = refreshToken
	}
	return c.adoptToken(ctx, tok)
}

func (c *Client) adoptToken(ctx context.Context, tok *oauth2.Token) (*AccessInfo, error) {
	c.token = tok
	c.cache.Evict()

	me, err := c.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}
	c.user = me.Name

	c.logger.Debug("access information updated",
		logging.User(me.Name),
		slog.String("token", logging.SanitizeToken(tok.AccessToken)),
		slog.Time("expiry", tok.Expiry))

	return &AccessInfo{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}

// IsAuthRejected reports whether err is the provider telling us the refresh
// token is no longer valid, as opposed to a transient failure.
func (c *Client) IsAuthRejected(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) || retrieveErr.Response == nil {
		return false
	}
	return retrieveErr.Response.StatusCode == c.authRejectedStatus
}

// ClearAuthentication drops all in-memory authentication state.
func (c *Client) ClearAuthentication() {
	c.token = nil
	c.user = ""
	c.cache.Evict()
}

// IsAuthenticated reports whether the client currently holds a usable token.
func (c *Client) IsAuthenticated() bool {
	return c.token != nil && c.token.Valid()
}

// UserName returns the authenticated user's name, or empty when logged out.
func (c *Client) UserName() string {
	return c.user
}

// Me fetches the authenticated user's account. The identity answer changes
// with the session, so the page cache is bypassed.
func (c *Client) Me(ctx context.Context) (*Account, error) {
	var account Account
	ctx = ratelimit.WithCacheBypass(ctx)
	if err := c.get(ctx, "/api/v1/me", &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	if c.token == nil {
		return errors.New("not authenticated")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
	if err != nil {
		return err
	}
	c.token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Status: resp.StatusCode, Path: path, Body: string(body)}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// httpContext routes the oauth2 package's own HTTP calls through the
// rate-limited pipeline.
func (c *Client) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func splitScope(scope string) []string {
	var scopes []string
	for _, s := range strings.Split(scope, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

// StatusError is a non-2xx API answer.
type StatusError struct {
	Status int
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reddit api: %s returned %d", e.Path, e.Status)
}

// userAgentTransport stamps the required User-Agent onto every request
// before it reaches the wire.
type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.agent == "" {
		return base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.agent)
	return base.RoundTrip(clone)
}

// Expiry reports when the current access token lapses; zero when logged out.
func (c *Client) Expiry() time.Time {
	if c.token == nil {
		return time.Time{}
	}
	return c.token.Expiry
}
