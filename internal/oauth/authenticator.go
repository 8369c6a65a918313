package oauth

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Aareon/rtv/internal/config"
	"github.com/Aareon/rtv/internal/logging"
	"github.com/Aareon/rtv/internal/reddit"
	"github.com/Aareon/rtv/internal/terminal"
)

// transientStatusDelay is how long the headless "Redirecting" status stays
// on screen. Purely user feedback, not a timeout.
const transientStatusDelay = time.Second

// Client is the slice of the reddit session the authenticator drives.
type Client interface {
	SetAppCredentials(clientID, clientSecret, redirectURI string)
	SetCompactAuthorize(on bool)
	AuthorizeURL(state, scope string, refreshable bool) string
	AccessInformation(ctx context.Context, code string) (*reddit.AccessInfo, error)
	RefreshAccessInformation(ctx context.Context, refreshToken string) (*reddit.AccessInfo, error)
	IsAuthRejected(err error) bool
	ClearAuthentication()
	UserName() string
}

// UserInterface is the slice of the terminal the authenticator needs.
type UserInterface interface {
	IsGraphical() bool
	OpenBrowser(url string) error
	ShowNotification(message string, style terminal.Style)
	Loader(message string, fn func() error) error
}

// Authenticator coordinates the OAuth2 handshake: silent refresh when a
// refresh token is cached, the interactive browser flow otherwise.
type Authenticator struct {
	client Client
	term   UserInterface
	config *config.Config
	logger *slog.Logger

	server *CallbackServer

	// delay implements the headless feedback pause; tests stub it out.
	delay func(time.Duration)
}

// NewAuthenticator wires the authenticator to its collaborators and installs
// the app credentials on the client. The callback server is created unbound;
// the port is only reserved when an interactive attempt needs it.
func NewAuthenticator(client Client, term UserInterface, cfg *config.Config, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}

	client.SetAppCredentials(cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.OAuthRedirectURI)
	if !term.IsGraphical() {
		// reddit's mobile pages render better in terminal browsers
		client.SetCompactAuthorize(true)
	}

	return &Authenticator{
		client: client,
		term:   term,
		config: cfg,
		logger: logging.WithOperation(logger, "oauth.authorize"),
		server: NewCallbackServer(logger),
		delay:  time.Sleep,
	}
}

// Authorize obtains access credentials for the session. With a cached
// refresh token it refreshes silently; otherwise it walks the user through
// the interactive browser flow.
//
// A rejected refresh token purges local credentials and returns
// ErrInvalidRefreshToken so the caller can re-prompt. Transient refresh
// failures propagate unchanged; no retry happens at this layer. Interactive
// outcomes (denied, provider error, state mismatch) are reported through
// notifications and end the handshake without an error.
func (a *Authenticator) Authorize(ctx context.Context) error {
	if token := a.config.RefreshToken; token != "" {
		return a.refresh(ctx, token)
	}
	return a.interactive(ctx)
}

func (a *Authenticator) refresh(ctx context.Context, token string) error {
	err := a.term.Loader("Logging in", func() error {
		_, err := a.client.RefreshAccessInformation(ctx, token)
		return err
	})
	if err == nil {
		return nil
	}

	if !a.client.IsAuthRejected(err) {
		// Temporary failures (5xx, transport errors) are the caller's
		// problem; this layer performs no retry.
		return err
	}

	a.logger.Error("refresh token rejected, purging credentials", logging.Err(err))
	a.clearOAuthData()
	return ErrInvalidRefreshToken
}

func (a *Authenticator) interactive(ctx context.Context) error {
	a.server.ResetParams()

	state := newState()
	authorizeURL := a.client.AuthorizeURL(state, a.config.OAuthScope, true)

	if err := a.server.Start(a.config.OAuthRedirectPort); err != nil {
		return err
	}

	if a.term.IsGraphical() {
		if err := a.graphicalFlow(authorizeURL); err != nil {
			a.logger.Error("browser authorization failed", logging.Err(err))
			return nil
		}
	} else {
		a.headlessFlow(authorizeURL)
	}

	params := a.server.Params()
	switch {
	case params.Error == "access_denied":
		a.term.ShowNotification("Denied access", terminal.StyleError)
		return nil
	case params.Error != "":
		a.logger.Error("provider returned an error", slog.String("oauth_error", params.Error))
		a.term.ShowNotification("Authentication error", terminal.StyleError)
		return nil
	case params.State == "":
		// Something went wrong before the provider could respond; there is
		// nothing actionable to report.
		return nil
	case params.State != state:
		a.term.ShowNotification("UUID mismatch", terminal.StyleError)
		return nil
	}

	var info *reddit.AccessInfo
	err := a.term.Loader("Logging in", func() error {
		var exchangeErr error
		info, exchangeErr = a.client.AccessInformation(ctx, params.Code)
		return exchangeErr
	})
	if err != nil {
		a.logger.Error("code exchange failed", logging.Err(err))
		return nil
	}

	a.config.RefreshToken = info.RefreshToken
	if a.config.Persistent {
		if err := a.config.SaveRefreshToken(); err != nil {
			a.logger.Error("failed to persist refresh token", logging.Err(err))
		}
	}

	a.logger.Info("authorization complete",
		logging.User(a.client.UserName()),
		logging.Status(logging.StatusSuccess))
	a.term.ShowNotification(fmt.Sprintf("Welcome %s!", a.client.UserName()), terminal.StyleInfo)
	return nil
}

// graphicalFlow spawns the background browser and runs the accept loop on
// the calling goroutine. The loop blocks until it has answered the single
// redirect, then stops itself.
func (a *Authenticator) graphicalFlow(authorizeURL string) error {
	a.server.SetShutdownOnRequest(true)
	return a.term.Loader("Opening browser for authorization", func() error {
		if err := a.term.OpenBrowser(authorizeURL); err != nil {
			return err
		}
		return a.server.Serve()
	})
}

// headlessFlow serves on a background goroutine while the terminal browser
// owns the screen. Once the browser process exits, the server is stopped
// and the goroutine joined so the captured parameters are stable before the
// caller reads them.
func (a *Authenticator) headlessFlow(authorizeURL string) {
	a.server.SetShutdownOnRequest(false)

	// A brief status so the user knows what is about to happen.
	_ = a.term.Loader("Redirecting to reddit", func() error {
		a.delay(transientStatusDelay)
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.server.Serve(); err != nil {
			a.logger.Error("callback server error", logging.Err(err))
		}
	}()

	if err := a.term.OpenBrowser(authorizeURL); err != nil {
		// The serve goroutine stays up; the next attempt or Close winds
		// it down.
		a.logger.Error("browser launch failed", logging.Err(err))
		a.term.ShowNotification("Browser Error", terminal.StyleError)
		return
	}

	a.server.Stop()
	<-done
}

// clearOAuthData drops the client's in-memory authentication state and
// deletes the persisted refresh token.
func (a *Authenticator) clearOAuthData() {
	a.client.ClearAuthentication()
	if err := a.config.DeleteRefreshToken(); err != nil {
		a.logger.Error("failed to delete refresh token", logging.Err(err))
	}
}

// Close releases the callback server's port if it was ever bound.
func (a *Authenticator) Close() error {
	return a.server.Close()
}

// newState returns a fresh CSRF state token: 128 bits of randomness as 32
// hex characters.
func newState() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
