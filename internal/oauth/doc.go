// Package oauth implements the OAuth2 authorization handshake against
// reddit: the coordinator that chooses between silent refresh and the
// interactive browser flow, and the ephemeral local HTTP server that
// captures the provider's browser redirect.
//
// The handshake is CSRF-protected: every interactive attempt carries a
// fresh unguessable state token that the provider must echo back, and a
// mismatch aborts the attempt before any code exchange.
//
// The callback server binds its port lazily and at most once per
// coordinator; repeated authorize attempts reuse the binding. The accept
// loop can be run inline (graphical mode, where it blocks until the single
// redirect has been answered) or on a background goroutine that the
// coordinator stops and joins once the terminal browser exits.
package oauth
