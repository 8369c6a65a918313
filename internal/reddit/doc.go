// Package reddit provides the authenticated session against the reddit API.
//
// The client owns the OAuth2 application credentials, builds authorize URLs
// for the interactive flow, exchanges authorization codes and refresh tokens
// for access credentials, and performs API calls through the rate-limited
// request pipeline from the ratelimit package.
//
// Business endpoints are out of scope here; the only API call the client
// makes on its own behalf is the /api/v1/me identity fetch that names the
// authenticated user after a successful handshake.
package reddit
