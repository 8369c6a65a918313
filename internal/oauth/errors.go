package oauth

import "errors"

// ErrInvalidRefreshToken reports that the provider rejected the cached
// refresh token. The token has already been purged from memory and disk by
// the time this error surfaces; the caller is expected to re-prompt the
// user with an interactive authorization.
var ErrInvalidRefreshToken = errors.New(
	"invalid user credentials: the cached refresh token has been removed")
