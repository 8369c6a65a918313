// Package config loads the rtv configuration file and manages the cached
// OAuth refresh token.
//
// The configuration is a YAML file (by default ~/.config/rtv/rtv.yaml)
// carrying the registered OAuth application credentials, the redirect
// port for the local callback server, the requested scope, and whether
// credentials persist across runs.
//
// The refresh token is deliberately kept out of the configuration file and
// stored in its own 0600 file next to it, so config files can be shared or
// versioned without leaking credentials.
package config
