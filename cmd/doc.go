// Package cmd implements the command-line interface for rtv.
//
// This package provides the following commands:
//   - login: Authorize the terminal session against reddit via OAuth2
//   - logout: Discard the cached credentials
//   - whoami: Show the account the session is authorized as
//   - version: Display version information
//
// The login command is the default command when no subcommand is specified.
package cmd
