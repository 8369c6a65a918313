package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults for the registered rtv OAuth application.
const (
	DefaultClientID     = "E2oEtRQfdfAfNQ"
	DefaultRedirectURI  = "http://127.0.0.1:65000/"
	DefaultRedirectPort = 65000
	DefaultScope        = "edit,history,identity,mysubreddits,privatemessages,read,report,save,submit,subscribe,vote"
)

// refreshTokenFile is the name of the token file stored next to the config.
const refreshTokenFile = "refresh-token"

// Config holds the application settings plus the in-memory refresh token.
type Config struct {
	OAuthClientID     string `yaml:"oauth_client_id"`
	OAuthClientSecret string `yaml:"oauth_client_secret"`
	OAuthRedirectURI  string `yaml:"oauth_redirect_uri"`
	OAuthRedirectPort int    `yaml:"oauth_redirect_port"`
	OAuthScope        string `yaml:"oauth_scope"`

	// Persistent controls whether the refresh token survives across runs.
	Persistent bool `yaml:"persistent"`

	// ForceTerminalBrowser disables the graphical browser even when a
	// display is available.
	ForceTerminalBrowser bool `yaml:"force_terminal_browser"`

	// RefreshToken is loaded from and saved to its own file, never the
	// config file itself.
	RefreshToken string `yaml:"-"`

	dir string
}

// Default returns a configuration populated with the stock rtv application
// credentials, rooted at the user config directory.
func Default() *Config {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return &Config{
		OAuthClientID:     DefaultClientID,
		OAuthRedirectURI:  DefaultRedirectURI,
		OAuthRedirectPort: DefaultRedirectPort,
		OAuthScope:        DefaultScope,
		Persistent:        true,
		dir:               filepath.Join(dir, "rtv"),
	}
}

// Load reads the YAML configuration at path. A missing file is not an error;
// defaults are returned and the config directory is derived from path so the
// token file lives next to where the config would be.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		cfg.dir = filepath.Dir(path)
	} else {
		path = filepath.Join(cfg.dir, "rtv.yaml")
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Dir returns the directory holding the config and token files.
func (c *Config) Dir() string {
	return c.dir
}

// SetDir overrides the directory used for the token file. Used by tests and
// the --config flag handling.
func (c *Config) SetDir(dir string) {
	c.dir = dir
}

func (c *Config) tokenPath() string {
	return filepath.Join(c.dir, refreshTokenFile)
}

// LoadRefreshToken reads the cached refresh token from disk into the config.
// A missing token file simply leaves RefreshToken empty.
func (c *Config) LoadRefreshToken() error {
	data, err := os.ReadFile(c.tokenPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read refresh token: %w", err)
	}
	c.RefreshToken = strings.TrimSpace(string(data))
	return nil
}

// SaveRefreshToken writes the current refresh token to its own 0600 file.
func (c *Config) SaveRefreshToken() error {
	if c.RefreshToken == "" {
		return errors.New("no refresh token to save")
	}
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(c.tokenPath(), []byte(c.RefreshToken+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write refresh token: %w", err)
	}
	return nil
}

// DeleteRefreshToken removes the persisted token and clears the in-memory
// copy. Deleting an already-absent file is not an error.
func (c *Config) DeleteRefreshToken() error {
	c.RefreshToken = ""
	err := os.Remove(c.tokenPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}
