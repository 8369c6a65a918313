package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aareon/rtv/internal/config"
	"github.com/Aareon/rtv/internal/logging"
)

// rootCmd represents the base command for the rtv application
var rootCmd = &cobra.Command{
	Use:   "rtv",
	Short: "Authorizes a terminal session against the reddit API",
	Long: `rtv manages the OAuth2 credentials for a terminal reddit session.

It walks you through the browser authorization flow, caches the resulting
refresh token, and keeps API traffic inside reddit's rate limits.`,
	SilenceUsage: true,
}

var (
	configPath string
	debugMode  bool
)

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "rtv version %s\n" .Version}}`)

	// If no subcommand is provided, run the login command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "login")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the rtv config file (default: the user config directory)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newLogger() *slog.Logger {
	return logging.New(os.Stderr, debugMode)
}

// loadConfig reads the config file and the cached refresh token.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.LoadRefreshToken(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// userAgent identifies rtv to reddit, as their API rules require.
func userAgent() string {
	return fmt.Sprintf("desktop:rtv:%s (by /u/civilization_phaze_3)", version)
}
