// Package cli contains the sieratagger commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ObiAU/sieratagger/internal/config"
	"github.com/ObiAU/sieratagger/internal/logging"
	"github.com/ObiAU/sieratagger/internal/models"
	"github.com/ObiAU/sieratagger/internal/siera"
	"github.com/ObiAU/sieratagger/internal/store/dotenv"
	"github.com/ObiAU/sieratagger/internal/store/tomlfile"
)

var (
	envFile  string
	cfgFile  string
	logLevel string
	cfg      *config.Config
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sieratagger",
	Short: "Tag news articles with the Siera tagging service",
	Long: `sieratagger sends news articles to the Siera tagging service in batches
and reports the tags it returns. Expired access tokens are renewed with the
refresh token and written back to the env or config file.

Example usage:
  sieratagger version                          # Print the rules version
  sieratagger tag --articles articles.json     # Tag articles from a JSON file
  sieratagger tag --source sqlite --db news.db # Tag stored articles, save tags
  sieratagger refresh-token                    # Renew the access token`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initConfig(cmd)
	},
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with credentials")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML file with default settings; renewed tokens are saved here when set")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
}

func initConfig(cmd *cobra.Command) error {
	loaded, err := config.Load(config.Options{EnvFile: envFile, ConfigFile: cfgFile})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := loaded.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger = logging.New(cmd.ErrOrStderr(), level)
	cfg = loaded

	logger.Debug("configuration loaded",
		"env_file", cfg.EnvFile,
		"config_file", cfg.ConfigFile,
		"base_url", cfg.BaseURL,
		"batch_size", cfg.BatchSize)
	return nil
}

// tokenStore picks where renewed tokens go: the TOML file when one is in
// use, the dotenv file otherwise.
func tokenStore() (models.TokenStore, error) {
	if cfg.ConfigFile != "" {
		store, err := tomlfile.Open(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", cfg.ConfigFile, err)
		}
		return store, nil
	}
	return dotenv.New(cfg.EnvFile), nil
}

func newSieraClient() (*siera.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := tokenStore()
	if err != nil {
		return nil, err
	}

	return siera.New(
		siera.NewCredentials(cfg.Token, cfg.APIKey, cfg.RefreshToken),
		siera.WithBaseURL(cfg.BaseURL),
		siera.WithTimeout(cfg.RequestTimeout),
		siera.WithTokenStore(store),
		siera.WithRateLimit(cfg.RequestsPerSecond),
		siera.WithMaxAuthRetries(cfg.MaxAuthRetries),
		siera.WithLogger(logger.With("component", "siera")),
	)
}
