package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ObiAU/sieratagger/internal/store/tomlfile"
)

const notFound = "Not_Found"

type Config struct {
	Token        string
	APIKey       string
	RefreshToken string

	BaseURL           string
	BatchSize         int
	RequestTimeout    time.Duration
	MaxAuthRetries    int
	RequestsPerSecond float64

	EnvFile      string
	ConfigFile   string
	ArticlesDB   string
	ArticlesFile string

	NewsAPIKey     string
	OpenAIAPIKey   string
	OpenAIModel    string
	TelegramToken  string
	TelegramChatID int64

	LogLevel string
}

// Options controls where Load looks for values besides the process environment.
type Options struct {
	// EnvFile is a dotenv file loaded into the environment first. A missing
	// file is not an error.
	EnvFile string

	// ConfigFile is an optional TOML file whose values act as defaults.
	ConfigFile string
}

// Load builds the configuration: built-in defaults, then the TOML file,
// then the environment (including the dotenv file).
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", opts.EnvFile, err)
		}
	}

	defaults := map[string]string{}
	if opts.ConfigFile != "" {
		values, err := readTOML(opts.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", opts.ConfigFile, err)
		}
		defaults = values
	}
	def := func(key, fallback string) string {
		if v, ok := defaults[key]; ok && v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Token:             getEnv("TOKEN", def("TOKEN", notFound)),
		APIKey:            getEnv("X_API_Key", getEnv("X_API_KEY", def("X_API_Key", notFound))),
		RefreshToken:      getEnv("REFRESH_TOKEN", def("REFRESH_TOKEN", notFound)),
		BaseURL:           getEnv("SIERA_BASE_URL", def("SIERA_BASE_URL", "https://siera.commetric.cloud/api/v1")),
		BatchSize:         getEnvAsInt("BATCH_SIZE", atoiOr(def("BATCH_SIZE", ""), 10)),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", durationOr(def("REQUEST_TIMEOUT", ""), 30*time.Second)),
		MaxAuthRetries:    getEnvAsInt("MAX_AUTH_RETRIES", atoiOr(def("MAX_AUTH_RETRIES", ""), 1)),
		RequestsPerSecond: getEnvAsFloat("REQUESTS_PER_SECOND", floatOr(def("REQUESTS_PER_SECOND", ""), 5)),
		EnvFile:           opts.EnvFile,
		ConfigFile:        opts.ConfigFile,
		ArticlesDB:        getEnv("ARTICLES_DB", def("ARTICLES_DB", "articles.db")),
		ArticlesFile:      getEnv("ARTICLES_FILE", def("ARTICLES_FILE", "articles.json")),
		NewsAPIKey:        getEnv("NEWS_API_KEY", def("NEWS_API_KEY", "")),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", def("OPENAI_API_KEY", "")),
		OpenAIModel:       getEnv("OPENAI_MODEL", def("OPENAI_MODEL", "gpt-4o-mini")),
		TelegramToken:     getEnv("TELEGRAM_BOT_TOKEN", def("TELEGRAM_BOT_TOKEN", "")),
		TelegramChatID:    int64(getEnvAsInt("TELEGRAM_CHAT_ID", atoiOr(def("TELEGRAM_CHAT_ID", ""), 0))),
		LogLevel:          getEnv("LOG_LEVEL", def("LOG_LEVEL", "info")),
	}

	return cfg, nil
}

var (
	ErrMissingCredentials = errors.New("config: TOKEN, X_API_Key and REFRESH_TOKEN must be set")
	ErrInvalidBatchSize   = errors.New("config: BATCH_SIZE must be between 1 and 10")
)

// Validate checks the values needed to talk to Siera.
func (c *Config) Validate() error {
	var missing []string
	for name, v := range map[string]string{"TOKEN": c.Token, "X_API_Key": c.APIKey, "REFRESH_TOKEN": c.RefreshToken} {
		if v == "" || v == notFound {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w (missing %s)", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	if c.BatchSize < 1 || c.BatchSize > 10 {
		return fmt.Errorf("%w, got %d", ErrInvalidBatchSize, c.BatchSize)
	}
	if c.MaxAuthRetries < 0 {
		return fmt.Errorf("config: MAX_AUTH_RETRIES must not be negative, got %d", c.MaxAuthRetries)
	}
	return nil
}

// TelegramEnabled reports whether tag summaries should be posted to Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	return atoiOr(os.Getenv(key), defaultValue)
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	return floatOr(os.Getenv(key), defaultValue)
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	return durationOr(os.Getenv(key), defaultValue)
}

func atoiOr(value string, defaultValue int) int {
	if value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func floatOr(value string, defaultValue float64) float64 {
	if value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func durationOr(value string, defaultValue time.Duration) time.Duration {
	if value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func readTOML(path string) (map[string]string, error) {
	store, err := tomlfile.Open(path)
	if err != nil {
		return nil, err
	}
	return store.Strings(), nil
}
