package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/saboresdadori/bakerybot/internal/api"
	"github.com/saboresdadori/bakerybot/internal/evolution"
	"github.com/saboresdadori/bakerybot/internal/flow"
	"github.com/saboresdadori/bakerybot/internal/store"
	"github.com/saboresdadori/bakerybot/internal/util"
)

// Default configuration constants
const (
	// DefaultQuotesPath is the default quotes file location.
	DefaultQuotesPath = "data/orcamentos.json"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Validate required gateway settings
	if missing := missingRequiredSettings(flags); len(missing) > 0 {
		slog.Error("Missing required configuration, refusing to start", "missing", missing)
		os.Exit(1)
	}

	// Build module options
	evoOpts := buildEvolutionOptions(flags)
	storeOpts := buildStoreOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping bakery bot with configured modules", "instance", *flags.instance)
	slog.Debug("Final configuration", "api_addr", *flags.apiAddr, "quotes_dsn_set", *flags.quotesDSN != "", "webhook_url_set", *flags.webhookURL != "", "session_ttl", *flags.sessionTTL)
	if err := api.Run(evoOpts, storeOpts, apiOpts); err != nil {
		slog.Error("Bakery bot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Bakery bot exited successfully")
}

// Config holds environment configuration
type Config struct {
	EvolutionURL string
	EvolutionKey string
	Instance     string
	WebhookURL   string
	QuotesDSN    string
	APIAddr      string
	SessionTTL   time.Duration
}

// Flags holds command line flag values
type Flags struct {
	evolutionURL *string
	evolutionKey *string
	instance     *string
	webhookURL   *string
	quotesDSN    *string
	apiAddr      *string
	sessionTTL   *time.Duration
}

// initializeLogger sets up structured logging; BAKERYBOT_DEBUG raises the
// level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("BAKERYBOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		EvolutionURL: os.Getenv("EVOLUTION_API_URL"),
		EvolutionKey: os.Getenv("EVOLUTION_API_KEY"),
		Instance:     os.Getenv("INSTANCE_NAME"),
		WebhookURL:   os.Getenv("WEBHOOK_URL"),
		QuotesDSN:    os.Getenv("QUOTES_DSN"),
		APIAddr:      os.Getenv("API_ADDR"),
		SessionTTL:   util.ParseDurationEnv("SESSION_TTL", flow.DefaultSessionTTL),
	}

	// PORT is the convention the hosting platform uses; API_ADDR wins when both are set.
	if config.APIAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			config.APIAddr = ":" + port
		}
	}
	if config.QuotesDSN == "" {
		config.QuotesDSN = DefaultQuotesPath
		slog.Debug("No QUOTES_DSN set, using default quotes file", "path", config.QuotesDSN)
	}

	slog.Debug("environment variables loaded",
		"EVOLUTION_API_URL_SET", config.EvolutionURL != "",
		"EVOLUTION_API_KEY_SET", config.EvolutionKey != "",
		"INSTANCE_NAME", config.Instance,
		"WEBHOOK_URL_SET", config.WebhookURL != "",
		"QUOTES_DSN", config.QuotesDSN,
		"API_ADDR", config.APIAddr,
		"SESSION_TTL", config.SessionTTL)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		evolutionURL: flag.String("evolution-url", config.EvolutionURL, "Evolution API base URL (overrides $EVOLUTION_API_URL)"),
		evolutionKey: flag.String("evolution-key", config.EvolutionKey, "Evolution API key (overrides $EVOLUTION_API_KEY)"),
		instance:     flag.String("instance", config.Instance, "Evolution API instance name (overrides $INSTANCE_NAME)"),
		webhookURL:   flag.String("webhook-url", config.WebhookURL, "public webhook URL to register with the gateway (overrides $WEBHOOK_URL)"),
		quotesDSN:    flag.String("quotes-dsn", config.QuotesDSN, "quotes backend: .json file path, SQLite file path or Postgres DSN (overrides $QUOTES_DSN)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR or $PORT)"),
		sessionTTL:   flag.Duration("session-ttl", config.SessionTTL, "conversational session idle expiry (overrides $SESSION_TTL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"evolutionURL_set", *flags.evolutionURL != "",
		"evolutionKey_set", *flags.evolutionKey != "",
		"instance", *flags.instance,
		"webhookURL_set", *flags.webhookURL != "",
		"quotesDSN", *flags.quotesDSN,
		"apiAddr", *flags.apiAddr,
		"sessionTTL", *flags.sessionTTL)

	return flags
}

// missingRequiredSettings returns the names of required gateway settings
// that are absent. Startup without them is a configuration error.
func missingRequiredSettings(flags Flags) []string {
	var missing []string
	if *flags.evolutionURL == "" {
		missing = append(missing, "EVOLUTION_API_URL")
	}
	if *flags.evolutionKey == "" {
		missing = append(missing, "EVOLUTION_API_KEY")
	}
	if *flags.instance == "" {
		missing = append(missing, "INSTANCE_NAME")
	}
	return missing
}

// buildEvolutionOptions constructs Evolution API client configuration options
func buildEvolutionOptions(flags Flags) []evolution.Option {
	return []evolution.Option{
		evolution.WithBaseURL(*flags.evolutionURL),
		evolution.WithAPIKey(*flags.evolutionKey),
		evolution.WithInstance(*flags.instance),
	}
}

// buildStoreOptions constructs quote store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.quotesDSN != "" {
		switch store.DetectDSNType(*flags.quotesDSN) {
		case "postgres":
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.quotesDSN))
		case "sqlite":
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.quotesDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.quotesDSN))
		default:
			slog.Debug("Detected quotes file path, configuring JSON file store", "path", *flags.quotesDSN)
			storeOpts = append(storeOpts, store.WithJSONPath(*flags.quotesDSN))
		}
	}
	return storeOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.webhookURL != "" {
		apiOpts = append(apiOpts, api.WithWebhookURL(*flags.webhookURL))
	}
	if *flags.sessionTTL > 0 {
		apiOpts = append(apiOpts, api.WithSessionTTL(*flags.sessionTTL))
	}
	return apiOpts
}
