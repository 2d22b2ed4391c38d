package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	FrontendOrigin string
	LogLevel       string

	NodeGRPC       string
	NodeAPIKey     string
	GatewayURL     string
	GatewayAPIKey  string
	ExplorerURL    string
	ExplorerKeys   []string
	PrivateKey     string
	BackendTimeout time.Duration

	ProbeTimeout    time.Duration
	PrimaryCooldown time.Duration
	HeuristicsFile  string
	WatchInterval   time.Duration
	FeeLimitSun     int64

	DatabaseURL   string
	RedisURL      string
	RedisPassword string
}

// Load reads the configuration from the environment. A .env file in the
// working directory, or the one named by ENV_FILE, is applied first without
// overriding variables that are already set.
func Load() Config {
	loadDotEnv()

	cfg := Config{
		Port:           envOr("PORT", "8080"),
		FrontendOrigin: envOr("FRONTEND_ORIGIN", "*"),
		LogLevel:       envOr("LOG_LEVEL", "info"),

		NodeGRPC:       envOr("TRON_NODE_GRPC", "grpc.trongrid.io:50051"),
		NodeAPIKey:     os.Getenv("TRON_NODE_API_KEY"),
		GatewayURL:     envOr("TRONGRID_URL", "https://api.trongrid.io"),
		GatewayAPIKey:  os.Getenv("TRONGRID_API_KEY"),
		ExplorerURL:    envOr("TRONSCAN_URL", "https://apilist.tronscanapi.com"),
		ExplorerKeys:   splitList(os.Getenv("TRONSCAN_API_KEYS")),
		PrivateKey:     os.Getenv("TRON_PRIVATE_KEY"),
		BackendTimeout: envDuration("BACKEND_TIMEOUT", 10*time.Second),

		ProbeTimeout:    time.Duration(envInt("PROBE_TIMEOUT_MS", 5000)) * time.Millisecond,
		PrimaryCooldown: envDuration("PRIMARY_COOLDOWN", 0),
		HeuristicsFile:  os.Getenv("HEURISTICS_FILE"),
		WatchInterval:   envDuration("WATCH_INTERVAL", time.Minute),
		FeeLimitSun:     envInt("DEFAULT_FEE_LIMIT_SUN", 100_000_000),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg
}

func loadDotEnv() {
	path := envOr("ENV_FILE", ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		slog.Warn("failed to load env file", "path", path, "error", err)
	}
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL", "https://app.infisical.com")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	var explorerKeys string
	secrets := map[string]*string{
		"TRON_NODE_API_KEY": &cfg.NodeAPIKey,
		"TRONGRID_API_KEY":  &cfg.GatewayAPIKey,
		"TRONSCAN_API_KEYS": &explorerKeys,
		"TRON_PRIVATE_KEY":  &cfg.PrivateKey,
		"REDIS_PASSWORD":    &cfg.RedisPassword,
	}
	if len(cfg.ExplorerKeys) > 0 {
		explorerKeys = strings.Join(cfg.ExplorerKeys, ",")
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
	cfg.ExplorerKeys = splitList(explorerKeys)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("invalid integer in env, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

// envDuration accepts Go durations ("30s") and bare seconds ("30").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	slog.Warn("invalid duration in env, using default", "key", key, "value", v, "default", fallback)
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
