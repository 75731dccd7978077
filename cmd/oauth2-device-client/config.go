package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/tokenstore"
)

// Config holds client configuration loaded from environment variables
type Config struct {
	// Blank client IDs are reported by the device flow
	ClientID      string        `envconfig:"CLIENT_ID"`
	Provider      string        `envconfig:"PROVIDER" default:"github"`
	DeviceAuthURL string        `envconfig:"DEVICE_AUTH_URL"`
	TokenURL      string        `envconfig:"TOKEN_URL"`
	Scopes        []string      `envconfig:"SCOPES"`
	HTTPTimeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`

	TokenStore     string `envconfig:"TOKEN_STORE" default:"file"`
	TokenFile      string `envconfig:"TOKEN_FILE"`
	RedisURL       string `envconfig:"REDIS_URL"`
	RedisKey       string `envconfig:"REDIS_KEY" default:"default"`
	KeyringService string `envconfig:"KEYRING_SERVICE" default:"oauth2-device-client"`
	KeyringUser    string `envconfig:"KEYRING_USER" default:"default"`

	Port              int           `envconfig:"PORT" default:"8080"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"35s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`

	Debug bool `envconfig:"DEBUG" default:"false"`
}

// loadConfig reads the configuration from the environment
func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// providerConfig resolves the provider endpoints
func (c Config) providerConfig() (oauth.Config, error) {
	var pc oauth.Config
	switch strings.ToLower(c.Provider) {
	case "github":
		pc = oauth.GitHubConfig(c.Scopes...)
		if c.DeviceAuthURL != "" {
			pc.DeviceAuthURL = c.DeviceAuthURL
		}
		if c.TokenURL != "" {
			pc.TokenURL = c.TokenURL
		}
	case "custom":
		if c.DeviceAuthURL == "" || c.TokenURL == "" {
			return oauth.Config{}, fmt.Errorf("DEVICE_AUTH_URL and TOKEN_URL are required for the custom provider")
		}
		pc = oauth.Config{
			DeviceAuthURL: c.DeviceAuthURL,
			TokenURL:      c.TokenURL,
			Scopes:        c.Scopes,
		}
	default:
		return oauth.Config{}, fmt.Errorf("unknown provider %q", c.Provider)
	}
	pc.HTTPClient = &http.Client{Timeout: c.HTTPTimeout}
	return pc, nil
}

// tokenFile returns the token file path, defaulting to the user config dir
func (c Config) tokenFile() (string, error) {
	if c.TokenFile != "" {
		return c.TokenFile, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "oauth2-device-client", "token.json"), nil
}

// newStore creates the configured token store. The returned close function
// releases any connection held by the store.
func (c Config) newStore() (deviceflow.TokenStore, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(c.TokenStore) {
	case "memory":
		return tokenstore.NewMemoryStore(), noop, nil

	case "file":
		path, err := c.tokenFile()
		if err != nil {
			return nil, nil, err
		}
		return tokenstore.NewFileStore(path), noop, nil

	case "redis":
		if c.RedisURL == "" {
			return nil, nil, fmt.Errorf("REDIS_URL is required for the redis token store")
		}
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing Redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		return tokenstore.NewRedisStore(client, c.RedisKey), client.Close, nil

	case "keyring":
		return tokenstore.NewKeyringStore(c.KeyringService, c.KeyringUser), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown token store %q", c.TokenStore)
	}
}
