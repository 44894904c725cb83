package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "WALKNOTE"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "walknote.db"
	defaultLogLevel      = "info"
	defaultCookieName    = "app_session"
	defaultSessionIssuer = "walknote-auth"
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultStorageBucket = "walknote-audio"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	LogLevel          string
	SessionSigningKey string
	SessionCookieName string
	SessionIssuer     string
	GeminiAPIKey      string
	GeminiModel       string
	StorageEndpoint   string
	StorageAccessKey  string
	StorageSecretKey  string
	StorageBucket     string
	StorageSecure     bool
	WebhookSecret     string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.issuer", defaultSessionIssuer)
	configViper.SetDefault("gemini.model", defaultGeminiModel)
	configViper.SetDefault("storage.bucket", defaultStorageBucket)
	configViper.SetDefault("storage.secure", false)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		SessionSigningKey: configViper.GetString("auth.signing_secret"),
		SessionCookieName: configViper.GetString("auth.cookie_name"),
		SessionIssuer:     configViper.GetString("auth.issuer"),
		GeminiAPIKey:      configViper.GetString("gemini.api_key"),
		GeminiModel:       configViper.GetString("gemini.model"),
		StorageEndpoint:   configViper.GetString("storage.endpoint"),
		StorageAccessKey:  configViper.GetString("storage.access_key"),
		StorageSecretKey:  configViper.GetString("storage.secret_key"),
		StorageBucket:     configViper.GetString("storage.bucket"),
		StorageSecure:     configViper.GetBool("storage.secure"),
		WebhookSecret:     configViper.GetString("billing.webhook_secret"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningKey) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("gemini.api_key is required")
	}
	if strings.TrimSpace(c.StorageEndpoint) == "" {
		return fmt.Errorf("storage.endpoint is required")
	}
	if strings.TrimSpace(c.StorageBucket) == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	return nil
}
