package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the gorm/pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// KafkaConfig holds broker settings. An empty broker list disables Kafka.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// Enabled reports whether any broker is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// JWTConfig holds the token verification secret.
type JWTConfig struct {
	Secret string
}

// NavigationConfig holds all configuration for the navigation service.
type NavigationConfig struct {
	Port   string
	AppEnv string

	GeocoderURL       string
	GeocoderUserAgent string
	GeocodeCacheSize  int
	RankerURL         string
	DirectionsURL     string
	DirectionsAPIKey  string
	DirectionsProfile string
	HTTPTimeout       time.Duration

	InitialDelay  time.Duration
	StepDelay     time.Duration
	SessionTTL    time.Duration
	SweepInterval time.Duration

	SpeechBuffer   int
	AllowedOrigins []string
	KafkaConfig    KafkaConfig
}

// SafetyConfig holds all configuration for the safety ranker service.
type SafetyConfig struct {
	Port   string
	AppEnv string

	GeocoderURL       string
	GeocoderUserAgent string
	GeocodeCacheSize  int
	HTTPTimeout       time.Duration

	SeedFile       string
	AllowedOrigins []string
	DBConfig       DatabaseConfig
	JWTConfig      JWTConfig
	KafkaConfig    KafkaConfig
}

// newViper creates an env-driven viper instance for a service prefix. An
// optional config.yaml in the working directory is merged underneath.
func newViper(prefix string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.BindEnv("app_env", prefix+"_APP_ENV", "APP_ENV"); err != nil {
		return nil, err
	}
	v.SetDefault("app_env", "development")
	v.SetDefault("http_timeout", 12*time.Second)
	v.SetDefault("geocoder.url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "safe-route-navigation")
	v.SetDefault("geocoder.cache_size", 1024)
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.group_prefix", "saferoute-")
	return v, nil
}

// LoadNavigation reads the navigation service configuration from
// NAVIGATION_* environment variables.
func LoadNavigation() (*NavigationConfig, error) {
	v, err := newViper("NAVIGATION")
	if err != nil {
		return nil, err
	}
	v.SetDefault("port", ":8080")
	v.SetDefault("ranker.url", "http://localhost:8081")
	v.SetDefault("directions.url", "https://api.openrouteservice.org")
	v.SetDefault("directions.api_key", "")
	v.SetDefault("directions.profile", "driving-car")
	v.SetDefault("narration.initial_delay", 2*time.Second)
	v.SetDefault("narration.step_delay", 7*time.Second)
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("speech.buffer", 256)

	cfg := &NavigationConfig{
		Port:              servicePort(v.GetString("port")),
		AppEnv:            v.GetString("app_env"),
		GeocoderURL:       v.GetString("geocoder.url"),
		GeocoderUserAgent: v.GetString("geocoder.user_agent"),
		GeocodeCacheSize:  v.GetInt("geocoder.cache_size"),
		RankerURL:         v.GetString("ranker.url"),
		DirectionsURL:     v.GetString("directions.url"),
		DirectionsAPIKey:  v.GetString("directions.api_key"),
		DirectionsProfile: v.GetString("directions.profile"),
		HTTPTimeout:       v.GetDuration("http_timeout"),
		InitialDelay:      v.GetDuration("narration.initial_delay"),
		StepDelay:         v.GetDuration("narration.step_delay"),
		SessionTTL:        v.GetDuration("session.ttl"),
		SweepInterval:     v.GetDuration("session.sweep_interval"),
		SpeechBuffer:      v.GetInt("speech.buffer"),
		AllowedOrigins:    splitList(v.GetString("cors.allowed_origins")),
		KafkaConfig:       loadKafka(v),
	}

	for name, raw := range map[string]string{
		"geocoder.url":   cfg.GeocoderURL,
		"ranker.url":     cfg.RankerURL,
		"directions.url": cfg.DirectionsURL,
	} {
		if err := validateURL(name, raw); err != nil {
			return nil, err
		}
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("http_timeout must be positive")
	}
	return cfg, nil
}

// LoadSafety reads the safety ranker configuration from SAFETY_* environment
// variables.
func LoadSafety() (*SafetyConfig, error) {
	v, err := newViper("SAFETY")
	if err != nil {
		return nil, err
	}
	v.SetDefault("port", ":8081")
	v.SetDefault("seed_file", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "saferoute_safety")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("jwt.secret", "")

	cfg := &SafetyConfig{
		Port:              servicePort(v.GetString("port")),
		AppEnv:            v.GetString("app_env"),
		GeocoderURL:       v.GetString("geocoder.url"),
		GeocoderUserAgent: v.GetString("geocoder.user_agent"),
		GeocodeCacheSize:  v.GetInt("geocoder.cache_size"),
		HTTPTimeout:       v.GetDuration("http_timeout"),
		SeedFile:          v.GetString("seed_file"),
		AllowedOrigins:    splitList(v.GetString("cors.allowed_origins")),
		DBConfig: DatabaseConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		JWTConfig:   JWTConfig{Secret: v.GetString("jwt.secret")},
		KafkaConfig: loadKafka(v),
	}

	if err := validateURL("geocoder.url", cfg.GeocoderURL); err != nil {
		return nil, err
	}
	if cfg.JWTConfig.Secret == "" && cfg.AppEnv != "development" {
		return nil, fmt.Errorf("jwt.secret is required outside development")
	}
	return cfg, nil
}

func loadKafka(v *viper.Viper) KafkaConfig {
	return KafkaConfig{
		Brokers:     splitList(v.GetString("kafka.brokers")),
		GroupPrefix: v.GetString("kafka.group_prefix"),
	}
}

// servicePort accepts "8080" or ":8080".
func servicePort(port string) string {
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateURL(name, raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}
