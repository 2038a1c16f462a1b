package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	// DatabaseURL is optional; without it match history is kept in memory.
	DatabaseURL           string
	JWTSecretKey          string
	OrganizerPasswordHash string
	TokenTTL              time.Duration

	KnockoutShuffle bool
	ShuffleSeed     int64

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	CORSAllowedOrigins []string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv, time.Now)
}

// FromLookup builds a Config from lookup. now seeds the shuffle when
// SHUFFLE_SEED is unset.
func FromLookup(lookup func(string) (string, bool), now func() time.Time) (*Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := &Config{
		DatabaseURL:           get("DATABASE_URL"),
		JWTSecretKey:          get("JWT_SECRET_KEY"),
		OrganizerPasswordHash: get("ORGANIZER_PASSWORD_HASH"),
		R2AccountID:           get("R2_ACCOUNT_ID"),
		R2AccessKeyID:         get("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:     get("R2_SECRET_ACCESS_KEY"),
		R2BucketName:          get("R2_BUCKET_NAME"),
		R2PublicBaseURL:       get("R2_PUBLIC_BASE_URL"),
	}

	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}
	if cfg.OrganizerPasswordHash == "" {
		return nil, fmt.Errorf("ORGANIZER_PASSWORD_HASH environment variable is not set")
	}

	portStr := get("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	cfg.TokenTTL = 24 * time.Hour
	if ttl := get("TOKEN_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid TOKEN_TTL %q: must be a positive duration", ttl)
		}
		cfg.TokenTTL = d
	}

	cfg.KnockoutShuffle = true
	if v := get("KNOCKOUT_SHUFFLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid KNOCKOUT_SHUFFLE environment variable: %w", err)
		}
		cfg.KnockoutShuffle = b
	}

	cfg.ShuffleSeed = now().UnixNano()
	if v := get("SHUFFLE_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUFFLE_SEED environment variable: %w", err)
		}
		cfg.ShuffleSeed = seed
	}

	if cfg.R2Enabled() && !cfg.r2Complete() {
		return nil, fmt.Errorf("R2 export needs R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_BUCKET_NAME and R2_PUBLIC_BASE_URL together")
	}

	cfg.CORSAllowedOrigins = []string{"*"}
	if v := get("CORS_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) > 0 {
			cfg.CORSAllowedOrigins = origins
		}
	}

	return cfg, nil
}

func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" || c.R2AccessKeyID != "" || c.R2SecretAccessKey != "" || c.R2BucketName != "" || c.R2PublicBaseURL != ""
}

func (c *Config) r2Complete() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != "" && c.R2PublicBaseURL != ""
}
