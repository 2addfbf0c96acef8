// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "NUTURE_"

// devSecret is the token secret used when none is configured. Production
// deployments must override it; Validate rejects it outside dev mode.
const devSecret = "dev-secret-change-me"

// Config holds runtime settings for the service.
type Config struct {
	Port           string
	DBPath         string
	LogLevel       string
	LogFormat      string
	Dev            bool
	TokenSecret    string
	TokenTTL       time.Duration
	BackendTimeout time.Duration
	AllowedOrigins []string
	SeedDemo       bool

	PostmarkToken string
	FromEmail     string
	SupportEmail  string

	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Port = "8080"
	c.DBPath = "nuturetable.db"
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.Dev = true
	c.TokenSecret = devSecret
	c.TokenTTL = 24 * time.Hour
	c.BackendTimeout = 5 * time.Second
	c.FromEmail = "noreply@nuturetable.local"
	c.SupportEmail = "support@nuturetable.local"
	c.S3Region = "us-east-1"
	c.VAPIDSubject = "mailto:support@nuturetable.local"
}

// Load applies defaults, then the optional env files, then the process
// environment. Variables already set in the environment win over .env.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	cfg.LoadDefaults()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(envPrefix + name)); v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(name string, dst *bool) {
		v := strings.TrimSpace(getenv(envPrefix + name))
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = b
	}
	duration := func(name string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(envPrefix + name))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = d
	}

	str("PORT", &c.Port)
	str("DB_PATH", &c.DBPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	boolean("DEV", &c.Dev)
	str("TOKEN_SECRET", &c.TokenSecret)
	duration("TOKEN_TTL", &c.TokenTTL)
	duration("BACKEND_TIMEOUT", &c.BackendTimeout)
	boolean("SEED_DEMO", &c.SeedDemo)
	str("POSTMARK_TOKEN", &c.PostmarkToken)
	str("FROM_EMAIL", &c.FromEmail)
	str("SUPPORT_EMAIL", &c.SupportEmail)
	str("S3_ENDPOINT", &c.S3Endpoint)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_ACCESS_KEY", &c.S3AccessKey)
	str("S3_SECRET_KEY", &c.S3SecretKey)
	str("VAPID_PUBLIC_KEY", &c.VAPIDPublicKey)
	str("VAPID_PRIVATE_KEY", &c.VAPIDPrivateKey)
	str("VAPID_SUBJECT", &c.VAPIDSubject)

	if v := getenv(envPrefix + "ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
	return errors.Join(errs...)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.BackendTimeout <= 0 {
		errs = append(errs, errors.New("backend timeout must be positive"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("vapid public and private keys must be set together"))
	}
	if !c.Dev && (c.TokenSecret == devSecret || len(c.TokenSecret) < 32) {
		errs = append(errs, errors.New("token secret must be set to at least 32 characters outside dev mode"))
	}
	return errors.Join(errs...)
}

// PushConfigured reports whether web push notifications can be sent.
func (c *Config) PushConfigured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
