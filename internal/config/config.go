package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		URL            string
		ConnectTimeout time.Duration
		QueryTimeout   time.Duration
	}
	Auth struct {
		JWTSecret string
	}
	App struct {
		Env string
	}
	Diagnostics struct {
		AdminEmail string
	}
	Log struct {
		Level string
	}
}

// Load reads configuration from environment variables and optional config files.
// Every key may be set as BALLOT_<SECTION>_<KEY>; the common unprefixed names
// (DATABASE_URL, MONGODB_URI, JWT_SECRET, APP_ENV, NODE_ENV) are honoured too.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("BALLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.url", "")
	v.SetDefault("database.connecttimeout", 5*time.Second)
	v.SetDefault("database.querytimeout", 5*time.Second)
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("app.env", "")
	v.SetDefault("diagnostics.adminemail", "admin@votingsystem.com")
	v.SetDefault("log.level", "info")

	bindings := map[string][]string{
		"database.url":   {"BALLOT_DATABASE_URL", "DATABASE_URL", "MONGODB_URI"},
		"auth.jwtsecret": {"BALLOT_AUTH_JWTSECRET", "JWT_SECRET"},
		"app.env":        {"BALLOT_APP_ENV", "APP_ENV", "NODE_ENV"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database.URL = strings.TrimSpace(cfg.Database.URL)
	cfg.Auth.JWTSecret = strings.TrimSpace(cfg.Auth.JWTSecret)

	return cfg, nil
}
