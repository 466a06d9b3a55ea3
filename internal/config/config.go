package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Pharmacy"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"pharmacy"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Auth struct {
		Secret        string        `envconfig:"JWT_SECRET" required:"true"`
		TokenTTL      time.Duration `envconfig:"JWT_TTL" default:"12h"`
		AdminEmail    string        `envconfig:"ADMIN_EMAIL"`
		AdminPassword string        `envconfig:"ADMIN_PASSWORD"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"text"`
	}

	Catalog struct {
		PhoneRegion string `envconfig:"PHONE_REGION" default:"EG"`
	}

	Reports struct {
		NearExpiryMonths int `envconfig:"NEAR_EXPIRY_MONTHS" default:"1"`
	}

	CORS struct {
		AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}

	if cfg.Reports.NearExpiryMonths < 0 {
		return nil, fmt.Errorf("NEAR_EXPIRY_MONTHS must not be negative, got %d", cfg.Reports.NearExpiryMonths)
	}

	return &cfg, nil
}
