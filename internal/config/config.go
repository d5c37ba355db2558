package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		Domain       string `yaml:"domain"`
		WebrootDir   string `yaml:"webroot_dir"`
		AdminContact string `yaml:"admin_contact"`
	} `yaml:"server"`
	Database struct {
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresURL string `yaml:"postgres_url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Admin struct {
		Login        string `yaml:"login"`
		PasswordHash string `yaml:"password_hash"`
		SessionTTL   string `yaml:"session_ttl"`
	} `yaml:"admin"`
	Results struct {
		Tier1LifetimeHours int `yaml:"tier1_lifetime_hours"`
	} `yaml:"results"`
	Payments struct {
		StripeAPIKey string `yaml:"stripe_api_key"`
		TierLinks    struct {
			Tier1 string `yaml:"tier1"`
			Tier2 string `yaml:"tier2"`
			Tier3 string `yaml:"tier3"`
		} `yaml:"tier_links"`
	} `yaml:"payments"`
	Cert struct {
		TemplatePath string `yaml:"template_path"`
	} `yaml:"cert"`
}

// Load reads YAML config from path and overlays secrets from the
// environment, so deployments can keep keys out of the config file.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	overlayEnv(&cfg.Payments.StripeAPIKey, "STRIPE_API_KEY")
	overlayEnv(&cfg.Admin.Login, "ADMIN_LOGIN")
	overlayEnv(&cfg.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	overlayEnv(&cfg.Payments.TierLinks.Tier1, "TIER1_LINK_ID")
	overlayEnv(&cfg.Payments.TierLinks.Tier2, "TIER2_LINK_ID")
	overlayEnv(&cfg.Payments.TierLinks.Tier3, "TIER3_LINK_ID")

	if cfg.Results.Tier1LifetimeHours == 0 {
		cfg.Results.Tier1LifetimeHours = 72
	}
	return cfg, nil
}

func overlayEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate rejects configs that cannot run a server at all.
func (c Config) Validate() error {
	if c.Database.SQLitePath == "" && c.Database.PostgresURL == "" {
		return fmt.Errorf("either database.sqlite_path or database.postgres_url is required")
	}
	if c.Admin.Login == "" || c.Admin.PasswordHash == "" {
		return fmt.Errorf("admin login and password hash are required")
	}
	return nil
}

// Tier1Lifetime returns the retention window for temporary results.
func (c Config) Tier1Lifetime() time.Duration {
	return time.Duration(c.Results.Tier1LifetimeHours) * time.Hour
}

// TTLDuration parses a duration string or returns the fallback if empty
// or malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
