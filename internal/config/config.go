package config

import (
	"os"
	"strconv"
)

type Mpesa struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Environment    string // "sandbox" or "production"
	CountryCode    string
}

type Config struct {
	Env           string
	Port          int
	DatabaseURL   string
	MigrationsDir string
	RedisAddr     string
	KafkaBrokers  string
	JWTSecret     string
	SeedSample    bool
	// SiteBaseURL is the public origin used for absolute URLs in the sitemap.
	SiteBaseURL string
	Mpesa       Mpesa
}

func Default() Config {
	return Config{
		Env:           "dev",
		Port:          8000,
		DatabaseURL:   "",
		MigrationsDir: "./internal/infrastructure/repo/migrations",
		RedisAddr:     "",
		KafkaBrokers:  "",
		JWTSecret:     "",
		SeedSample:    false,
		SiteBaseURL:   "http://localhost:8000",
		Mpesa: Mpesa{
			Environment: "sandbox",
			CountryCode: "254",
		},
	}
}

func EnvDefaults() Config {
	return fromEnv(Default())
}

func fromEnv(c Config) Config {
	if v := os.Getenv("HOODIE_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("HOODIE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("HOODIE_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("HOODIE_MIGRATIONS_DIR"); v != "" {
		c.MigrationsDir = v
	}
	if v := os.Getenv("HOODIE_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("HOODIE_KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = v
	}
	if v := os.Getenv("HOODIE_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("HOODIE_SEED_SAMPLE"); v != "" {
		switch v {
		case "1", "true", "TRUE":
			c.SeedSample = true
		case "0", "false", "FALSE":
			c.SeedSample = false
		}
	}
	if v := os.Getenv("HOODIE_SITE_BASE_URL"); v != "" {
		c.SiteBaseURL = v
	}
	if v := os.Getenv("MPESA_CONSUMER_KEY"); v != "" {
		c.Mpesa.ConsumerKey = v
	}
	if v := os.Getenv("MPESA_CONSUMER_SECRET"); v != "" {
		c.Mpesa.ConsumerSecret = v
	}
	if v := os.Getenv("MPESA_SHORTCODE"); v != "" {
		c.Mpesa.ShortCode = v
	}
	if v := os.Getenv("MPESA_PASSKEY"); v != "" {
		c.Mpesa.Passkey = v
	}
	if v := os.Getenv("MPESA_CALLBACK_URL"); v != "" {
		c.Mpesa.CallbackURL = v
	}
	if v := os.Getenv("MPESA_ENVIRONMENT"); v != "" {
		c.Mpesa.Environment = v
	}
	if v := os.Getenv("MPESA_COUNTRY_CODE"); v != "" {
		c.Mpesa.CountryCode = v
	}
	return c
}
