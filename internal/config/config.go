package config

import (
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// Config holds everything the server needs at startup.  Secrets and DB
// credentials are required; timing knobs fall back to sane defaults.
type Config struct {
	Env  string
	Port string

	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	JWTSecret      string
	AccessTTLMin   int // access token lifetime, minutes
	RefreshTTLDays int // refresh token lifetime, days
	ResetTTLMin    int // password reset token lifetime, minutes
	BcryptCost     int
}

// Load reads configuration from the environment.  Missing required
// variables abort startup; a server without a JWT secret or a database is
// not worth booting.
func Load() Config {
	cfg := Config{
		Env:            envStr("APP_ENV", "development"),
		Port:           envStr("PORT", "8080"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         envStr("DB_HOST", "127.0.0.1"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		ResetTTLMin:    envInt("RESET_TOKEN_TTL_MIN", 30),
		BcryptCost:     envInt("BCRYPT_COST", bcrypt.DefaultCost),
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return cfg
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("config: required environment variable %s is not set", k)
	}
	return v
}
