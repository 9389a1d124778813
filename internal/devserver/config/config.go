// Package config loads devserver configuration from environment variables,
// with an optional .env file overlay.
package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings for the development backend.
type Config struct {
	Addr string

	// Token endpoint + bearer middleware. An empty ClientSecret accepts
	// any secret, which keeps the out-of-the-box client working.
	JWTSecret    string
	ClientID     string
	ClientSecret string
	Audience     string
	TokenTTL     time.Duration

	// Empty DSN selects the in-memory time store.
	DatabaseDSN string

	// S3-compatible object storage (MinIO locally).
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	PresignTTL  time.Duration

	// How long the simulated worker takes to blur an uploaded volume.
	BlurDelay time.Duration
}

// Load reads configuration from a .env file (if present) and the environment.
// NOTE: the defaults are insecure development values.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	return &Config{
		Addr:         getEnv("ADDR", ":4000"),
		JWTSecret:    getEnv("JWT_SECRET", "dev-secret"),
		ClientID:     getEnv("AUTH_CLIENT_ID", "scanblur-client"),
		ClientSecret: getEnv("AUTH_CLIENT_SECRET", ""),
		Audience:     getEnv("AUTH_AUDIENCE", "scanblur-backend"),
		TokenTTL:     getDuration("TOKEN_TTL", 15*time.Minute),
		DatabaseDSN:  getEnv("DATABASE_DSN", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", "http://127.0.0.1:9000/"),
		S3Region:     getEnv("S3_REGION", "us-east-1"),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", "admin"),
		S3SecretKey:  getEnv("S3_SECRET_KEY", "secretpassword"),
		S3Bucket:     getEnv("S3_BUCKET", "volumes"),
		PresignTTL:   getDuration("PRESIGN_TTL", 15*time.Minute),
		BlurDelay:    getDuration("BLUR_DELAY", 2*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
