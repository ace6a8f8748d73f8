package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	DatabaseURL string

	ServerPort string
	Env        string

	JWTSecret     string
	TokenMaxAge   time.Duration
	BcryptCost    int
	AllowedOrigin string

	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Bucket          string

	SnowflakeNode int64

	SweepInterval time.Duration
	StagedTTL     time.Duration
}

// IsProduction gates detailed error text in HTTP responses.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	bcryptCost, err := strconv.Atoi(os.Getenv("BCRYPT_COST"))
	if err != nil || bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	tokenMaxAge := durationFromEnv("TOKEN_MAX_AGE", 24*time.Hour)
	sweepInterval := durationFromEnv("SWEEP_INTERVAL", 10*time.Minute)
	stagedTTL := durationFromEnv("STAGED_TTL", time.Hour)

	snowflakeNode, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64)
	if err != nil {
		snowflakeNode = 1
	}

	allowedOrigin := os.Getenv("ALLOWED_ORIGIN")
	if allowedOrigin == "" {
		allowedOrigin = "http://localhost:3000"
	}

	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),

		ServerPort: serverPort,
		Env:        os.Getenv("ENV"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenMaxAge:   tokenMaxAge,
		BcryptCost:    bcryptCost,
		AllowedOrigin: allowedOrigin,

		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3Bucket:          os.Getenv("S3_BUCKET"),

		SnowflakeNode: snowflakeNode,

		SweepInterval: sweepInterval,
		StagedTTL:     stagedTTL,
	}, nil
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
