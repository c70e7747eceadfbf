package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	DBURL      string
	LogLevel   string
	DBMaxConns int
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load("config.env")
	return &Config{
		Port:     getenv("APP_PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "INFO"),
		DBURL: fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			getenv("DB_HOST", "localhost"),
			getenv("DB_PORT", "5432"),
			getenv("DB_NAME", "istqrar"),
			getenv("DB_SSLMODE", "disable"),
		),
		DBMaxConns: getenvInt("DB_MAX_CONNS", 8),
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
