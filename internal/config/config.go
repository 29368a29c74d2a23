package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string
}

func Load() *Config {
	// .env 有就讀，沒有也無所謂（production 直接吃環境變數）
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseDSN: getEnv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=ledger port=5432 sslmode=disable"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET 未設定，production 必填")
	}
	if len(cfg.JWTSecret) < 32 {
		logrus.Fatal("JWT_SECRET 長度至少 32 字元")
	}
	if cfg.DatabaseDSN == "host=localhost user=postgres password=postgres dbname=ledger port=5432 sslmode=disable" {
		logrus.Warn("DATABASE_DSN 使用預設值，請在 production 設定自己的連線字串")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
