package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Redis    RedisConfig
	DB       DBConfig
	Telebirr TelebirrConfig
	CBEBirr  CBEBirrConfig
	Chapa    ChapaConfig
}

type AppConfig struct {
	Port      string
	BaseURL   string
	JWTSecret string
	JWTTTL    time.Duration
	Debug     bool
}

type DBConfig struct {
	DSN string
}

type TelebirrConfig struct {
	BaseURL   string
	ShortCode string
	SecretKey string
}

type CBEBirrConfig struct {
	BaseURL    string
	MerchantID string
	TerminalID string
	APIKey     string
}

type ChapaConfig struct {
	BaseURL   string
	SecretKey string
	PublicKey string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtTTLHours, _ := strconv.Atoi(getEnv("JWT_TTL_HOURS", "24"))

	return Config{
		App: AppConfig{
			Port:      getEnv("APP_PORT", "8080"),
			BaseURL:   getEnv("APP_BASE_URL", "http://localhost:8080"),
			JWTSecret: getEnv("JWT_SECRET", "insecure-dev-secret"),
			JWTTTL:    time.Duration(jwtTTLHours) * time.Hour,
			Debug:     getEnv("APP_DEBUG", "false") == "true",
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		DB: DBConfig{
			DSN: getEnv("POS_DSN", ""),
		},
		Telebirr: TelebirrConfig{
			BaseURL:   getEnv("TELEBIRR_BASE_URL", "https://api.telebirr.com/v1"),
			ShortCode: getEnv("TELEBIRR_SHORT_CODE", ""),
			SecretKey: getEnv("TELEBIRR_SECRET_KEY", ""),
		},
		CBEBirr: CBEBirrConfig{
			BaseURL:    getEnv("CBE_BIRR_BASE_URL", "https://api.cbe.com.et/birr/v1"),
			MerchantID: getEnv("CBE_BIRR_MERCHANT_ID", ""),
			TerminalID: getEnv("CBE_BIRR_TERMINAL_ID", ""),
			APIKey:     getEnv("CBE_BIRR_API_KEY", ""),
		},
		Chapa: ChapaConfig{
			BaseURL:   getEnv("CHAPA_BASE_URL", "https://api.chapa.co/v1"),
			SecretKey: getEnv("CHAPA_SECRET_KEY", ""),
			PublicKey: getEnv("CHAPA_PUBLIC_KEY", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
