package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/Skotchmaster/bookly/internal/models"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	ENVIRONMENT          string
	DB_URI               string
	DB_NAME              string
	SECRET_KEY           string
	ACCESS_TOKEN_MINUTES int
	REDIS_HOST           string
	REDIS_PORT           string
	KAFKA_ADDRESS        string
	ES_URL               string
	ES_USER              string
	ES_PASSWORD          string
	MAIL_USERNAME        string
	MAIL_PASSWORD        string
	MAIL_FROM            string
	MAIL_PORT            string
	MAIL_SERVER          string
	MAIL_FROM_NAME       string
	DOMAIN_NAME          string
	PORT                 string
}

// Prefix maps the ENVIRONMENT value to the env variable prefix,
// so one .env file can carry dev, TEST_ and PROD_ settings side by side.
func Prefix(environment string) string {
	switch strings.ToLower(environment) {
	case "prod":
		return "PROD_"
	case "test":
		return "TEST_"
	default:
		return ""
	}
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	environment := os.Getenv("ENVIRONMENT")
	prefix := Prefix(environment)

	get := func(key string) string {
		return os.Getenv(prefix + key)
	}

	config := &Config{
		ENVIRONMENT:          environment,
		DB_URI:               get("DB_URI"),
		DB_NAME:              get("DB_NAME"),
		SECRET_KEY:           get("SECRET_KEY"),
		ACCESS_TOKEN_MINUTES: getInt(prefix+"ACCESS_TOKEN_EXPIRE_MINUTES", 60),
		REDIS_HOST:           get("REDIS_HOST"),
		REDIS_PORT:           get("REDIS_PORT"),
		KAFKA_ADDRESS:        get("KAFKA_ADDRESS"),
		ES_URL:               get("ES_URL"),
		ES_USER:              get("ES_USER"),
		ES_PASSWORD:          get("ES_PASSWORD"),
		MAIL_USERNAME:        get("MAIL_USERNAME"),
		MAIL_PASSWORD:        get("MAIL_PASSWORD"),
		MAIL_FROM:            get("MAIL_FROM"),
		MAIL_PORT:            get("MAIL_PORT"),
		MAIL_SERVER:          get("MAIL_SERVER"),
		MAIL_FROM_NAME:       get("MAIL_FROM_NAME"),
		DOMAIN_NAME:          get("DOMAIN_NAME"),
		PORT:                 get("PORT"),
	}

	if config.SECRET_KEY == "" {
		return nil, fmt.Errorf("%sSECRET_KEY is required", prefix)
	}

	return config, nil
}

func (c *Config) RedisAddr() string {
	return c.REDIS_HOST + ":" + c.REDIS_PORT
}

func getInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid value %q for %s, using default %d", raw, key, def)
		return def
	}
	return v
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB_URI), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Book{}); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return db, nil
}
