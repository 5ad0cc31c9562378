package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Postgres PostgresConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Grading  GradingConfig

	CORSOrigins []string
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN renders the lib/pq keyword/value connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type MongoConfig struct {
	URI                       string
	Database                  string
	QuestionCollection        string
	LearningHistoryCollection string
	Timeout                   time.Duration
}

type RedisConfig struct {
	Address       string
	Password      string
	DB            int
	EvaluationTTL time.Duration
}

// RabbitMQConfig is optional; an empty URL runs side effects in-process.
type RabbitMQConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	APIKey string
	Model  string
	Mock   bool
}

type GradingConfig struct {
	MaxQuestionAttempts int
	DefaultTimeSpent    int
	SideEffectTimeout   time.Duration
}

func Load() *Config {
	// .env is optional
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),
		Postgres: PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "edu_vault"),
			Password: getEnv("DB_PASSWORD", "edu_vault"),
			Name:     getEnv("DB_NAME", "edu_vault"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Mongo: MongoConfig{
			URI:                       getEnv("MONGO_URL", "mongodb://localhost:27017"),
			Database:                  getEnv("MONGO_DATABASE", "edu_vault"),
			QuestionCollection:        getEnv("QUESTION_COLLECTION", "questions"),
			LearningHistoryCollection: getEnv("LEARNING_HISTORY_COLLECTION", "learning_history"),
			Timeout:                   getEnvAsDuration("MONGO_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Address:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			EvaluationTTL: getEnvAsDuration("EVALUATION_CACHE_TTL", 24*time.Hour),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("SIDE_EFFECT_EXCHANGE", "grading.events"),
			Queue:    getEnv("SIDE_EFFECT_QUEUE", "grading-side-effects"),
			Prefetch: getEnvAsInt("SIDE_EFFECT_PREFETCH", 10),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			APIKey: getEnv("ANTHROPIC_API_KEY", ""),
			Model:  getEnv("ANTHROPIC_MODEL", ""),
			Mock:   getEnvAsBool("MOCK_RECOMMENDER", false),
		},
		Grading: GradingConfig{
			MaxQuestionAttempts: getEnvAsInt("MAX_QUESTION_ATTEMPTS", 3),
			DefaultTimeSpent:    getEnvAsInt("DEFAULT_TIME_SPENT", 90),
			SideEffectTimeout:   getEnvAsDuration("SIDE_EFFECT_TIMEOUT", time.Minute),
		},
		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Grading.MaxQuestionAttempts < 1 {
		return fmt.Errorf("MAX_QUESTION_ATTEMPTS must be at least 1, got %d", c.Grading.MaxQuestionAttempts)
	}
	if c.Grading.DefaultTimeSpent < 0 {
		return fmt.Errorf("DEFAULT_TIME_SPENT must not be negative, got %d", c.Grading.DefaultTimeSpent)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("[config] invalid int for %s: %v", key, err)
			return fallback
		}
		return n
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("[config] invalid bool for %s: %v", key, err)
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("[config] invalid duration for %s: %v", key, err)
			return fallback
		}
		return d
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
