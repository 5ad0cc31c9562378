package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"MAX_QUESTION_ATTEMPTS", "DEFAULT_TIME_SPENT", "RABBITMQ_URL", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	if cfg.Grading.MaxQuestionAttempts != 3 {
		t.Errorf("MaxQuestionAttempts = %d, want 3 (invalid value falls back)", cfg.Grading.MaxQuestionAttempts)
	}
	if cfg.Grading.DefaultTimeSpent != 90 {
		t.Errorf("DefaultTimeSpent = %d, want 90", cfg.Grading.DefaultTimeSpent)
	}
	if cfg.RabbitMQ.URL != "" {
		t.Errorf("RabbitMQ.URL = %q, want empty", cfg.RabbitMQ.URL)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("CORSOrigins = %v, want [*]", cfg.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_QUESTION_ATTEMPTS", "5")
	t.Setenv("EVALUATION_CACHE_TTL", "90m")
	t.Setenv("MOCK_RECOMMENDER", "true")
	t.Setenv("CORS_ORIGINS", "https://lms.example.org, https://studio.example.org")

	cfg := Load()
	if cfg.Grading.MaxQuestionAttempts != 5 {
		t.Errorf("MaxQuestionAttempts = %d, want 5", cfg.Grading.MaxQuestionAttempts)
	}
	if cfg.Redis.EvaluationTTL != 90*time.Minute {
		t.Errorf("EvaluationTTL = %v, want 90m", cfg.Redis.EvaluationTTL)
	}
	if !cfg.LLM.Mock {
		t.Error("LLM.Mock = false, want true")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://studio.example.org" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Grading: GradingConfig{MaxQuestionAttempts: 3}}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil without JWT secret")
	}
	cfg.Auth.JWTSecret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	cfg.Grading.MaxQuestionAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil with zero attempts")
	}
}

func TestPostgresDSN(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=n sslmode=disable"
	if got := c.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
