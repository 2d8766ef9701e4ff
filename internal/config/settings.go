package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// AI providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Settings is the process configuration, read from the environment.
type Settings struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":3000"`

	StoreBackend  string `env:"STORE_BACKEND" envDefault:"file"`
	DataDir       string `env:"DATA_DIR" envDefault:"data"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"pipeassist"`

	ArtifactsDir          string        `env:"ARTIFACTS_DIR" envDefault:"pipeline_artifacts"`
	CredentialsDir        string        `env:"CREDENTIALS_DIR" envDefault:"."`
	SharedCredentialsPath string        `env:"SHARED_CREDENTIALS_PATH" envDefault:"credentials.json"`
	PythonExecutable      string        `env:"PYTHON_EXECUTABLE" envDefault:"python3"`
	ScriptTimeout         time.Duration `env:"SCRIPT_TIMEOUT" envDefault:"30m"`
	SheetsRatePerMinute   int           `env:"SHEETS_RATE_PER_MINUTE" envDefault:"60"`

	AIProvider   string `env:"AI_PROVIDER" envDefault:"openai"`
	APIKey       string `env:"API_KEY"`
	APIBase      string `env:"API_BASE" envDefault:"https://ai-gateway.uni-paderborn.de/v1/"`
	APIChatModel string `env:"API_CHAT_MODEL" envDefault:"gwdg.llama-3.3-70b-instruct"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile   string `env:"LOG_FILE"`

	SchedulerEnabled bool `env:"SCHEDULER_ENABLED" envDefault:"true"`
}

// LoadSettings reads an optional .env file, then parses the environment.
// A missing .env file is not an error.
func LoadSettings(envFiles ...string) (*Settings, error) {
	_ = godotenv.Load(envFiles...)

	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	s.StoreBackend = strings.ToLower(strings.TrimSpace(s.StoreBackend))
	s.AIProvider = strings.ToLower(strings.TrimSpace(s.AIProvider))
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks enum values and required companions.
func (s *Settings) Validate() error {
	var errs []error
	switch s.StoreBackend {
	case BackendFile, BackendMemory:
	case BackendPostgres:
		if s.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_BACKEND=postgres"))
		}
	case BackendRedis:
		if s.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when STORE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_BACKEND %q (want file, postgres, redis or memory)", s.StoreBackend))
	}
	switch s.AIProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unsupported AI_PROVIDER %q (want openai or gemini)", s.AIProvider))
	}
	if s.ScriptTimeout <= 0 {
		errs = append(errs, errors.New("SCRIPT_TIMEOUT must be positive"))
	}
	if s.SheetsRatePerMinute <= 0 {
		errs = append(errs, errors.New("SHEETS_RATE_PER_MINUTE must be positive"))
	}
	return errors.Join(errs...)
}
