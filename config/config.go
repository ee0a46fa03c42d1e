package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
)

// Config is loaded once at process start and never mutated afterwards.
type Config struct {
	HTTP    HTTP
	JWT     JWT
	DBPath  string
	LLM     LLM
	Tavily  Tavily
	SMTP    SMTP
	Speech  Speech
	Fusion  Fusion
	Catalog Catalog
}

type HTTP struct {
	Addr          string
	RatePerMinute int
	BodyLimit     string
}

type JWT struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// LLM holds credentials and transport settings per provider.
type LLM struct {
	GroqAPIKey      string
	GroqBaseURL     string
	TogetherAPIKey  string
	TogetherBaseURL string
	GoogleAPIKey    string
	ProviderTimeout time.Duration
	RequestsPerMin  int
	MaxToolCalls    int
	DefaultSystem   string
	OCRModel        string
}

type Tavily struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Speech struct {
	Enabled      bool
	LanguageCode string
	SampleRate   int
}

type Fusion struct {
	Parallel bool
}

// Load reads a .env file when present and then the process environment.
func Load() (Config, error) {
	_ = gotenv.Load()

	catalog := DefaultCatalog()
	if path := os.Getenv("MODEL_CATALOG_PATH"); path != "" {
		c, err := LoadCatalog(path)
		if err != nil {
			return Config{}, err
		}
		catalog = c
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required in environment")
	}

	return Config{
		HTTP: HTTP{
			Addr:          envOrDefault("HTTP_ADDR", ":8080"),
			RatePerMinute: envIntOrDefault("HTTP_RATE_PER_MINUTE", 20),
			BodyLimit:     envOrDefault("HTTP_BODY_LIMIT", "10MB"),
		},
		JWT: JWT{
			Secret: jwtSecret,
			Expiry: time.Duration(envIntOrDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
			Issuer: envOrDefault("JWT_ISSUER", "white-fusion"),
		},
		DBPath: envOrDefault("DB_PATH", "data/white-fusion.db"),
		LLM: LLM{
			GroqAPIKey:      os.Getenv("GROQ_API_KEY"),
			GroqBaseURL:     envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
			TogetherAPIKey:  os.Getenv("TOGETHER_API_KEY"),
			TogetherBaseURL: envOrDefault("TOGETHER_BASE_URL", "https://api.together.xyz/v1"),
			GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
			ProviderTimeout: time.Duration(envIntOrDefault("LLM_PROVIDER_TIMEOUT_SECONDS", 60)) * time.Second,
			RequestsPerMin:  envIntOrDefault("LLM_REQUESTS_PER_MINUTE", 0),
			MaxToolCalls:    envIntOrDefault("LLM_MAX_TOOL_CALLS", 5),
			DefaultSystem:   envOrDefault("LLM_DEFAULT_SYSTEM_PROMPT", "Act as AI chatbot who is smart and friendly"),
			OCRModel:        envOrDefault("OCR_MODEL", "gemini-2.0-flash"),
		},
		Tavily: Tavily{
			APIKey:  os.Getenv("TAVILY_API_KEY"),
			BaseURL: envOrDefault("TAVILY_BASE_URL", "https://api.tavily.com"),
			Timeout: time.Duration(envIntOrDefault("TAVILY_TIMEOUT_SECONDS", 20)) * time.Second,
		},
		SMTP: SMTP{
			Host:     envOrDefault("SMTP_HOST", "smtp.gmail.com"),
			Port:     envIntOrDefault("SMTP_PORT", 465),
			Username: os.Getenv("EMAIL"),
			Password: os.Getenv("PASSWORD"),
			From:     envOrDefault("SMTP_FROM", os.Getenv("EMAIL")),
		},
		Speech: Speech{
			Enabled:      envBoolOrDefault("GOOGLE_SPEECH_ENABLED", false),
			LanguageCode: envOrDefault("SPEECH_LANGUAGE_CODE", "en-US"),
			SampleRate:   envIntOrDefault("SPEECH_SAMPLE_RATE", 16000),
		},
		Fusion: Fusion{
			Parallel: envBoolOrDefault("FUSION_PARALLEL", true),
		},
		Catalog: catalog,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOrDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "1" || strings.EqualFold(v, "true")
}
