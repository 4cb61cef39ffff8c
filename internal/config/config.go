package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuracion del servicio.
// DATABASE_URL y REDIS_ADDR son opcionales: sin ellos el servicio corre
// en modo demo con datos CSV y limitador en memoria.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	DataDir     string `env:"DATA_DIR" envDefault:"data"`

	LLMAPIKey      string        `env:"LLM_API_KEY"`
	LLMBaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"gpt-5.1"`
	EmbeddingModel string        `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`

	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"30"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"10m"`

	SessionMaxMessages int           `env:"SESSION_MAX_MESSAGES" envDefault:"50"`
	SessionIdleTTL     time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`

	MaxInputLen     int      `env:"MAX_INPUT_LEN" envDefault:"2000"`
	OffTopicBlock   bool     `env:"OFFTOPIC_BLOCK_ENABLED" envDefault:"true"`
	InjectionExtra  []string `env:"INJECTION_PATTERNS" envSeparator:"|"`
	OffTopicExtra   []string `env:"OFF_TOPIC_KEYWORDS" envSeparator:","`
	AccountKeywords []string `env:"ACCOUNT_KEYWORDS" envSeparator:","`
	HighRiskExtra   []string `env:"HIGH_RISK_KEYWORDS" envSeparator:","`

	DemoUserID string `env:"DEMO_USER_ID" envDefault:"user_101"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	SupportEmail string `env:"SUPPORT_EMAIL"`
}

// LoadConfig carga la configuracion desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
