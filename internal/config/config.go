package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	Match struct {
		// Threshold задаёт порог уверенности T ∈ [0,1]. При score ≥ T отдаётся ответ FAQ, иначе эскалация.
		Threshold      float64
		SummaryMaxLen  int
		// CandidateLimit ограничивает кандидатов (первые по id) и для голосового запроса, и для GET /faq?q=.
		CandidateLimit int
	}

	Notify struct {
		PreviewLen int
		LogSize    int
	}

	Embedding struct {
		APIKey     string
		BaseURL    string
		Model      string
		Dimensions int
	}

	Admin struct {
		Email         string
		Password      string
		SessionSecret string
		SessionTTL    time.Duration
	}

	// KafkaBrokers и KafkaTopicTicket, если заданы, события тикетов и сообщений уходят в Kafka.
	KafkaBrokers     []string
	KafkaTopicTicket string

	Redis struct {
		Addr     string
		Password string
	}
	IdempotencyTTL time.Duration

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:          getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:         firstEnv("APP_PORT", "HTTP_PORT", "8098"),
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		KafkaBrokers:     ParseList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicTicket: getEnv("KAFKA_TOPIC_TICKET", "voice-support.tickets"),
	}

	var err error
	if cfg.Match.Threshold, err = getFloat("MATCH_THRESHOLD", 0.65); err != nil {
		return nil, err
	}
	if cfg.Match.SummaryMaxLen, err = getInt("SUMMARY_MAX_LENGTH", 200); err != nil {
		return nil, err
	}
	if cfg.Match.CandidateLimit, err = getInt("FAQ_CANDIDATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.Notify.PreviewLen, err = getInt("NOTIFICATION_PREVIEW_LENGTH", 100); err != nil {
		return nil, err
	}
	if cfg.Notify.LogSize, err = getInt("NOTIFICATION_LOG_SIZE", 50); err != nil {
		return nil, err
	}

	cfg.Embedding.APIKey = getEnv("OPENAI_API_KEY", "")
	cfg.Embedding.BaseURL = getEnv("OPENAI_BASE_URL", "")
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", "text-embedding-3-small")
	if cfg.Embedding.Dimensions, err = getInt("EMBEDDING_DIMENSIONS", 1536); err != nil {
		return nil, err
	}

	cfg.Admin.Email = getEnv("ADMIN_EMAIL", "admin@company.com")
	cfg.Admin.Password = getEnv("ADMIN_PASSWORD", "admin123")
	cfg.Admin.SessionSecret = getEnv("SESSION_SECRET", "")
	if cfg.Admin.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "voice_support")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DB.Host == "" || c.DB.Database == "" {
		return errors.New("config: DB_HOST and DB_DATABASE are required")
	}
	if c.AppEnv == "production" && c.DB.Password == "" {
		return errors.New("config: in production DB_PASSWORD is required")
	}
	if c.Match.Threshold < 0 || c.Match.Threshold > 1 {
		return fmt.Errorf("config: MATCH_THRESHOLD must be within [0,1], got %v", c.Match.Threshold)
	}
	if c.Match.SummaryMaxLen <= 0 {
		return errors.New("config: SUMMARY_MAX_LENGTH must be positive")
	}
	if c.Match.CandidateLimit <= 0 {
		return errors.New("config: FAQ_CANDIDATE_LIMIT must be positive")
	}
	if c.Notify.PreviewLen <= 0 || c.Notify.LogSize <= 0 {
		return errors.New("config: NOTIFICATION_PREVIEW_LENGTH and NOTIFICATION_LOG_SIZE must be positive")
	}
	if c.Embedding.Dimensions <= 0 {
		return errors.New("config: EMBEDDING_DIMENSIONS must be positive")
	}
	if c.AppEnv == "production" && c.Admin.SessionSecret == "" {
		return errors.New("config: in production SESSION_SECRET is required")
	}
	return nil
}

// SessionSecret возвращает ключ подписи сессий; вне production допускается дефолт.
func (c *Config) SessionSecret() []byte {
	if c.Admin.SessionSecret != "" {
		return []byte(c.Admin.SessionSecret)
	}
	return []byte("voice-support-dev-secret")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

// ParseList разбивает строку "host1:9092,host2:9092" на слайс.
func ParseList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
