package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Market   MarketConfig
	AI       AIConfig
	Engine   EngineConfig
	Schedule ScheduleConfig
	Admin    AdminConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// KafkaConfig holds Kafka/Redpanda configuration
type KafkaConfig struct {
	Brokers      []string
	ReportsTopic string
}

// MarketConfig holds market-data source configuration
type MarketConfig struct {
	BaseURL   string
	CallDelay time.Duration // fixed delay between upstream calls (rate politeness)
	PriceTTL  time.Duration // redis price cache TTL
}

// AIConfig holds the LLM advisor configuration
type AIConfig struct {
	APIKey    string
	NewsModel string
	PickModel string
}

// EngineConfig holds the rebalancing engine tunables. Defaults are the
// product's fixed constants; they are surfaced here rather than hard-coded
// so deployments can tighten or loosen them.
type EngineConfig struct {
	MaxPositions   int
	StopLossPct    float64 // force exit at or below this ROI
	RSIBuyAbove    float64 // exclusive
	RSISellBelow   float64 // exclusive
	MinVolumeLots  int64
	MinHistoryBars int
}

// ScheduleConfig holds cron scheduling configuration
type ScheduleConfig struct {
	DailyCron  string // with seconds field
	RunOnStart bool
}

// AdminConfig holds protected-operation credentials
type AdminConfig struct {
	Token string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "postgres"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "advisor"),
			Password: getEnv("DB_PASSWORD", "advisor"),
			DBName:   getEnv("DB_NAME", "aistock"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		Kafka: KafkaConfig{
			Brokers:      parseBrokers(getEnv("KAFKA_BROKERS", "localhost:19092")),
			ReportsTopic: getEnv("KAFKA_REPORTS_TOPIC", "portfolio.reports"),
		},
		Market: MarketConfig{
			BaseURL:   getEnv("MARKET_BASE_URL", "https://query1.finance.yahoo.com"),
			CallDelay: getDuration("MARKET_CALL_DELAY", 1100*time.Millisecond),
			PriceTTL:  getDuration("MARKET_PRICE_TTL", 5*time.Minute),
		},
		AI: AIConfig{
			APIKey:    getEnv("GEMINI_API_KEY", ""),
			NewsModel: getEnv("AI_NEWS_MODEL", "gemini-2.5-flash"),
			PickModel: getEnv("AI_PICK_MODEL", "gemini-2.5-flash"),
		},
		Engine: EngineConfig{
			MaxPositions:   getInt("ENGINE_MAX_POSITIONS", 5),
			StopLossPct:    getFloat("ENGINE_STOP_LOSS_PCT", -10),
			RSIBuyAbove:    getFloat("ENGINE_RSI_BUY_ABOVE", 55),
			RSISellBelow:   getFloat("ENGINE_RSI_SELL_BELOW", 45),
			MinVolumeLots:  int64(getInt("ENGINE_MIN_VOLUME_LOTS", 1000)),
			MinHistoryBars: getInt("ENGINE_MIN_HISTORY_BARS", 60),
		},
		Schedule: ScheduleConfig{
			DailyCron:  getEnv("SCHEDULE_DAILY_CRON", "0 30 17 * * 1-5"),
			RunOnStart: getEnv("RUN_ON_START", "") == "true",
		},
		Admin: AdminConfig{
			Token: getEnv("ADMIN_TOKEN", ""),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns the Redis address in host:port format
func (r *RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// parseBrokers splits a comma-separated broker list
func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
