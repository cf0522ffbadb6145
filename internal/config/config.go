package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ADMSConfig ADMS对接配置（系统状态/检修窗口查询）
type ADMSConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// Config 分析服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	ADMS     ADMSConfig

	HTTP struct {
		Addr string // 监听地址，如 ":8086"
	}

	// 分组引擎配置
	Grouping struct {
		WindowMinutes int // 自动分组时间窗口（分钟），默认 10
	}

	// 检测引擎配置
	Detection struct {
		RecentEventsWindowHours int // 上下文事件取数窗口（小时），默认 1
	}

	// Redis 缓存配置
	Cache struct {
		RecentKeyPrefix string // 近期事件缓存键前缀，如 "pqmap:substation:"
		RecentSuffix    string // 近期事件缓存键后缀，如 ":recent"
		RecentTTL       int    // 近期事件 TTL（秒），默认 60
		RulesKey        string // 活跃规则快照缓存键
		RulesTTL        int    // 规则快照 TTL（秒），默认 300
		AnnotationPrefix string // 标注结果缓存键前缀
		AnnotationTTL    int    // 标注结果 TTL（秒），默认 30
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量，带默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "pqmap")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.ADMS.BaseURL = getEnv("ADMS_BASE_URL", "")
	cfg.ADMS.APIKey = getEnv("ADMS_API_KEY", "")
	cfg.ADMS.Timeout = time.Duration(getEnvInt("ADMS_TIMEOUT_SEC", 5)) * time.Second
	cfg.ADMS.RetryCount = getEnvInt("ADMS_RETRY_COUNT", 2)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8086")

	cfg.Grouping.WindowMinutes = getEnvInt("GROUPING_WINDOW_MINUTES", 10)
	cfg.Detection.RecentEventsWindowHours = getEnvInt("DETECTION_RECENT_WINDOW_HOURS", 1)

	cfg.Cache.RecentKeyPrefix = getEnv("CACHE_RECENT_PREFIX", "pqmap:substation:")
	cfg.Cache.RecentSuffix = ":recent"
	cfg.Cache.RecentTTL = getEnvInt("CACHE_RECENT_TTL", 60)
	cfg.Cache.RulesKey = getEnv("CACHE_RULES_KEY", "pqmap:rules:active")
	cfg.Cache.RulesTTL = getEnvInt("CACHE_RULES_TTL", 300)
	cfg.Cache.AnnotationPrefix = getEnv("CACHE_ANNOTATION_PREFIX", "pqmap:annotation:")
	cfg.Cache.AnnotationTTL = getEnvInt("CACHE_ANNOTATION_TTL", 30)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Grouping.WindowMinutes <= 0 {
		return nil, fmt.Errorf("GROUPING_WINDOW_MINUTES must be positive, got %d", cfg.Grouping.WindowMinutes)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
