package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MySQLConfig 定义了 MySQL 数据库的连接配置，用于保存扫描历史。
type MySQLConfig struct {
	Enabled         bool   `yaml:"enabled"`         // 是否启用 MySQL 扫描历史
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置，用于归档内容快照。
type MinIOConfig struct {
	Enabled   bool   `yaml:"enabled"`   // 是否启用快照归档
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 默认存储桶名称
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address    string `yaml:"address"`    // MongoDB 服务器地址
	Username   string `yaml:"username"`   // 用户名
	Password   string `yaml:"password"`   // 密码
	Database   string `yaml:"database"`   // 数据库名称
	Collection string `yaml:"collection"` // 内容缓存集合名称
	Retention  string `yaml:"retention"`  // updatedAt 上 TTL 索引的保留时长，例如 "720h"
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`      // 是否通过 Kafka 分发刷新请求
	Brokers      []string `yaml:"brokers"`      // Kafka Broker 地址列表
	TriggerTopic string   `yaml:"triggerTopic"` // 刷新触发主题
	GroupID      string   `yaml:"groupID"`      // 消费者组 ID
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Redis   RedisConfig `yaml:"redis"`   // Redis 数据库配置
	MySQL   MySQLConfig `yaml:"mysql"`   // MySQL 数据库配置
	MinIO   MinIOConfig `yaml:"minio"`   // MinIO 对象存储配置
	MongoDB MongoConfig `yaml:"mongodb"` // MongoDB 数据库配置
	Kafka   KafkaConfig `yaml:"kafka"`   // Kafka 消息队列配置
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// ServerConfig 定义了 HTTP 服务的监听配置。
type ServerConfig struct {
	Address string `yaml:"address"` // 监听地址，例如 ":8080"
}

// AuthConfig 用于配置刷新接口的鉴权。
type AuthConfig struct {
	JwtSecret string `yaml:"jwtSecret"` // HS256 密钥，为空时不校验
}

// ProviderConfig 定义了单个内容提供方。列表顺序即级联优先级。
type ProviderConfig struct {
	Name       string  `yaml:"name"`       // 提供方名称，出现在缓存记录的 provider 字段
	Kind       string  `yaml:"kind"`       // perplexity | gemini | openai | ollama | huggingface
	Model      string  `yaml:"model"`      // 模型名称
	APIKey     string  `yaml:"apiKey"`     // 直接配置的密钥
	APIKeyEnv  string  `yaml:"apiKeyEnv"`  // 从环境变量读取密钥
	BaseURL    string  `yaml:"baseURL"`    // 自定义服务地址
	Policy     string  `yaml:"policy"`     // soft | hard
	Timeout    string  `yaml:"timeout"`    // 单次调用超时，例如 "20s"
	Confidence float64 `yaml:"confidence"` // 响应中没有置信度时使用的默认值
	Enabled    *bool   `yaml:"enabled"`    // 缺省视为启用
}

// IsEnabled 返回提供方是否启用。
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// TimeoutDuration 解析单次调用超时。
func (p ProviderConfig) TimeoutDuration() time.Duration {
	return parseDuration(p.Timeout, 20*time.Second)
}

// ScheduleConfig 定义了每日定时扫描。
type ScheduleConfig struct {
	Enabled    bool   `yaml:"enabled"`    // 是否启用定时扫描
	RunAt      string `yaml:"runAt"`      // UTC 时间 "HH:MM"
	RunOnStart bool   `yaml:"runOnStart"` // 启动后立即执行一次
}

// LRUConfig 定义了存储前的进程内读缓存。
type LRUConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Capacity int    `yaml:"capacity"`
	TTL      string `yaml:"ttl"`
}

// AggregatorConfig 定义了内容聚合的核心参数。
type AggregatorConfig struct {
	CacheTTL     string         `yaml:"cacheTTL"`     // 缓存槽位有效期，默认 "24h"
	SweepTimeout string         `yaml:"sweepTimeout"` // 整次扫描的截止时间
	Concurrency  int            `yaml:"concurrency"`  // 同时刷新的键数量
	Store        string         `yaml:"store"`        // mongo | sqlite | memory
	SQLitePath   string         `yaml:"sqlitePath"`   // sqlite 存储文件路径
	LRU          LRUConfig      `yaml:"lru"`
	Schedule     ScheduleConfig `yaml:"schedule"`
}

// RegistryConfig 定义了在线连接注册表。
type RegistryConfig struct {
	Backend       string `yaml:"backend"`       // redis | memory
	ConnectionTTL string `yaml:"connectionTTL"` // 连接注册的有效期，默认 "2h"
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了限流器的配置。
type RateLimiterConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Algorithm   string            `yaml:"algorithm"` // 支持: "fixedWindow", "tokenBucket"
	FixedWindow FixedWindowConfig `yaml:"fixedWindow"`
	TokenBucket TokenBucketConfig `yaml:"tokenBucket"`
}

// FixedWindowConfig 定义了固定窗口计数器算法的配置。
type FixedWindowConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // 例如: "1m", "30s"
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`        // 应用程序信息
	Server     ServerConfig     `yaml:"server"`     // HTTP 服务配置
	Auth       AuthConfig       `yaml:"auth"`       // 鉴权配置
	Logger     LoggerConfig     `yaml:"logger"`     // 日志记录器配置
	Providers  []ProviderConfig `yaml:"providers"`  // 级联提供方，按优先级排列
	Aggregator AggregatorConfig `yaml:"aggregator"` // 聚合参数
	Registry   RegistryConfig   `yaml:"registry"`   // 连接注册表
	Databases  DatabaseConfigs  `yaml:"databases"`  // 数据库配置
	Middleware MiddlewareConfig `yaml:"middleware"` // 中间件配置
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件，并填充默认值。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	return Parse(yamlFile)
}

// Parse 解析 YAML 内容并填充默认值。
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults 为缺省字段填充默认值。
func (c *AppConfig) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "techpulse"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Aggregator.CacheTTL == "" {
		c.Aggregator.CacheTTL = "24h"
	}
	if c.Aggregator.SweepTimeout == "" {
		c.Aggregator.SweepTimeout = "10m"
	}
	if c.Aggregator.Concurrency <= 0 {
		c.Aggregator.Concurrency = 4
	}
	if c.Aggregator.Store == "" {
		c.Aggregator.Store = "memory"
	}
	if c.Aggregator.SQLitePath == "" {
		c.Aggregator.SQLitePath = "techpulse.db"
	}
	if c.Aggregator.LRU.Capacity <= 0 {
		c.Aggregator.LRU.Capacity = 64
	}
	if c.Aggregator.LRU.TTL == "" {
		c.Aggregator.LRU.TTL = "5m"
	}
	if c.Aggregator.Schedule.RunAt == "" {
		c.Aggregator.Schedule.RunAt = "06:00"
	}
	if c.Registry.Backend == "" {
		c.Registry.Backend = "memory"
	}
	if c.Registry.ConnectionTTL == "" {
		c.Registry.ConnectionTTL = "2h"
	}
	if c.Databases.MongoDB.Collection == "" {
		c.Databases.MongoDB.Collection = "content_cache"
	}
	if c.Databases.MongoDB.Retention == "" {
		c.Databases.MongoDB.Retention = "720h"
	}
	if c.Databases.Kafka.TriggerTopic == "" {
		c.Databases.Kafka.TriggerTopic = "techpulse.refresh"
	}
	if c.Databases.Kafka.GroupID == "" {
		c.Databases.Kafka.GroupID = "techpulse-aggregator"
	}
	if c.Databases.MinIO.Bucket == "" {
		c.Databases.MinIO.Bucket = "techpulse-snapshots"
	}
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Name == "" {
			p.Name = p.Kind
		}
		if p.Policy == "" {
			p.Policy = "soft"
		}
		if p.Timeout == "" {
			p.Timeout = "20s"
		}
		if p.Confidence <= 0 {
			p.Confidence = 0.7
		}
	}
}

// Validate 校验无法通过默认值修复的配置错误。
func (c *AppConfig) Validate() error {
	if c.CacheTTL() <= 0 {
		return fmt.Errorf("aggregator.cacheTTL 必须为正数: %q", c.Aggregator.CacheTTL)
	}
	switch c.Aggregator.Store {
	case "mongo", "sqlite", "memory":
	default:
		return fmt.Errorf("不支持的存储类型: %q", c.Aggregator.Store)
	}
	switch c.Registry.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("不支持的连接注册表类型: %q", c.Registry.Backend)
	}
	if _, _, err := ParseClock(c.Aggregator.Schedule.RunAt); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		switch p.Kind {
		case "perplexity", "gemini", "openai", "ollama", "huggingface":
		default:
			return fmt.Errorf("提供方 %q 的类型不受支持: %q", p.Name, p.Kind)
		}
		switch p.Policy {
		case "soft", "hard":
		default:
			return fmt.Errorf("提供方 %q 的失败策略不受支持: %q", p.Name, p.Policy)
		}
		if seen[p.Name] {
			return fmt.Errorf("提供方名称重复: %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// CacheTTL 返回缓存槽位的有效期。
func (c *AppConfig) CacheTTL() time.Duration {
	return parseDuration(c.Aggregator.CacheTTL, 24*time.Hour)
}

// SweepTimeout 返回整次扫描的截止时长。
func (c *AppConfig) SweepTimeout() time.Duration {
	return parseDuration(c.Aggregator.SweepTimeout, 10*time.Minute)
}

// ConnectionTTL 返回在线连接注册的有效期。
func (c *AppConfig) ConnectionTTL() time.Duration {
	return parseDuration(c.Registry.ConnectionTTL, 2*time.Hour)
}

// ParseClock 解析 "HH:MM" 格式的时刻。
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("无效的时刻 %q，应为 HH:MM: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// ParseDuration 解析时长字符串，失败或为空时返回 fallback。
func ParseDuration(s string, fallback time.Duration) time.Duration {
	return parseDuration(s, fallback)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
