package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dailycode/internal/common/cache"
	"dailycode/internal/common/db"
	"dailycode/internal/common/mq"
	"dailycode/internal/common/storage"
	"dailycode/internal/verify/middleware"
	"dailycode/internal/verify/model"
	"dailycode/internal/verify/reward"
	"dailycode/internal/verify/sandbox"
	"dailycode/internal/verify/sandbox/local"
	"dailycode/internal/verify/sandbox/remote"
	"dailycode/pkg/utils/logger"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8086"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultPistonURL       = "https://emkc.org/api/v2/piston"
	defaultRemoteTimeout   = 15 * time.Second
	defaultStatusTTL       = 24 * time.Hour
	defaultProblemTTL      = 10 * time.Minute
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// DatabaseConfig selects the SQL driver and pool.
type DatabaseConfig struct {
	Driver             string        `yaml:"driver"`
	DSN                string        `yaml:"dsn"`
	MaxOpenConnections int           `yaml:"maxOpenConnections"`
	MaxIdleConnections int           `yaml:"maxIdleConnections"`
	ConnMaxLifetime    time.Duration `yaml:"connMaxLifetime"`
	ConnMaxIdleTime    time.Duration `yaml:"connMaxIdleTime"`
	AutoMigrate        bool          `yaml:"autoMigrate"`
}

// KafkaConfig holds Kafka settings.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers"`
	ClientID        string        `yaml:"clientID"`
	BatchSize       int           `yaml:"batchSize"`
	BatchTimeout    time.Duration `yaml:"batchTimeout"`
	DialTimeout     time.Duration `yaml:"dialTimeout"`
	RequiredAcks    int           `yaml:"requiredAcks"`
	Compression     string        `yaml:"compression"`
	JobTopic        string        `yaml:"jobTopic"`
	RetryTopic      string        `yaml:"retryTopic"`
	StatusTopic     string        `yaml:"statusTopic"`
	CompletionTopic string        `yaml:"completionTopic"`
	DeadLetter      string        `yaml:"deadLetterTopic"`
	ConsumerGroup   string        `yaml:"consumerGroup"`
	Concurrency     int           `yaml:"concurrency"`
	MaxRetries      int           `yaml:"maxRetries"`
	RetryDelay      time.Duration `yaml:"retryDelay"`
	MessageTTL      time.Duration `yaml:"messageTTL"`
	PoolRetryMax    int           `yaml:"poolRetryMax"`
	PoolRetryBase   time.Duration `yaml:"poolRetryBaseDelay"`
	PoolRetryMaxD   time.Duration `yaml:"poolRetryMaxDelay"`
}

// MinIOConfig adds the audit switch to the storage settings.
type MinIOConfig struct {
	storage.MinIOConfig `yaml:",inline"`
	AuditEnabled        bool `yaml:"auditEnabled"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	JWTSecret         string `yaml:"jwtSecret"`
	Issuer            string `yaml:"issuer"`
	AllowUserIDHeader bool   `yaml:"allowUserIDHeader"`
}

// RateLimitConfig holds the fixed window for verify routes.
type RateLimitConfig struct {
	Window       time.Duration `yaml:"window"`
	UserMax      int           `yaml:"userMax"`
	IPMax        int           `yaml:"ipMax"`
	RedisTimeout time.Duration `yaml:"redisTimeout"`
}

// WorkerConfig holds async worker settings.
type WorkerConfig struct {
	PoolSize int           `yaml:"poolSize"`
	Timeout  time.Duration `yaml:"timeout"`
	LockTTL  time.Duration `yaml:"lockTTL"`
}

// LocalConfig holds in-process JavaScript settings.
type LocalConfig struct {
	TestTimeout      time.Duration `yaml:"testTimeout"`
	LoadTimeout      time.Duration `yaml:"loadTimeout"`
	MaxCallStackSize int           `yaml:"maxCallStackSize"`
}

// RemoteConfig holds execution service settings.
type RemoteConfig struct {
	BaseURL          string        `yaml:"baseURL"`
	Timeout          time.Duration `yaml:"timeout"`
	RunTimeoutMs     int           `yaml:"runTimeoutMs"`
	CompileTimeoutMs int           `yaml:"compileTimeoutMs"`
	MaxOutputBytes   int64         `yaml:"maxOutputBytes"`
}

// LanguageConfig overrides or adds one routing entry.
type LanguageConfig struct {
	ID       string `yaml:"id"`
	Backend  string `yaml:"backend"`
	Runtime  string `yaml:"runtime"`
	Version  string `yaml:"version"`
	FileName string `yaml:"fileName"`
}

// RewardConfig holds the reward constants.
type RewardConfig struct {
	XPPerProblem      int64         `yaml:"xpPerProblem"`
	StreakBonus       int64         `yaml:"streakBonus"`
	DailyTarget       int           `yaml:"dailyTarget"`
	FreeHintLimit     int           `yaml:"freeHintLimit"`
	Timezone          string        `yaml:"timezone"`
	MaxSourceBytes    int           `yaml:"maxSourceBytes"`
	ExecuteTimeout    time.Duration `yaml:"executeTimeout"`
	SideEffectTimeout time.Duration `yaml:"sideEffectTimeout"`
}

// StatusConfig holds async status persistence settings.
type StatusConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	Timeout time.Duration `yaml:"timeout"`
}

// ProblemCacheConfig holds problem cache-aside settings.
type ProblemCacheConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	EmptyTTL time.Duration `yaml:"emptyTTL"`
}

// AppConfig holds verify-service config.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logger    logger.Config      `yaml:"logger"`
	Database  DatabaseConfig     `yaml:"database"`
	Redis     cache.RedisConfig  `yaml:"redis"`
	Kafka     KafkaConfig        `yaml:"kafka"`
	MinIO     MinIOConfig        `yaml:"minio"`
	Auth      AuthConfig         `yaml:"auth"`
	RateLimit RateLimitConfig    `yaml:"rateLimit"`
	Worker    WorkerConfig       `yaml:"worker"`
	Local     LocalConfig        `yaml:"local"`
	Remote    RemoteConfig       `yaml:"remote"`
	Languages []LanguageConfig   `yaml:"languages"`
	Rewards   RewardConfig       `yaml:"rewards"`
	Status    StatusConfig       `yaml:"status"`
	Problem   ProblemCacheConfig `yaml:"problemCache"`
}

// loadDotEnv loads .env next to the working directory when present.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file failed: %w", err)
	}
	return nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.Auth.JWTSecret == "" && !cfg.Auth.AllowUserIDHeader {
		return nil, fmt.Errorf("auth jwtSecret is required unless allowUserIDHeader is set")
	}
	applyRedisDefaults(&cfg.Redis)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = db.DialectMySQL
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 4
	}
	if cfg.Worker.Timeout == 0 {
		cfg.Worker.Timeout = 2 * time.Minute
	}
	if cfg.Local.TestTimeout == 0 {
		cfg.Local.TestTimeout = 2 * time.Second
	}
	if cfg.Remote.BaseURL == "" {
		cfg.Remote.BaseURL = defaultPistonURL
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = defaultRemoteTimeout
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.UserMax == 0 {
		cfg.RateLimit.UserMax = 30
	}
	if cfg.Status.TTL == 0 {
		cfg.Status.TTL = defaultStatusTTL
	}
	if cfg.Status.Timeout == 0 {
		cfg.Status.Timeout = 2 * time.Second
	}
	if cfg.Problem.TTL == 0 {
		cfg.Problem.TTL = defaultProblemTTL
	}
	if cfg.Problem.EmptyTTL == 0 {
		cfg.Problem.EmptyTTL = 30 * time.Second
	}
	applyRewardDefaults(&cfg.Rewards)
	applyKafkaDefaults(&cfg.Kafka)
	if _, err := cfg.Rewards.policy(); err != nil {
		return nil, err
	}
	if _, err := cfg.registry(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyRewardDefaults(cfg *RewardConfig) {
	if cfg.XPPerProblem == 0 {
		cfg.XPPerProblem = reward.DefaultXPPerProblem
	}
	if cfg.StreakBonus == 0 {
		cfg.StreakBonus = reward.DefaultStreakBonusXP
	}
	if cfg.DailyTarget <= 0 {
		cfg.DailyTarget = reward.DefaultDailyTarget
	}
	if cfg.FreeHintLimit == 0 {
		cfg.FreeHintLimit = reward.DefaultFreeHintsPerDay
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.ExecuteTimeout == 0 {
		cfg.ExecuteTimeout = 30 * time.Second
	}
	if cfg.SideEffectTimeout == 0 {
		cfg.SideEffectTimeout = 5 * time.Second
	}
}

func applyKafkaDefaults(cfg *KafkaConfig) {
	if cfg.JobTopic == "" {
		cfg.JobTopic = "verify.jobs"
	}
	if cfg.RetryTopic == "" {
		cfg.RetryTopic = "verify.retry"
	}
	if cfg.StatusTopic == "" {
		cfg.StatusTopic = "verify.status.final"
	}
	if cfg.CompletionTopic == "" {
		cfg.CompletionTopic = "verify.completion"
	}
	if cfg.DeadLetter == "" {
		cfg.DeadLetter = "verify.dead"
	}
	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = "verify-service"
	}
	if cfg.PoolRetryMax <= 0 {
		cfg.PoolRetryMax = 5
	}
	if cfg.PoolRetryBase == 0 {
		cfg.PoolRetryBase = time.Second
	}
	if cfg.PoolRetryMaxD == 0 {
		cfg.PoolRetryMaxD = 30 * time.Second
	}
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
}

func (d DatabaseConfig) toPoolConfig() db.PoolConfig {
	return db.PoolConfig{
		DSN:                d.DSN,
		MaxOpenConnections: d.MaxOpenConnections,
		MaxIdleConnections: d.MaxIdleConnections,
		ConnMaxLifetime:    d.ConnMaxLifetime,
		ConnMaxIdleTime:    d.ConnMaxIdleTime,
	}
}

func (r RewardConfig) policy() (reward.Policy, error) {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return reward.Policy{}, fmt.Errorf("invalid rewards timezone %q: %w", r.Timezone, err)
	}
	return reward.Policy{
		XPPerProblem:    r.XPPerProblem,
		StreakBonusXP:   r.StreakBonus,
		DailyTarget:     r.DailyTarget,
		FreeHintsPerDay: r.FreeHintLimit,
		Location:        loc,
	}, nil
}

// registry layers configured languages over the built-in table.
func (c *AppConfig) registry() (*sandbox.Registry, error) {
	specs := sandbox.DefaultLanguages()
	for _, lang := range c.Languages {
		specs = append(specs, sandbox.LanguageSpec{
			ID:       model.NormalizeLanguage(lang.ID),
			Backend:  sandbox.BackendKind(strings.ToLower(lang.Backend)),
			Runtime:  lang.Runtime,
			Version:  lang.Version,
			FileName: lang.FileName,
		})
	}
	registry, err := sandbox.NewRegistry(specs...)
	if err != nil {
		return nil, fmt.Errorf("invalid language config: %w", err)
	}
	return registry, nil
}

func (l LocalConfig) toRunnerConfig() local.Config {
	return local.Config{
		TestTimeout:      l.TestTimeout,
		LoadTimeout:      l.LoadTimeout,
		MaxCallStackSize: l.MaxCallStackSize,
	}
}

func (r RemoteConfig) toClientConfig() remote.Config {
	return remote.Config{
		BaseURL:          r.BaseURL,
		Timeout:          r.Timeout,
		RunTimeoutMs:     r.RunTimeoutMs,
		CompileTimeoutMs: r.CompileTimeoutMs,
		MaxOutputBytes:   r.MaxOutputBytes,
	}
}

func (r RateLimitConfig) toPolicy() middleware.RateLimitPolicy {
	return middleware.RateLimitPolicy{Window: r.Window, UserMax: r.UserMax, IPMax: r.IPMax}
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
		Compression:  parseCompression(k.Compression),
	}
}

func (k KafkaConfig) subscribeOptions() *mq.SubscribeOptions {
	return &mq.SubscribeOptions{
		ConsumerGroup:   k.ConsumerGroup,
		Concurrency:     k.Concurrency,
		MaxRetries:      k.MaxRetries,
		RetryDelay:      k.RetryDelay,
		DeadLetterTopic: k.DeadLetter,
		MessageTTL:      k.MessageTTL,
	}
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}
