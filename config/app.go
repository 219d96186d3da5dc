// Package config 负责两类配置：
//   - 进程配置 AppConfig：默认值 -> YAML 文件 -> 环境变量，逐层覆盖后校验；
//   - Pipeline 配置：把 YAML 中的节点描述构建为 pipeline.Node（见 NewFactory）。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/rank"
)

const (
	// EnvPrefix 环境变量前缀，层级用双下划线：VENUEREC_RECOMMEND__CF_WEIGHT -> recommend.cf_weight
	EnvPrefix = "VENUEREC_"

	// ConfigPathEnvVar 指定配置文件路径
	ConfigPathEnvVar = "CONFIG_PATH"
)

// DefaultConfigPaths 未指定配置文件时按顺序查找，第一个存在的生效。
var DefaultConfigPaths = []string{
	"venuerec.yaml",
	"venuerec.yml",
	"/etc/venuerec/venuerec.yaml",
}

type AppConfig struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Encoder   EncoderConfig   `koanf:"encoder"`
	ALS       ALSConfig       `koanf:"als"`
	Recommend RecommendConfig `koanf:"recommend"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Addr 返回 host:port。
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig DSN 为空时使用进程内存数据源（开发/演示）。
type DatabaseConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"min=0"`
}

// RedisConfig Addr 为空时结果缓存使用进程内存。
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db" validate:"min=0"`
	TLS      bool          `koanf:"tls"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

type EncoderConfig struct {
	Endpoint  string        `koanf:"endpoint" validate:"omitempty,url"`
	Path      string        `koanf:"path"`
	Dimension int           `koanf:"dimension" validate:"gt=0"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	AuthToken string        `koanf:"auth_token"`

	// 熔断：连续失败 BreakerFailures 次后打开，BreakerTimeout 后半开
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gt=0"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`

	// 画像文本向量的进程内缓存
	CacheSize int           `koanf:"cache_size" validate:"min=0"`
	CacheTTL  time.Duration `koanf:"cache_ttl" validate:"min=0"`
}

type ALSConfig struct {
	Factors        int     `koanf:"factors" validate:"gt=0"`
	Regularization float64 `koanf:"regularization" validate:"gte=0"`
	Iterations     int     `koanf:"iterations" validate:"gt=0"`
	Alpha          float64 `koanf:"alpha" validate:"gt=0"`
	Workers        int     `koanf:"workers" validate:"min=0"`
}

type RecommendConfig struct {
	CFWeight            float64       `koanf:"cf_weight" validate:"gte=0,lte=1"`
	ContentWeight       float64       `koanf:"content_weight" validate:"gte=0,lte=1"`
	DefaultTopK         int           `koanf:"default_top_k" validate:"gt=0"`
	CandidateMultiplier int           `koanf:"candidate_multiplier" validate:"gt=0"`
	DefaultRadiusKm     float64       `koanf:"default_radius_km" validate:"gt=0"`
	CacheTTL            time.Duration `koanf:"cache_ttl" validate:"min=1s"`
	SourceTimeout       time.Duration `koanf:"source_timeout" validate:"gt=0"`
	GeoTimeout          time.Duration `koanf:"geo_timeout" validate:"gt=0"`
	CacheTimeout        time.Duration `koanf:"cache_timeout" validate:"gt=0"`
	TrainInterval       time.Duration `koanf:"train_interval" validate:"min=0"`
	TrainOnStartup      bool          `koanf:"train_on_startup"`
	TrainTimeout        time.Duration `koanf:"train_timeout" validate:"gt=0"`

	// Blocklist 不推荐的品牌 ID
	Blocklist []string `koanf:"blocklist"`

	// FilterExpr CEL 表达式，为 true 的候选被过滤，例如 item.store.distance_m > 1500.0
	FilterExpr string `koanf:"filter_expr"`

	// PipelinePath 非空时从 YAML 构建推荐流水线，替代内置流水线
	PipelinePath string `koanf:"pipeline_path"`
}

// Weights 融合权重。
func (r RecommendConfig) Weights() rank.Weights {
	return rank.Weights{CF: r.CFWeight, Content: r.ContentWeight}
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled off"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Default 返回全部默认值。
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Timeout: 500 * time.Millisecond,
		},
		Encoder: EncoderConfig{
			Path:            "/embed",
			Dimension:       core.EmbeddingDim,
			Timeout:         5 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
			CacheSize:       10000,
			CacheTTL:        10 * time.Minute,
		},
		ALS: ALSConfig{
			Factors:        50,
			Regularization: 0.01,
			Iterations:     20,
			Alpha:          1,
			Workers:        4,
		},
		Recommend: RecommendConfig{
			CFWeight:            0.5,
			ContentWeight:       0.5,
			DefaultTopK:         core.DefaultTopK,
			CandidateMultiplier: core.DefaultCandidateMultiplier,
			DefaultRadiusKm:     core.DefaultRadiusKm,
			CacheTTL:            core.DefaultCacheTTL,
			SourceTimeout:       core.DefaultSourceTimeout,
			GeoTimeout:          2 * time.Second,
			CacheTimeout:        300 * time.Millisecond,
			TrainInterval:       6 * time.Hour,
			TrainOnStartup:      true,
			TrainTimeout:        30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load 按层加载配置：
//  1. 内置默认值
//  2. YAML 文件（path 为空时查找 CONFIG_PATH 与 DefaultConfigPaths，找不到则跳过）
//  3. VENUEREC_ 前缀的环境变量
//
// 最后做结构校验与跨字段校验。
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := splitListValue(k, "recommend.blocklist"); err != nil {
		return nil, err
	}

	cfg := &AppConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验字段范围以及融合权重之和为 1。
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Recommend.Weights().Validate(); err != nil {
		return fmt.Errorf("recommend weights: %w", err)
	}
	return nil
}

// envKey VENUEREC_RECOMMEND__CACHE_TTL -> recommend.cache_ttl
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// splitListValue 环境变量只能给出字符串，按逗号拆成列表；YAML 中已是列表时不处理。
func splitListValue(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if err := k.Set(path, parts); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}
