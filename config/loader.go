// =============================================================================
// 📦 AgentCoord 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("agentcoord.yaml").
//	    WithEnvPrefix("AGENTCOORD").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是协调引擎的完整配置结构
type Config struct {
	// Server HTTP 服务配置（/health、/metrics）
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Mailbox 邮箱配置
	Mailbox MailboxConfig `yaml:"mailbox" env:"MAILBOX"`

	// Allocation 任务分配配置
	Allocation AllocationConfig `yaml:"allocation" env:"ALLOCATION"`

	// Consensus 共识配置
	Consensus ConsensusConfig `yaml:"consensus" env:"CONSENSUS"`

	// Sync 知识同步配置
	Sync SyncConfig `yaml:"sync" env:"SYNC"`

	// Planner 协作规划配置
	Planner PlannerConfig `yaml:"planner" env:"PLANNER"`

	// Decomposer 目标分解器配置
	Decomposer DecomposerConfig `yaml:"decomposer" env:"DECOMPOSER"`

	// Redis 配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// MailboxConfig 邮箱配置
type MailboxConfig struct {
	// 单个邮箱容量，0 表示不限
	Capacity int `yaml:"capacity" env:"CAPACITY"`
	// 持久化后端: none, memory, redis
	Store string `yaml:"store" env:"STORE"`
	// 单次持久化操作超时
	StoreTimeout time.Duration `yaml:"store_timeout" env:"STORE_TIMEOUT"`
	// 恢复时的最大重投次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 已确认消息保留时长
	MessageRetention time.Duration `yaml:"message_retention" env:"MESSAGE_RETENTION"`
}

// AllocationConfig 任务分配配置
type AllocationConfig struct {
	// 默认任务时长
	DefaultTaskDuration time.Duration `yaml:"default_task_duration" env:"DEFAULT_TASK_DURATION"`
	// LoadBalanced 每次分配后的负载增量
	LoadIncrement float64 `yaml:"load_increment" env:"LOAD_INCREMENT"`
	// 单次分配的任务上限
	MaxTasks int `yaml:"max_tasks" env:"MAX_TASKS"`
}

// ConsensusConfig 共识配置
type ConsensusConfig struct {
	// 默认投票超时
	DefaultTimeout time.Duration `yaml:"default_timeout" env:"DEFAULT_TIMEOUT"`
	// 并发征集投票上限
	MaxConcurrentVotes int `yaml:"max_concurrent_votes" env:"MAX_CONCURRENT_VOTES"`
	// 形成决议所需的最少投票数
	MinVotes int `yaml:"min_votes" env:"MIN_VOTES"`
	// Weighted 协议默认权重所依据的技能
	DecisionSkill string `yaml:"decision_skill" env:"DECISION_SKILL"`
}

// SyncConfig 知识同步配置
type SyncConfig struct {
	// 知识库后端: memory, redis, sql
	Store string `yaml:"store" env:"STORE"`
	// 默认同步超时
	DefaultTimeout time.Duration `yaml:"default_timeout" env:"DEFAULT_TIMEOUT"`
	// 每秒推送上限，0 表示不限
	PushRate float64 `yaml:"push_rate" env:"PUSH_RATE"`
	// 令牌桶容量
	PushBurst int `yaml:"push_burst" env:"PUSH_BURST"`
	// 并发推送上限
	MaxConcurrentPushes int `yaml:"max_concurrent_pushes" env:"MAX_CONCURRENT_PUSHES"`
	// Gossip 轮数
	GossipRounds int `yaml:"gossip_rounds" env:"GOSSIP_ROUNDS"`
	// Gossip 配对: rotation, random
	GossipPairing string `yaml:"gossip_pairing" env:"GOSSIP_PAIRING"`
	// random 配对种子
	Seed int64 `yaml:"seed" env:"SEED"`
}

// PlannerConfig 协作规划配置
type PlannerConfig struct {
	// 默认任务时长
	DefaultTaskDuration time.Duration `yaml:"default_task_duration" env:"DEFAULT_TASK_DURATION"`
	// 单个计划的任务上限
	MaxTasks int `yaml:"max_tasks" env:"MAX_TASKS"`
	// 是否按阶段推导依赖
	PhaseOrdering bool `yaml:"phase_ordering" env:"PHASE_ORDERING"`
}

// DecomposerConfig 目标分解器配置
type DecomposerConfig struct {
	// 类型: heuristic, openai
	Type string `yaml:"type" env:"TYPE"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选，兼容 OpenAI 协议的服务）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// Key 前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTCOORD",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置，汇总所有错误
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Mailbox.Capacity < 0 {
		errs = append(errs, "mailbox capacity must not be negative")
	}
	if !oneOf(c.Mailbox.Store, "none", "memory", "redis") {
		errs = append(errs, fmt.Sprintf("unknown mailbox store %q", c.Mailbox.Store))
	}
	if c.Allocation.LoadIncrement < 0 || c.Allocation.LoadIncrement > 1 {
		errs = append(errs, "allocation load_increment must be between 0 and 1")
	}
	if c.Consensus.MinVotes < 1 {
		errs = append(errs, "consensus min_votes must be at least 1")
	}
	if c.Consensus.DefaultTimeout <= 0 {
		errs = append(errs, "consensus default_timeout must be positive")
	}
	if !oneOf(c.Sync.Store, "memory", "redis", "sql") {
		errs = append(errs, fmt.Sprintf("unknown knowledge store %q", c.Sync.Store))
	}
	if c.Sync.GossipRounds < 1 {
		errs = append(errs, "sync gossip_rounds must be at least 1")
	}
	if !oneOf(c.Sync.GossipPairing, "rotation", "random") {
		errs = append(errs, fmt.Sprintf("unknown gossip pairing %q", c.Sync.GossipPairing))
	}
	if c.Sync.PushRate < 0 {
		errs = append(errs, "sync push_rate must not be negative")
	}
	if !oneOf(c.Decomposer.Type, "heuristic", "openai") {
		errs = append(errs, fmt.Sprintf("unknown decomposer %q", c.Decomposer.Type))
	}
	if c.Decomposer.Type == "openai" && c.Decomposer.APIKey == "" {
		errs = append(errs, "decomposer api_key is required for openai")
	}
	if c.Sync.Store == "sql" && !oneOf(c.Database.Driver, "postgres", "mysql", "sqlite") {
		errs = append(errs, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
