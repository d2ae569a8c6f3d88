// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/paiban/campsched/pkg/logger"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/optimizer"
	"github.com/paiban/campsched/pkg/scheduler/solver"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	RateLimit    float64       `yaml:"rate_limit"` // 每秒请求数，0 表示不限
	CORS         CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// SchedulerConfig 排班引擎配置
type SchedulerConfig struct {
	DefaultTimeout      time.Duration      `yaml:"default_timeout"`
	Voyageur            bool               `yaml:"voyageur"`
	CatalogFile         string             `yaml:"catalog_file"`
	ForcedWarnThreshold int                `yaml:"forced_warn_threshold"`
	CoreRanks           int                `yaml:"core_ranks"`
	Top10Minimum        int                `yaml:"top10_minimum"`
	QueueLimit          int                `yaml:"queue_limit"`
	MaxIterations       int                `yaml:"max_iterations"`
	MaxCandidates       int                `yaml:"max_candidates"`
	SkipPolish          bool               `yaml:"skip_polish"`
	Weights             map[string]float64 `yaml:"weights"`

	// 营地常量
	StaffCeiling        int `yaml:"staff_ceiling"`
	StaffClusterCeiling int `yaml:"staff_cluster_ceiling"`
	BeachStaffCap       int `yaml:"beach_staff_cap"`
	FleetCapacity       int `yaml:"fleet_capacity"`
	SharedTroopSize     int `yaml:"shared_troop_size"`
	TowerExtendedAbove  int `yaml:"tower_extended_above"`
	BeachRelaxRank      int `yaml:"beach_relax_rank"`
	MaxThreeHour        int `yaml:"max_three_hour"`
	MaxAccuracyPerDay   int `yaml:"max_accuracy_per_day"`
}

// Limits 转换为约束常量
func (c *SchedulerConfig) Limits() constraint.Limits {
	return constraint.Limits{
		StaffCeiling:        c.StaffCeiling,
		StaffClusterCeiling: c.StaffClusterCeiling,
		BeachStaffCap:       c.BeachStaffCap,
		FleetCapacity:       c.FleetCapacity,
		SharedTroopSize:     c.SharedTroopSize,
		TowerExtendedAbove:  c.TowerExtendedAbove,
		BeachRelaxRank:      c.BeachRelaxRank,
		MaxThreeHour:        c.MaxThreeHour,
		MaxAccuracyPerDay:   c.MaxAccuracyPerDay,
	}
}

// EngineOptions 转换为引擎选项，catalog 为空时使用默认目录
func (c *SchedulerConfig) EngineOptions(catalog *model.Catalog) *scheduler.Options {
	opts := scheduler.DefaultOptions()
	if catalog != nil {
		opts.Catalog = catalog
	}
	opts.Voyageur = c.Voyageur
	opts.Limits = c.Limits()
	opts.ForcedWarnThreshold = c.ForcedWarnThreshold

	s := solver.DefaultOptions()
	s.CoreRanks = c.CoreRanks
	s.Top10Minimum = c.Top10Minimum
	s.QueueLimit = c.QueueLimit
	s.SkipPolish = c.SkipPolish
	s.Weights = optimizer.DefaultWeights().Merge(c.Weights)
	s.Optimizer.MaxIterations = c.MaxIterations
	s.Optimizer.MaxCandidates = c.MaxCandidates
	opts.Solver = s
	return opts
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从环境变量加载配置，存在 .env 文件时先行加载
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	limits := constraint.DefaultLimits()
	solverDefaults := solver.DefaultOptions()

	weights, err := parseWeights(getEnv("SCHEDULER_WEIGHTS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "campsched"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7012),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "campsched"),
			User:            getEnv("DB_USER", "campsched"),
			Password:        getEnv("DB_PASSWORD", "campsched"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		API: APIConfig{
			Timeout:      getEnvDuration("API_TIMEOUT", 30*time.Second),
			MaxBodyBytes: int64(getEnvInt("API_MAX_BODY_BYTES", 1<<20)),
			RateLimit:    getEnvFloat("API_RATE_LIMIT", 100),
			CORS: CORSConfig{
				Enabled: getEnvBool("API_CORS_ENABLED", true),
				Origins: getEnvList("API_CORS_ORIGINS", []string{"*"}),
			},
		},
		Scheduler: SchedulerConfig{
			DefaultTimeout:      getEnvDuration("SCHEDULER_TIMEOUT", 30*time.Second),
			Voyageur:            getEnvBool("SCHEDULER_VOYAGEUR", false),
			CatalogFile:         getEnv("SCHEDULER_CATALOG_FILE", ""),
			ForcedWarnThreshold: getEnvInt("SCHEDULER_FORCED_WARN_THRESHOLD", scheduler.DefaultForcedWarnThreshold),
			CoreRanks:           getEnvInt("SCHEDULER_CORE_RANKS", solverDefaults.CoreRanks),
			Top10Minimum:        getEnvInt("SCHEDULER_TOP10_MINIMUM", solverDefaults.Top10Minimum),
			QueueLimit:          getEnvInt("SCHEDULER_QUEUE_LIMIT", solverDefaults.QueueLimit),
			MaxIterations:       getEnvInt("SCHEDULER_MAX_ITERATIONS", solverDefaults.Optimizer.MaxIterations),
			MaxCandidates:       getEnvInt("SCHEDULER_MAX_CANDIDATES", solverDefaults.Optimizer.MaxCandidates),
			SkipPolish:          getEnvBool("SCHEDULER_SKIP_POLISH", false),
			Weights:             weights,

			StaffCeiling:        getEnvInt("CAMP_STAFF_CEILING", limits.StaffCeiling),
			StaffClusterCeiling: getEnvInt("CAMP_STAFF_CLUSTER_CEILING", limits.StaffClusterCeiling),
			BeachStaffCap:       getEnvInt("CAMP_BEACH_STAFF_CAP", limits.BeachStaffCap),
			FleetCapacity:       getEnvInt("CAMP_FLEET_CAPACITY", limits.FleetCapacity),
			SharedTroopSize:     getEnvInt("CAMP_SHARED_TROOP_SIZE", limits.SharedTroopSize),
			TowerExtendedAbove:  getEnvInt("CAMP_TOWER_EXTENDED_ABOVE", limits.TowerExtendedAbove),
			BeachRelaxRank:      getEnvInt("CAMP_BEACH_RELAX_RANK", limits.BeachRelaxRank),
			MaxThreeHour:        getEnvInt("CAMP_MAX_THREE_HOUR", limits.MaxThreeHour),
			MaxAccuracyPerDay:   getEnvInt("CAMP_MAX_ACCURACY_PER_DAY", limits.MaxAccuracyPerDay),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

// LoggerConfig 返回日志配置
func (c *Config) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.App.LogLevel
	if !c.IsDevelopment() {
		cfg.Format = "json"
	}
	return cfg
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// parseWeights 解析 "area_day=3,primary_day=5" 形式的权重覆盖
func parseWeights(raw string) (map[string]float64, error) {
	out := make(map[string]float64)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	known := make(map[string]bool, len(optimizer.Terms))
	for _, t := range optimizer.Terms {
		known[string(t)] = true
	}
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("无效的权重配置 %q", pair)
		}
		name := strings.TrimSpace(kv[0])
		if !known[name] {
			return nil, fmt.Errorf("未知的评分项 %q", name)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("权重 %s 不是数字: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
