// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

type contextKey string

// RequestIDKey 请求ID在 context 中的键
const RequestIDKey contextKey = "request_id"

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
// 未显式初始化时使用默认配置
func Get() *zerolog.Logger {
	Init(DefaultConfig())
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// SchedulerLogger 排班引擎专用日志器
type SchedulerLogger struct {
	base *zerolog.Logger
}

// NewSchedulerLogger 创建排班引擎日志器
func NewSchedulerLogger() *SchedulerLogger {
	l := Get().With().Str("component", "scheduler").Logger()
	return &SchedulerLogger{base: &l}
}

// Base 返回底层日志器
func (l *SchedulerLogger) Base() *zerolog.Logger {
	return l.base
}

// StartSchedule 记录排班开始
func (l *SchedulerLogger) StartSchedule(runID string, troops int, voyageur bool) {
	l.base.Info().
		Str("run_id", runID).
		Int("troops", troops).
		Bool("voyageur", voyageur).
		Msg("开始生成排班")
}

// PhaseStarted 记录阶段开始
func (l *SchedulerLogger) PhaseStarted(phase string) {
	l.base.Debug().
		Str("phase", phase).
		Msg("阶段开始")
}

// Placement 记录一次放置
func (l *SchedulerLogger) Placement(troop, activity, slot, mode string) {
	l.base.Debug().
		Str("troop", troop).
		Str("activity", activity).
		Str("slot", slot).
		Str("mode", mode).
		Msg("活动已安排")
}

// Relaxed 记录放宽后才成功的放置
func (l *SchedulerLogger) Relaxed(troop, activity, slot, rule string) {
	l.base.Info().
		Str("troop", troop).
		Str("activity", activity).
		Str("slot", slot).
		Str("bypassed_rule", rule).
		Msg("放宽约束后安排")
}

// Forced 记录绕过校验的强制插入
func (l *SchedulerLogger) Forced(troop, activity, slot, reason string) {
	l.base.Warn().
		Str("troop", troop).
		Str("activity", activity).
		Str("slot", slot).
		Str("reason", reason).
		Msg("强制插入（绕过约束校验）")
}

// Repair 记录修复动作
func (l *SchedulerLogger) Repair(pass, action, troop, activity, slot string) {
	l.base.Debug().
		Str("pass", pass).
		Str("action", action).
		Str("troop", troop).
		Str("activity", activity).
		Str("slot", slot).
		Msg("修复动作")
}

// ConstraintViolation 记录约束违反
func (l *SchedulerLogger) ConstraintViolation(constraint, details string) {
	l.base.Warn().
		Str("constraint", constraint).
		Str("details", details).
		Msg("约束违反")
}

// ScheduleComplete 记录排班完成
func (l *SchedulerLogger) ScheduleComplete(runID string, duration time.Duration, unmetTop5, gaps int) {
	l.base.Info().
		Str("run_id", runID).
		Dur("duration", duration).
		Int("unmet_top5", unmetTop5).
		Int("gaps", gaps).
		Msg("排班生成完成")
}
