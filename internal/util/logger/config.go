package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 环境变量名
const (
	EnvLevel     = "ZEROCONF_LOG_LEVEL"
	EnvFormat    = "ZEROCONF_LOG_FORMAT"
	EnvAddSource = "ZEROCONF_LOG_ADD_SOURCE"
)

// Format 日志输出格式
type Format int

const (
	// FormatText 文本格式（默认）
	FormatText Format = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// SubsystemLevels 各子系统的日志级别，键为子系统前缀（如 "core/browse"）
	SubsystemLevels map[string]slog.Level

	// Format 输出格式
	Format Format

	// AddSource 是否添加源码位置
	AddSource bool
}

// LevelFor 获取指定子系统的日志级别
//
// 先精确匹配，再按 "/" 逐级回退到父子系统，例如 "core/browse" → "core"。
func (c *Config) LevelFor(subsystem string) slog.Level {
	for s := subsystem; s != ""; {
		if level, ok := c.SubsystemLevels[s]; ok {
			return level
		}
		i := strings.LastIndexByte(s, '/')
		if i < 0 {
			break
		}
		s = s[:i]
	}
	return c.DefaultLevel
}

var (
	envConfig     *Config
	envConfigOnce sync.Once
)

// ConfigFromEnv 从环境变量解析配置（只解析一次）
//
//   - ZEROCONF_LOG_LEVEL: 子系统=级别,...,默认级别，例如 browse=debug,warn
//   - ZEROCONF_LOG_FORMAT: text 或 json
//   - ZEROCONF_LOG_ADD_SOURCE: true 或 false
func ConfigFromEnv() *Config {
	envConfigOnce.Do(func() {
		envConfig = parseEnv(os.Getenv)
	})
	return envConfig
}

func parseEnv(getenv func(string) string) *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}

	if v := getenv(EnvLevel); v != "" {
		parseLevels(cfg, v)
	}
	if strings.EqualFold(getenv(EnvFormat), "json") {
		cfg.Format = FormatJSON
	}
	if v := getenv(EnvAddSource); v != "" {
		cfg.AddSource = v != "false" && v != "0"
	}
	return cfg
}

// parseLevels 解析 subsystem=level,subsystem=level,defaultLevel
func parseLevels(cfg *Config, s string) {
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, levelName, ok := strings.Cut(part, "=")
		if !ok {
			if level, ok := ParseLevel(part); ok {
				cfg.DefaultLevel = level
			}
			continue
		}
		if level, ok := ParseLevel(strings.TrimSpace(levelName)); ok {
			cfg.SubsystemLevels[strings.TrimSpace(name)] = level
		}
	}
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ResetConfig 重置环境配置缓存（仅用于测试）
func ResetConfig() {
	envConfigOnce = sync.Once{}
	envConfig = nil
}
