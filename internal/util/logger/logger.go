// Package logger 提供 go-zeroconf 的子系统日志
//
// 基于标准库 log/slog：
//   - 每个子系统一个缓存的 *slog.Logger，输出带 subsystem 属性
//   - 级别由 ZEROCONF_LOG_LEVEL 配置，支持按子系统前缀匹配
//   - SetOutput 可在任意时刻重定向所有 Logger
//
// 使用示例:
//
//	var log = logger.Logger("core/browse")
//
//	log.Debug("收到 PTR 记录", "instance", name, "ifindex", ifIndex)
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	loggers  sync.Map // map[string]*slog.Logger
	handlers sync.Map // map[string]*subsystemHandler
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回同一个实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	h := newHandler(subsystem, ConfigFromEnv())
	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// SetLevel 运行时调整子系统日志级别
//
// subsystem 为空时调整所有已创建的子系统。
func SetLevel(subsystem string, level slog.Level) {
	handlers.Range(func(key, value any) bool {
		if subsystem == "" || key.(string) == subsystem {
			value.(*subsystemHandler).level.Set(level)
		}
		return true
	})
}

// SetOutput 设置全局日志输出目标，已创建的 Logger 同样生效
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// Discard 返回丢弃所有日志的 Logger（用于测试）
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}
