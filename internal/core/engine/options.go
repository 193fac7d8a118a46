package engine

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-zeroconf/internal/core/eventbus"
	"github.com/dep2p/go-zeroconf/internal/core/metrics"
)

// Option 引擎选项
type Option func(*Engine)

// WithClock 设置时钟，测试中使用 clock.NewMock()
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		if clk != nil {
			e.clk = clk
		}
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(r metrics.Reporter) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithBus 使用外部事件总线，引擎停止时不关闭它
func WithBus(bus *eventbus.Bus) Option {
	return func(e *Engine) {
		if bus != nil {
			e.bus = bus
			e.ownBus = false
		}
	}
}

// WithJitter 设置首次探测前随机延迟的生成函数
func WithJitter(fn func(max time.Duration) time.Duration) Option {
	return func(e *Engine) {
		e.jitter = fn
	}
}
