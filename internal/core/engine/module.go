package engine

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-zeroconf/config"
	"github.com/dep2p/go-zeroconf/internal/core/eventbus"
	"github.com/dep2p/go-zeroconf/internal/core/metrics"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
)

// Params Engine 依赖参数
type Params struct {
	fx.In

	Config    *config.Config
	Transport interfaces.Transport
	Bus       *eventbus.Bus
	Metrics   metrics.Reporter `optional:"true"`
	Clock     clock.Clock      `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// NewFromParams 从 Fx 参数创建引擎
func NewFromParams(p Params) (*Engine, error) {
	return New(p.Config, p.Transport,
		WithBus(p.Bus),
		WithMetrics(p.Metrics),
		WithClock(p.Clock),
	)
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, e *Engine) {
	lc.Append(fx.Hook{
		OnStart: e.Start,
		OnStop:  e.Stop,
	})
}
