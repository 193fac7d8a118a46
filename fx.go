package zeroconf

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-zeroconf/config"
	"github.com/dep2p/go-zeroconf/internal/core/engine"
	"github.com/dep2p/go-zeroconf/internal/core/eventbus"
	"github.com/dep2p/go-zeroconf/internal/core/metrics"
	"github.com/dep2p/go-zeroconf/internal/core/transport"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 配置注入
//  2. EventBus → Metrics → Transport
//  3. Engine（依赖以上全部，OnStart 开始监听）
func buildFxApp(o *options, cfg *config.Config, z *ZeroConf) *fx.App {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置注入
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 基础组件
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		eventbus.Module(),
		metrics.Module,
	)
	if o.registerer != nil {
		reg := o.registerer
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return reg }))
	}
	if o.clock != nil {
		clk := o.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 传输层
	// ════════════════════════════════════════════════════════════════════════
	if o.transport != nil {
		t := o.transport
		modules = append(modules, fx.Provide(func() interfaces.Transport { return t }))
	} else {
		modules = append(modules, transport.Module())
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. 引擎
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		engine.Module(),
		fx.Populate(&z.engine, &z.bus),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 5. 用户扩展与日志
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, o.fxOptions...)

	fxLog := o.fxLogger
	if fxLog == nil {
		fxLog = zap.NewNop()
	}
	modules = append(modules, fx.WithLogger(func() fxevent.Logger {
		return &fxevent.ZapLogger{Logger: fxLog}
	}))

	return fx.New(modules...)
}
