package transport

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-zeroconf/config"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
)

// Module 返回 Fx 模块
//
// 提供基于 UDP 多播的 interfaces.Transport。Listen 由引擎启动时调用。
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(
			fx.Annotate(
				ProvideUDP,
				fx.As(new(interfaces.Transport)),
			),
		),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideUDP 从统一配置创建 UDP 传输
func ProvideUDP(cfg *config.Config) *UDP {
	return NewUDP(cfg.Transport)
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, t interfaces.Transport) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return t.Close()
		},
	})
}
