package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	Registerer prometheus.Registerer `optional:"true"`
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(
		fx.Annotate(
			NewFromParams,
			fx.As(new(Reporter)),
		),
	),
)

// NewFromParams 从参数创建 Metrics
func NewFromParams(p Params) (*Metrics, error) {
	return New(p.Registerer)
}
