package zeroconf

import (
	"fmt"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/dep2p/go-zeroconf/config"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 配置
	config     *config.Config
	configFile string
	hostName   string

	// 注入的组件
	transport  interfaces.Transport
	clock      clock.Clock
	registerer prometheus.Registerer

	// Fx 扩展
	fxOptions []fx.Option
	fxLogger  *zap.Logger
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{}
}

// toConfig 合成最终配置
//
// 优先级：WithConfig > WithConfigFile > 默认值；环境变量和 WithHostName
// 在此基础上覆盖。
func (o *options) toConfig() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case o.config != nil:
		cfg = o.config.Clone()
	case o.configFile != "":
		loaded, err := config.LoadFile(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	default:
		cfg = config.NewConfig()
	}

	config.ApplyEnv(cfg, os.Getenv)
	if o.hostName != "" {
		cfg.Publish.HostName = o.hostName
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ============================================================================
//                              配置选项
// ============================================================================

// WithConfig 使用给定配置，配置在创建时被复制
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("配置不能为空")
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		if path == "" {
			return fmt.Errorf("配置文件路径不能为空")
		}
		o.configFile = path
		return nil
	}
}

// WithHostName 设置发布服务使用的主机名（不含域）
func WithHostName(name string) Option {
	return func(o *options) error {
		o.hostName = name
		return nil
	}
}

// ============================================================================
//                              组件注入
// ============================================================================

// WithTransport 使用自定义传输替代 UDP 多播
func WithTransport(t interfaces.Transport) Option {
	return func(o *options) error {
		if t == nil {
			return fmt.Errorf("传输不能为空")
		}
		o.transport = t
		return nil
	}
}

// WithClock 设置引擎时钟，测试中使用 clock.NewMock()
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithRegisterer 将指标注册到给定的 Registerer
//
// 未设置时指标注册到独立的 Registry。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// ============================================================================
//                              Fx 扩展
// ============================================================================

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}

// WithFxLogger 设置 Fx 事件日志，默认丢弃
func WithFxLogger(l *zap.Logger) Option {
	return func(o *options) error {
		o.fxLogger = l
		return nil
	}
}
