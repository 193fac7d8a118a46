package zeroconf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-zeroconf/config"
	"github.com/dep2p/go-zeroconf/internal/core/engine"
	"github.com/dep2p/go-zeroconf/internal/core/eventbus"
	"github.com/dep2p/go-zeroconf/internal/util/logger"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

var log = logger.Logger("zeroconf")

// stopTimeout Close 等待引擎停止的时间
const stopTimeout = 5 * time.Second

// ════════════════════════════════════════════════════════════════════════════
//                              ZeroConf
// ════════════════════════════════════════════════════════════════════════════

// ZeroConf mDNS/DNS-SD 服务发布与浏览
//
// 同一时刻最多发布一个服务、进行一个浏览会话。所有方法并发安全；
// 事件按检测顺序派发给订阅者。
type ZeroConf struct {
	cfg *config.Config
	app *fx.App

	engine *engine.Engine
	bus    *eventbus.Bus

	mu      sync.Mutex
	started bool
	closed  bool
}

// New 创建 ZeroConf 实例
//
// 创建后需调用 Start 开始监听。
func New(opts ...Option) (*ZeroConf, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg, err := o.toConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	z := &ZeroConf{cfg: cfg}
	z.app = buildFxApp(o, cfg, z)
	if err := z.app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return z, nil
}

// Start 快捷启动函数
//
// 等价于 New() + Start()。
//
// 示例：
//
//	zc, err := zeroconf.Start(ctx, zeroconf.WithHostName("printer1"))
//	if err != nil {
//	    return err
//	}
//	defer zc.Close()
func Start(ctx context.Context, opts ...Option) (*ZeroConf, error) {
	z, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := z.Start(ctx); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return z, nil
}

// Start 启动引擎并开始监听
func (z *ZeroConf) Start(ctx context.Context) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.closed {
		return ErrClosed
	}
	if z.started {
		return nil
	}
	if err := z.app.Start(ctx); err != nil {
		log.Error("启动失败", "error", err)
		return err
	}
	z.started = true
	log.Info("已启动", "version", Version, "domain", z.cfg.Domain)
	return nil
}

// Close 撤销发布、结束浏览并释放资源
//
// 浏览会话中的每个实例都会派发 serviceRemoved，之后订阅全部关闭。
func (z *ZeroConf) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.closed {
		return nil
	}
	z.closed = true
	if !z.started {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := z.app.Stop(ctx); err != nil {
		log.Warn("停止时出错", "error", err)
		return err
	}
	log.Info("已关闭")
	return nil
}

// Config 返回生效的配置
func (z *ZeroConf) Config() *config.Config {
	return z.cfg
}

// ════════════════════════════════════════════════════════════════════════════
//                              服务发布
// ════════════════════════════════════════════════════════════════════════════

// StartServicePublish 发布服务
//
// domain 为空时使用配置的默认域。发布经过探测与通告后派发
// servicePublished；名称冲突时派发 serviceNameCollision。
// 参数无效或已有发布时派发 serviceRegistrationFailed 并返回同样的错误。
func (z *ZeroConf) StartServicePublish(name, serviceType, domain string, port uint16) error {
	err := z.engine.StartServicePublish(context.Background(), name, serviceType, domain, port)
	return wrapError("StartServicePublish", types.ErrorServiceRegistrationFailed, err)
}

// StopServicePublish 撤销发布，已通告的记录发送 goodbye
func (z *ZeroConf) StopServicePublish() {
	if err := z.engine.StopServicePublish(context.Background()); err != nil {
		log.Debug("撤销发布失败", "error", err)
	}
}

// PublishExists 是否存在发布中的服务
func (z *ZeroConf) PublishExists() bool {
	ok, err := z.engine.PublishExists(context.Background())
	return err == nil && ok
}

// AddServiceTxtRecord 暂存一条 TXT 记录
//
// 不带 value 的键发布为布尔属性。暂存的记录在下一次 StartServicePublish
// 或 UpdateServiceTxtRecords 时生效。
func (z *ZeroConf) AddServiceTxtRecord(key string, value ...string) error {
	err := z.engine.AddServiceTxtRecord(context.Background(), key, value...)
	return wrapError("AddServiceTxtRecord", types.ErrorNone, err)
}

// ClearServiceTxtRecords 清空暂存的 TXT 记录
func (z *ZeroConf) ClearServiceTxtRecords() {
	if err := z.engine.ClearServiceTxtRecords(context.Background()); err != nil {
		log.Debug("清空 TXT 记录失败", "error", err)
	}
}

// UpdateServiceTxtRecords 以暂存的 TXT 记录替换已发布服务的 TXT
func (z *ZeroConf) UpdateServiceTxtRecords() error {
	err := z.engine.UpdateServiceTxtRecords(context.Background())
	return wrapError("UpdateServiceTxtRecords", types.ErrorServiceRegistrationFailed, err)
}

// ════════════════════════════════════════════════════════════════════════════
//                              服务浏览
// ════════════════════════════════════════════════════════════════════════════

// StartBrowser 开始浏览 serviceType 类型的服务
//
// 解析出的实例派发 serviceAdded，之后的变化派发 serviceUpdated，
// 消失时派发 serviceRemoved。已有浏览会话或参数无效时派发
// browserFailed 并返回同样的错误。
func (z *ZeroConf) StartBrowser(serviceType string, proto types.Protocol) error {
	err := z.engine.StartBrowser(context.Background(), serviceType, proto)
	return wrapError("StartBrowser", types.ErrorBrowserFailed, err)
}

// StopBrowser 结束浏览，为每个实例派发 serviceRemoved
func (z *ZeroConf) StopBrowser() {
	if err := z.engine.StopBrowser(context.Background()); err != nil {
		log.Debug("结束浏览失败", "error", err)
	}
}

// BrowserExists 是否存在浏览会话
func (z *ZeroConf) BrowserExists() bool {
	ok, err := z.engine.BrowserExists(context.Background())
	return err == nil && ok
}

// Services 当前浏览会话中已解析实例的快照
func (z *ZeroConf) Services() []types.ServiceRecord {
	out, err := z.engine.Services(context.Background())
	if err != nil {
		return nil
	}
	return out
}

// ════════════════════════════════════════════════════════════════════════════
//                              事件
// ════════════════════════════════════════════════════════════════════════════

// Subscribe 注册事件处理函数
//
// 处理函数在独立协程中按顺序调用，可以在其中调用 ZeroConf 的方法，
// Close 除外。Close 返回前已派发的事件（包括关闭时的 serviceRemoved）
// 都会交给处理函数。
func (z *ZeroConf) Subscribe(handler func(types.Event)) interfaces.Subscription {
	return z.bus.Subscribe(handler, eventbus.Async())
}

// Events 以带缓冲通道订阅事件
//
// 缓冲区满时新事件被丢弃；Close 之后通道关闭。
func (z *ZeroConf) Events(buf int) interfaces.Subscription {
	return z.bus.SubscribeChan(buf)
}
