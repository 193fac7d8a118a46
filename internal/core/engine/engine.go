package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-zeroconf/config"
	"github.com/dep2p/go-zeroconf/internal/core/browse"
	"github.com/dep2p/go-zeroconf/internal/core/cache"
	"github.com/dep2p/go-zeroconf/internal/core/eventbus"
	"github.com/dep2p/go-zeroconf/internal/core/loop"
	"github.com/dep2p/go-zeroconf/internal/core/metrics"
	"github.com/dep2p/go-zeroconf/internal/core/publish"
	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/internal/util/logger"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

var log = logger.Logger("core/engine")

// sendTimeout 单个数据包的发送超时
const sendTimeout = 2 * time.Second

// ============================================================================
//                              Engine
// ============================================================================

// Engine mDNS/DNS-SD 引擎
type Engine struct {
	cfg       *config.Config
	clk       clock.Clock
	transport interfaces.Transport
	metrics   metrics.Reporter
	bus       *eventbus.Bus
	ownBus    bool
	jitter    func(time.Duration) time.Duration

	loop  *loop.Loop
	cache *cache.Cache
	pub   *publish.Publisher
	br    *browse.Browser

	// ifaces 只在循环协程中访问
	ifaces []types.Interface
	sweep  *loop.Timer

	started atomic.Bool
	stopped atomic.Bool
}

// 确保实现接口
var _ interfaces.PacketHandler = (*Engine)(nil)

// New 创建引擎
func New(cfg *config.Config, t interfaces.Transport, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNilTransport
	}

	e := &Engine{
		cfg:       cfg,
		clk:       clock.New(),
		transport: t,
		metrics:   metrics.Nop{},
		bus:       eventbus.NewBus(),
		ownBus:    true,
	}
	for _, opt := range opts {
		opt(e)
	}

	c, err := cache.New(cfg.Cache.Size, e.clk)
	if err != nil {
		return nil, fmt.Errorf("engine: create cache: %w", err)
	}
	e.cache = c
	e.loop = loop.New(e.clk, loop.WithAfterEach(e.bus.Flush))

	e.pub = publish.New(cfg, publish.Deps{
		Loop:       e.loop,
		Send:       e.send,
		Emit:       e.emit,
		Interfaces: func() []types.Interface { return e.ifaces },
		Metrics:    e.metrics,
		Jitter:     e.jitter,
	})
	e.br = browse.New(cfg, browse.Deps{
		Loop:  e.loop,
		Cache: c,
		Send:  e.send,
		Emit:  e.emit,
	})
	return e, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动事件循环并开始监听
func (e *Engine) Start(ctx context.Context) error {
	if e.stopped.Load() {
		return ErrStopped
	}
	if !e.started.CompareAndSwap(false, true) {
		return nil
	}

	e.loop.Start()
	if err := e.transport.Listen(e); err != nil {
		e.loop.Stop()
		e.stopped.Store(true)
		return fmt.Errorf("engine: listen: %w", err)
	}
	err := e.loop.Do(ctx, func() {
		e.refreshInterfaces()
		e.sweep = e.loop.AfterFunc(e.cfg.Cache.SweepInterval.Duration(), e.sweepCache)
	})
	if err != nil {
		e.abortStart()
		return fmt.Errorf("engine: start: %w", err)
	}
	log.Info("引擎已启动", "domain", e.cfg.Domain, "interfaces", len(e.ifaces))
	return nil
}

// abortStart 监听之后启动失败：关闭传输和循环，引擎不能再启动
func (e *Engine) abortStart() {
	e.stopped.Store(true)
	if err := e.transport.Close(); err != nil {
		log.Debug("关闭传输失败", "error", err)
	}
	e.loop.Stop()
	if e.ownBus {
		_ = e.bus.Close()
	}
	log.Warn("引擎启动失败，已释放资源")
}

// Stop 撤销发布、结束浏览并关闭传输
//
// 浏览会话中的每个实例都会派发 serviceRemoved，之后不再有事件。
func (e *Engine) Stop(ctx context.Context) error {
	if !e.stopped.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if e.started.Load() {
		err = e.loop.Do(ctx, func() {
			if e.sweep != nil {
				e.sweep.Stop()
			}
			e.pub.Stop()
			e.br.Stop()
		})
	}
	e.loop.Stop()
	err = multierr.Append(err, e.transport.Close())
	if e.ownBus {
		err = multierr.Append(err, e.bus.Close())
		err = multierr.Append(err, e.bus.Drain(ctx))
	}
	e.cache.Purge()
	log.Info("引擎已停止")
	return err
}

// Bus 事件总线
func (e *Engine) Bus() *eventbus.Bus {
	return e.bus
}

// Clock 引擎时钟
func (e *Engine) Clock() clock.Clock {
	return e.clk
}

// Config 引擎配置
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Sync 等待所有已到期的定时器与已投递的任务执行完毕
func (e *Engine) Sync() {
	e.loop.Sync()
}

// ============================================================================
//                              PacketHandler
// ============================================================================

// HandlePacket 由传输接收协程调用，投递到事件循环
func (e *Engine) HandlePacket(pkt interfaces.Packet) {
	e.metrics.LogRecvPacket(pkt.Protocol, len(pkt.Data))
	e.loop.Post(func() { e.handlePacket(pkt) })
}

// HandleTransportError 传输失败，终止发布与浏览
func (e *Engine) HandleTransportError(err error) {
	e.loop.Post(func() {
		log.Error("传输失败", "error", err)
		e.pub.TransportFailed(err)
		e.br.TransportFailed(err)
	})
}

func (e *Engine) handlePacket(pkt interfaces.Packet) {
	msg, err := wire.Decode(pkt.Data)
	if err != nil {
		e.metrics.LogDecodeError()
		log.Debug("丢弃无法解码的数据包", "src", pkt.Src, "ifindex", pkt.IfIndex, "error", err)
		return
	}

	// 源端口不是 5353 的应答不可信（RFC 6762 §6）
	if msg.Response && (pkt.Src == nil || pkt.Src.Port == wire.Port) {
		var obs []browse.Observation
		for rec := range msg.Records() {
			verdict, _ := e.cache.Observe(rec, pkt.IfIndex)
			obs = append(obs, browse.Observation{Record: rec, Verdict: verdict})
		}
		e.br.HandleRecords(obs, pkt)
		e.metrics.SetCacheEntries(e.cache.Len())
	}
	e.pub.HandleMessage(msg, pkt)
}

// ============================================================================
//                              内部方法
// ============================================================================

// send 编码报文并逐个发送
func (e *Engine) send(out *wire.Outgoing, dst interfaces.Destination) error {
	packets, err := wire.Encode(out, e.cfg.Transport.MaxPacketSize)
	if err != nil {
		return err
	}
	for _, p := range packets {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := e.transport.Send(ctx, p, dst)
		cancel()
		if err != nil {
			return err
		}
		e.metrics.LogSentPacket(len(p))
	}
	return nil
}

func (e *Engine) emit(ev types.Event) {
	e.metrics.LogEvent(ev)
	log.Debug("派发事件", "event", ev)
	e.bus.Emit(ev)
}

func (e *Engine) refreshInterfaces() {
	ifaces, err := e.transport.Interfaces()
	if err != nil {
		log.Warn("获取接口地址失败", "error", err)
		return
	}
	e.ifaces = ifaces
}

// sweepCache 定期清理过期记录并刷新即将过期的 PTR
func (e *Engine) sweepCache() {
	expired := e.cache.Sweep()
	if len(expired) > 0 {
		log.Debug("缓存记录过期", "count", len(expired))
		e.br.HandleExpired(expired)
	}
	e.br.Refresh()
	e.metrics.SetCacheEntries(e.cache.Len())
	e.sweep = e.loop.AfterFunc(e.cfg.Cache.SweepInterval.Duration(), e.sweepCache)
}
