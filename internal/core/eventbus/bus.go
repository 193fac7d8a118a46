package eventbus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-zeroconf/internal/util/logger"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

var log = logger.Logger("core/eventbus")

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrClosed 事件总线已关闭
	ErrClosed = errors.New("eventbus closed")
)

// ============================================================================
// Bus 实现
// ============================================================================

// Bus 事件总线
type Bus struct {
	mu     sync.Mutex
	queue  []types.Event
	sinks  []*Subscription
	closed bool

	// draining Close 时仍在处理队列的异步订阅
	draining []*Subscription

	// flushing 防止处理函数中的 Flush 重入
	flushing bool

	// dropCount 丢弃事件计数（用于慢消费者警告）
	dropCount atomic.Int64
}

// NewBus 创建新的事件总线
func NewBus() *Bus {
	return &Bus{}
}

// Emit 追加事件到队列，等待下一次 Flush 派发
func (b *Bus) Emit(ev types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.queue = append(b.queue, ev)
}

// Pending 队列中等待派发的事件数
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Flush 按顺序派发队列中的所有事件
//
// 处理函数中再次 Emit 的事件在本次 Flush 中继续派发。
func (b *Bus) Flush() {
	b.mu.Lock()
	if b.flushing {
		b.mu.Unlock()
		return
	}
	b.flushing = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.flushing = false
		b.mu.Unlock()
	}()

	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		ev := b.queue[0]
		b.queue[0] = types.Event{}
		b.queue = b.queue[1:]
		sinks := slices.Clone(b.sinks)
		b.mu.Unlock()

		for _, sub := range sinks {
			sub.deliver(ev)
		}
	}
}

// Subscribe 注册处理函数
//
// 默认在循环协程中同步调用，处理函数不能阻塞，也不能同步调用引擎；
// 需要回调引擎时使用 Async()。
func (b *Bus) Subscribe(handler func(types.Event), opts ...SubscriptionOpt) *Subscription {
	settings := subscriptionSettings{}
	for _, opt := range opts {
		opt(&settings)
	}

	sub := &Subscription{bus: b, handler: handler}
	if settings.async {
		sub.startAsync()
	}
	b.add(sub)
	return sub
}

// SubscribeChan 以带缓冲通道订阅，buf < 1 时使用 16
func (b *Bus) SubscribeChan(buf int) *Subscription {
	if buf < 1 {
		buf = 16
	}
	sub := &Subscription{bus: b, out: make(chan types.Event, buf)}
	b.add(sub)
	return sub
}

func (b *Bus) add(sub *Subscription) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = sub.Close()
		return
	}
	b.sinks = append(b.sinks, sub)
	b.mu.Unlock()
}

// removeSub 移除订阅
func (b *Bus) removeSub(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := slices.Index(b.sinks, sub); i >= 0 {
		b.sinks = slices.Delete(b.sinks, i, i+1)
	}
}

// Subscribers 当前订阅数
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sinks)
}

// Close 关闭总线和所有订阅，丢弃尚未 Flush 的事件
//
// 已派发给异步订阅的事件仍会被处理，Drain 等待其完成。
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.queue = nil
	sinks := b.sinks
	b.sinks = nil
	for _, sub := range sinks {
		if sub.stopped != nil {
			b.draining = append(b.draining, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range sinks {
		_ = sub.Close()
	}
	return nil
}

// Drain 等待 Close 时的异步订阅处理完剩余事件
//
// 处理函数中调用会等到 ctx 结束。
func (b *Bus) Drain(ctx context.Context) error {
	b.mu.Lock()
	subs := b.draining
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case <-sub.Done():
		case <-ctx.Done():
			return fmt.Errorf("eventbus: drain: %w", ctx.Err())
		}
	}
	return nil
}

// dropped 记录一次丢弃
func (b *Bus) dropped(ev types.Event) {
	n := b.dropCount.Add(1)

	// 每丢弃 100 个事件警告一次，避免日志泛滥
	if n%100 == 1 {
		log.Warn("慢消费者检测",
			"dropped", n,
			"kind", ev.Kind,
			"reason", "subscriber buffer full")
	}
}

// Dropped 累计丢弃的事件数
func (b *Bus) Dropped() int64 {
	return b.dropCount.Load()
}

// ============================================================================
// 选项设置
// ============================================================================

type subscriptionSettings struct {
	async bool
}

// SubscriptionOpt 订阅选项
type SubscriptionOpt func(*subscriptionSettings)

// Async 在订阅自己的协程中按顺序调用处理函数
//
// 队列无界，处理函数可以调用引擎的公共方法。
func Async() SubscriptionOpt {
	return func(s *subscriptionSettings) {
		s.async = true
	}
}
