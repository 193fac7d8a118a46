package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-zeroconf/pkg/interfaces"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

// ============================================================================
// Subscription 实现
// ============================================================================

// Subscription 订阅
type Subscription struct {
	bus     *Bus
	handler func(types.Event)

	// out 通道订阅的输出
	out chan types.Event

	// async 订阅的无界队列
	mu      sync.Mutex
	pending []types.Event
	wake    chan struct{}
	stopped chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool
}

// 确保实现接口
var _ interfaces.Subscription = (*Subscription)(nil)

// Out 返回事件通道，仅对 SubscribeChan 创建的订阅有效
func (s *Subscription) Out() <-chan types.Event {
	return s.out
}

// Close 取消订阅
//
// Close 是并发安全的，可以多次调用。
// 关闭后会：
//  1. 从总线移除订阅，不再接收新事件
//  2. 关闭输出通道，已缓冲的事件仍可读出
//  3. 异步订阅处理完已入队的事件后退出协程，Done 随之关闭
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.bus.removeSub(s)

		s.mu.Lock()
		s.closed.Store(true)
		if s.out != nil {
			close(s.out)
		}
		if s.wake != nil {
			close(s.wake)
		}
		s.mu.Unlock()
	})
	return nil
}

// Done 异步订阅的协程退出后关闭，其他订阅返回 nil
func (s *Subscription) Done() <-chan struct{} {
	return s.stopped
}

func (s *Subscription) deliver(ev types.Event) {
	switch {
	case s.out != nil:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed.Load() {
			return
		}
		select {
		case s.out <- ev:
		default:
			s.bus.dropped(ev)
		}

	case s.wake != nil:
		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			return
		}
		s.pending = append(s.pending, ev)
		select {
		case s.wake <- struct{}{}:
		default:
		}
		s.mu.Unlock()

	default:
		if !s.closed.Load() {
			s.call(ev)
		}
	}
}

func (s *Subscription) call(ev types.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("事件处理函数 panic", "kind", ev.Kind, "panic", r)
		}
	}()
	s.handler(ev)
}

func (s *Subscription) startAsync() {
	s.wake = make(chan struct{}, 1)
	s.stopped = make(chan struct{})
	go s.runAsync()
}

func (s *Subscription) runAsync() {
	defer close(s.stopped)
	for range s.wake {
		s.drain()
	}
	s.drain()
}

// drain 按顺序处理队列中的全部事件
func (s *Subscription) drain() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.pending = nil
			s.mu.Unlock()
			return
		}
		ev := s.pending[0]
		s.pending[0] = types.Event{}
		s.pending = s.pending[1:]
		s.mu.Unlock()
		s.call(ev)
	}
}
