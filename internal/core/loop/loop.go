// Package loop 实现引擎的单协程事件循环
//
// 数据包处理、定时器与公共 API 调用都在同一个协程中执行，
// 因此引擎内部状态无需加锁：
//   - Post 投递任务（任意协程，非阻塞，无界 FIFO）
//   - Do 投递任务并等待完成
//   - AfterFunc 注册由循环拥有的定时器（只能在循环协程中调用）
//   - Sync 屏障：先执行所有到期定时器，再等待之前投递的任务完成
//
// 时间来自 clock.Clock，测试中使用 clock.Mock：
//
//	mock.Add(250 * time.Millisecond)
//	l.Sync()
package loop

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-zeroconf/internal/util/logger"
)

var log = logger.Logger("core/loop")

// ErrClosed 事件循环已停止
var ErrClosed = errors.New("loop: closed")

type task struct {
	fn   func()
	done chan struct{}
}

// Loop 事件循环
type Loop struct {
	clk       clock.Clock
	afterEach func()

	mu     sync.Mutex
	tasks  []task
	closed bool
	wake   chan struct{}

	stop chan struct{}
	done chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	// 以下字段只在循环协程中访问
	timers timerHeap
	seq    uint64
	timer  *clock.Timer
	armed  time.Time
}

// Option 循环选项
type Option func(*Loop)

// WithAfterEach 每个任务或一批到期定时器执行后调用 fn
//
// 引擎用它在每一步之后派发事件队列。
func WithAfterEach(fn func()) Option {
	return func(l *Loop) {
		l.afterEach = fn
	}
}

// New 创建事件循环，需要调用 Start 才会运行
func New(clk clock.Clock, opts ...Option) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	l := &Loop{
		clk:  clk,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Clock 返回循环使用的时钟
func (l *Loop) Clock() clock.Clock {
	return l.clk
}

// Now 当前时间
func (l *Loop) Now() time.Time {
	return l.clk.Now()
}

// Start 启动循环协程，重复调用无效
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		go l.run()
	})
}

// Stop 停止循环并等待循环协程退出
//
// 尚未执行的任务被丢弃，等待中的 Do 返回 ErrClosed。
// 不能在循环协程中调用。
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.stop)
	})
	// 未启动的循环直接结束
	l.startOnce.Do(func() { close(l.done) })
	<-l.done
}

// Done 循环退出后关闭
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post 投递任务，循环已停止时返回 false
func (l *Loop) Post(fn func()) bool {
	return l.post(task{fn: fn})
}

func (l *Loop) post(t task) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, t)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do 投递任务并等待其执行完成（包括之后的 afterEach）
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.post(task{fn: fn, done: done}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync 等待所有已到期的定时器和之前投递的任务执行完毕
func (l *Loop) Sync() {
	_ = l.Do(context.Background(), func() {})
}

func (l *Loop) run() {
	defer close(l.done)
	defer l.disarm()

	for {
		l.runDue()
		l.arm()

		select {
		case <-l.stop:
			return
		default:
		}

		if t, ok := l.pop(); ok {
			l.exec(t)
			continue
		}

		var timerC <-chan time.Time
		if l.timer != nil {
			timerC = l.timer.C
		}
		select {
		case <-l.stop:
			return
		case <-l.wake:
		case <-timerC:
			l.armed = time.Time{}
			l.timer = nil
		}
	}
}

func (l *Loop) pop() (task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return task{}, false
	}
	t := l.tasks[0]
	l.tasks[0] = task{}
	l.tasks = l.tasks[1:]
	return t, true
}

func (l *Loop) exec(t task) {
	l.safeCall(t.fn)
	l.after()
	if t.done != nil {
		close(t.done)
	}
}

func (l *Loop) after() {
	if l.afterEach != nil {
		l.safeCall(l.afterEach)
	}
}

func (l *Loop) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("事件循环任务 panic", "panic", r)
		}
	}()
	fn()
}

// ============================================================================
//                              定时器
// ============================================================================

// Timer 循环拥有的定时器
type Timer struct {
	loop    *Loop
	when    time.Time
	seq     uint64
	fn      func()
	index   int
	stopped bool
}

// Stop 取消定时器并从堆中移除，返回是否在触发前取消
//
// 只能在循环协程中调用。
func (t *Timer) Stop() bool {
	if t == nil || t.stopped {
		return false
	}
	t.stopped = true
	if t.index < 0 {
		return false
	}
	heap.Remove(&t.loop.timers, t.index)
	return true
}

// AfterFunc 在 d 之后于循环协程中执行 fn，只能在循环协程中调用
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	l.seq++
	t := &Timer{loop: l, when: l.clk.Now().Add(d), seq: l.seq, fn: fn}
	heap.Push(&l.timers, t)
	return t
}

// runDue 按到期时间顺序执行所有到期定时器
func (l *Loop) runDue() {
	ran := false
	for len(l.timers) > 0 {
		next := l.timers[0]
		if next.stopped {
			heap.Pop(&l.timers)
			continue
		}
		if next.when.After(l.clk.Now()) {
			break
		}
		heap.Pop(&l.timers)
		next.stopped = true
		l.safeCall(next.fn)
		ran = true
	}
	if ran {
		l.after()
	}
}

// arm 让底层时钟定时器指向最早的未取消定时器
func (l *Loop) arm() {
	for len(l.timers) > 0 && l.timers[0].stopped {
		heap.Pop(&l.timers)
	}
	if len(l.timers) == 0 {
		l.disarm()
		return
	}
	when := l.timers[0].when
	if l.timer != nil && l.armed.Equal(when) {
		return
	}
	l.disarm()
	l.armed = when
	l.timer = l.clk.Timer(when.Sub(l.clk.Now()))
}

func (l *Loop) disarm() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.armed = time.Time{}
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
