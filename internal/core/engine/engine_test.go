package engine

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-zeroconf/config"
	"github.com/dep2p/go-zeroconf/internal/core/eventbus"
	"github.com/dep2p/go-zeroconf/internal/core/metrics"
	"github.com/dep2p/go-zeroconf/internal/core/publish"
	"github.com/dep2p/go-zeroconf/internal/core/transport/memnet"
	"github.com/dep2p/go-zeroconf/internal/mocks"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

type node struct {
	t  *testing.T
	e  *Engine
	tr *memnet.Transport

	mu     sync.Mutex
	events []types.Event
}

func noJitter(time.Duration) time.Duration { return 0 }

func newNode(t *testing.T, link *memnet.Network, clk *clock.Mock, host, ip string, opts ...Option) *node {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Publish.HostName = host

	n := &node{t: t, tr: link.Transport("eth0", 1, netip.MustParseAddr(ip))}
	opts = append([]Option{WithClock(clk), WithJitter(noJitter)}, opts...)
	e, err := New(cfg, n.tr, opts...)
	require.NoError(t, err)
	n.e = e

	e.Bus().Subscribe(func(ev types.Event) {
		n.mu.Lock()
		n.events = append(n.events, ev)
		n.mu.Unlock()
	})
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Stop(context.Background()) })
	return n
}

func (n *node) take() []types.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.events
	n.events = nil
	return out
}

func (n *node) state() publish.State {
	s, err := n.e.PublishState(context.Background())
	require.NoError(n.t, err)
	return s
}

// settle 反复同步各引擎，直到链路上往返的数据包处理完毕
func settle(nodes ...*node) {
	for i := 0; i < 6; i++ {
		for _, n := range nodes {
			n.e.Sync()
		}
	}
}

func advance(clk *clock.Mock, d time.Duration, nodes ...*node) {
	clk.Add(d)
	settle(nodes...)
}

// establish 发布服务并走完探测与通告
func establish(t *testing.T, clk *clock.Mock, n *node, instance string, port uint16, all ...*node) {
	t.Helper()
	require.NoError(t, n.e.StartServicePublish(context.Background(), instance, "_http._tcp", "", port))
	settle(all...)
	for i := 0; i < 3; i++ {
		advance(clk, 250*time.Millisecond, all...)
	}
	advance(clk, time.Second, all...)
	require.Equal(t, publish.StateEstablished, n.state())
}

func kinds(events []types.Event) []types.EventKind {
	out := make([]types.EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

// ============================================================================
//                              发布与浏览
// ============================================================================

func TestEngine_PublishAndBrowse(t *testing.T) {
	ctx := context.Background()
	link := memnet.NewNetwork()
	clk := clock.NewMock()
	a := newNode(t, link, clk, "hosta", "10.0.0.1")
	b := newNode(t, link, clk, "hostb", "10.0.0.2")

	require.NoError(t, a.e.AddServiceTxtRecord(ctx, "path", "/"))
	establish(t, clk, a, "Printer1", 8080, a, b)

	events := a.take()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServicePublished, events[0].Kind)

	exists, err := a.e.PublishExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	// 通告已进入 b 的缓存，浏览立即得到结果
	require.NoError(t, b.e.StartBrowser(ctx, "_http._tcp", types.ProtocolAny))
	settle(a, b)

	events = b.take()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceAdded, events[0].Kind)
	rec := events[0].Record
	assert.Equal(t, "Printer1", rec.Name)
	assert.Equal(t, "_http._tcp", rec.Type)
	assert.Equal(t, "local", rec.Domain)
	assert.Equal(t, "hosta.local", rec.Host)
	assert.Equal(t, uint16(8080), rec.Port)
	assert.Equal(t, 1, rec.InterfaceIndex)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), rec.AddrV4)
	assert.Equal(t, map[string]string{"path": "/"}, rec.Txt.Map())

	services, err := b.e.Services(ctx)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "Printer1", services[0].Name)

	ok, err := b.e.BrowserExists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// 更新 TXT
	advance(clk, 2*time.Second, a, b)
	require.NoError(t, a.e.ClearServiceTxtRecords(ctx))
	require.NoError(t, a.e.AddServiceTxtRecord(ctx, "path", "/v2"))
	require.NoError(t, a.e.UpdateServiceTxtRecords(ctx))
	settle(a, b)

	events = b.take()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceUpdated, events[0].Kind)
	assert.Equal(t, map[string]string{"path": "/v2"}, events[0].Record.Txt.Map())

	// 撤销发布，b 收到 goodbye
	require.NoError(t, a.e.StopServicePublish(ctx))
	settle(a, b)

	events = b.take()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceRemoved, events[0].Kind)
	assert.Equal(t, "Printer1", events[0].Record.Name)

	services, err = b.e.Services(ctx)
	require.NoError(t, err)
	assert.Empty(t, services)
}

func TestEngine_BrowseBeforePublish(t *testing.T) {
	ctx := context.Background()
	link := memnet.NewNetwork()
	clk := clock.NewMock()
	a := newNode(t, link, clk, "hosta", "10.0.0.1")
	b := newNode(t, link, clk, "hostb", "10.0.0.2")

	require.NoError(t, b.e.StartBrowser(ctx, "_http._tcp", types.ProtocolIPv4))
	settle(a, b)
	assert.Empty(t, b.take())

	// 第一次通告即可解析
	require.NoError(t, a.e.StartServicePublish(ctx, "Printer1", "_http._tcp", "local", 8080))
	settle(a, b)
	for i := 0; i < 3; i++ {
		advance(clk, 250*time.Millisecond, a, b)
	}

	events := b.take()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceAdded, events[0].Kind)
	assert.Equal(t, types.ProtocolIPv4, events[0].Record.Protocol)

	// 结束浏览派发 serviceRemoved
	require.NoError(t, b.e.StopBrowser(ctx))
	events = b.take()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceRemoved, events[0].Kind)

	ok, err := b.e.BrowserExists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_StopEmitsRemovals(t *testing.T) {
	ctx := context.Background()
	link := memnet.NewNetwork()
	clk := clock.NewMock()
	a := newNode(t, link, clk, "hosta", "10.0.0.1")
	b := newNode(t, link, clk, "hostb", "10.0.0.2")

	establish(t, clk, a, "Printer1", 8080, a, b)
	require.NoError(t, b.e.StartBrowser(ctx, "_http._tcp", types.ProtocolAny))
	settle(a, b)
	require.Equal(t, []types.EventKind{types.EventServiceAdded}, kinds(b.take()))

	require.NoError(t, b.e.Stop(ctx))
	assert.Equal(t, []types.EventKind{types.EventServiceRemoved}, kinds(b.take()))

	// 停止后的调用失败
	assert.ErrorIs(t, b.e.StartBrowser(ctx, "_http._tcp", types.ProtocolAny), ErrStopped)
	assert.ErrorIs(t, b.e.Start(ctx), ErrStopped)
	assert.NoError(t, b.e.Stop(ctx), "重复停止无操作")
}

// ============================================================================
//                              冲突
// ============================================================================

func TestEngine_NameConflict(t *testing.T) {
	ctx := context.Background()
	link := memnet.NewNetwork()
	clk := clock.NewMock()
	a := newNode(t, link, clk, "hosta", "10.0.0.1")
	c := newNode(t, link, clk, "hostc", "10.0.0.3")

	establish(t, clk, a, "Printer1", 8080, a, c)
	a.take()

	// a 以单播回答 c 的第一次探测，c 检测到冲突
	require.NoError(t, c.e.StartServicePublish(ctx, "Printer1", "_http._tcp", "local", 9090))
	settle(a, c)

	events := c.take()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventError, events[0].Kind)
	assert.Equal(t, types.ErrorServiceNameCollision, events[0].Error)
	assert.ErrorIs(t, events[0].Cause, publish.ErrNameConflict)

	exists, err := c.e.PublishExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	// a 不受影响
	assert.Equal(t, publish.StateEstablished, a.state())
	assert.Empty(t, a.take())
}

// ============================================================================
//                              错误处理
// ============================================================================

type countingReporter struct {
	metrics.Nop
	decodeErrors atomic.Int64
	recv         atomic.Int64
}

func (r *countingReporter) LogDecodeError() { r.decodeErrors.Add(1) }

func (r *countingReporter) LogRecvPacket(types.Protocol, int) { r.recv.Add(1) }

func TestEngine_DecodeErrorDropped(t *testing.T) {
	link := memnet.NewNetwork()
	clk := clock.NewMock()
	rep := &countingReporter{}
	b := newNode(t, link, clk, "hostb", "10.0.0.2", WithMetrics(rep))

	b.tr.Inject([]byte{0x01, 0x02, 0x03}, &net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 5353})
	settle(b)

	assert.Equal(t, int64(1), rep.recv.Load())
	assert.Equal(t, int64(1), rep.decodeErrors.Load())
	assert.Empty(t, b.take())
}

func TestEngine_TransportFailure(t *testing.T) {
	ctx := context.Background()
	link := memnet.NewNetwork()
	clk := clock.NewMock()
	a := newNode(t, link, clk, "hosta", "10.0.0.1")

	require.NoError(t, a.e.StartServicePublish(ctx, "Printer1", "_http._tcp", "local", 8080))
	require.NoError(t, a.e.StartBrowser(ctx, "_ipp._tcp", types.ProtocolAny))
	settle(a)
	a.take()

	cause := errors.New("link down")
	a.tr.Fail(cause)
	settle(a)

	events := a.take()
	require.Len(t, events, 2)
	assert.Equal(t, types.ErrorServiceRegistrationFailed, events[0].Error)
	assert.Equal(t, types.ErrorBrowserFailed, events[1].Error)
	assert.ErrorIs(t, events[1].Cause, cause)

	exists, err := a.e.PublishExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
	ok, err := a.e.BrowserExists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_SendFailure(t *testing.T) {
	ctx := context.Background()
	tr := mocks.NewTransport()
	tr.IfacesValue = []types.Interface{{Index: 1, Name: "eth0", Addrs: []netip.Addr{netip.MustParseAddr("10.0.0.1")}}}
	tr.SendFunc = func(context.Context, []byte, interfaces.Destination) error {
		return errors.New("no route")
	}

	e, err := New(nil, tr, WithClock(clock.NewMock()), WithJitter(noJitter))
	require.NoError(t, err)
	var got []types.Event
	var mu sync.Mutex
	e.Bus().Subscribe(func(ev types.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	require.NoError(t, e.Start(ctx))
	defer e.Stop(ctx)

	require.NoError(t, e.StartServicePublish(ctx, "Printer1", "_http._tcp", "local", 8080))
	e.Sync()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, types.ErrorServiceRegistrationFailed, got[0].Error)
	assert.ErrorIs(t, got[0].Cause, publish.ErrSendFailed)
	assert.NotEmpty(t, tr.Sent())
}

func TestEngine_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tr := mocks.NewTransport()

	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrNilTransport)

	bad := config.NewConfig()
	bad.Cache.Size = 0
	_, err = New(bad, tr)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	e, err := New(nil, tr)
	require.NoError(t, err)
	assert.ErrorIs(t, e.StartServicePublish(ctx, "a", "_http._tcp", "", 80), ErrNotStarted)

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Start(ctx), "重复启动无操作")
	assert.NotNil(t, tr.Handler())

	require.NoError(t, e.Stop(ctx))
	assert.Equal(t, 1, tr.CloseCalls)
}

func TestEngine_ListenFailure(t *testing.T) {
	tr := mocks.NewTransport()
	tr.ListenFunc = func(interfaces.PacketHandler) error { return errors.New("bind") }

	e, err := New(nil, tr)
	require.NoError(t, err)
	require.Error(t, e.Start(context.Background()))
	assert.ErrorIs(t, e.Start(context.Background()), ErrStopped)
}

func TestEngine_StartCanceledReleases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	tr := mocks.NewTransport()
	tr.InterfacesFunc = func() ([]types.Interface, error) {
		cancel()
		<-release
		return nil, nil
	}
	tr.CloseFunc = func() error {
		close(release)
		return nil
	}

	e, err := New(nil, tr)
	require.NoError(t, err)
	require.ErrorIs(t, e.Start(ctx), context.Canceled)
	assert.Equal(t, 1, tr.CloseCalls, "启动失败时关闭传输")

	assert.ErrorIs(t, e.Start(context.Background()), ErrStopped)
	assert.ErrorIs(t, e.StartBrowser(context.Background(), "_http._tcp", types.ProtocolAny), ErrStopped)
	require.NoError(t, e.Stop(context.Background()))
	assert.Equal(t, 1, tr.CloseCalls)
}

// ============================================================================
//                              Fx 模块
// ============================================================================

func TestModule(t *testing.T) {
	link := memnet.NewNetwork()
	var e *Engine
	app := fxtest.New(t,
		fx.Provide(func() *config.Config {
			cfg := config.NewConfig()
			cfg.Publish.HostName = "fxhost"
			return cfg
		}),
		fx.Provide(fx.Annotate(
			func() *memnet.Transport { return link.Transport("eth0", 1, netip.MustParseAddr("10.0.0.7")) },
			fx.As(new(interfaces.Transport)),
		)),
		eventbus.Module(),
		Module(),
		fx.Populate(&e),
	)
	app.RequireStart()
	require.NotNil(t, e)
	assert.Equal(t, "fxhost", e.Config().Publish.HostName)

	ok, err := e.PublishExists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	app.RequireStop()
	_, err = e.PublishExists(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}
