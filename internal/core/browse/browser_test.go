package browse

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-zeroconf/config"
	"github.com/dep2p/go-zeroconf/internal/core/cache"
	"github.com/dep2p/go-zeroconf/internal/core/loop"
	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

const (
	serviceName  = "_http._tcp.local."
	printer1     = "Printer1._http._tcp.local."
	printer1Host = "printer1.local."
)

type harness struct {
	t     *testing.T
	loop  *loop.Loop
	clk   *clock.Mock
	cache *cache.Cache
	br    *Browser

	mu      sync.Mutex
	sent    []*wire.Outgoing
	dsts    []interfaces.Destination
	events  []types.Event
	sendErr error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, clk: clock.NewMock()}
	h.loop = loop.New(h.clk)
	h.loop.Start()
	t.Cleanup(h.loop.Stop)

	c, err := cache.New(256, h.clk)
	require.NoError(t, err)
	h.cache = c

	h.br = New(config.NewConfig(), Deps{
		Loop:  h.loop,
		Cache: c,
		Send: func(out *wire.Outgoing, dst interfaces.Destination) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			if h.sendErr != nil {
				return h.sendErr
			}
			h.sent = append(h.sent, out)
			h.dsts = append(h.dsts, dst)
			return nil
		},
		Emit: func(ev types.Event) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, ev)
		},
	})
	return h
}

func (h *harness) do(fn func()) {
	h.t.Helper()
	require.NoError(h.t, h.loop.Do(context.Background(), fn))
}

func (h *harness) advance(d time.Duration) {
	h.clk.Add(d)
	h.loop.Sync()
}

func (h *harness) start(service string, proto types.Protocol) error {
	var err error
	h.do(func() { err = h.br.Start(service, proto) })
	return err
}

// receive 模拟引擎：记录先进入缓存，再交给浏览器
func (h *harness) receive(pkt interfaces.Packet, recs ...wire.Record) {
	h.do(func() {
		obs := make([]Observation, 0, len(recs))
		for _, rec := range recs {
			v, _ := h.cache.Observe(rec, pkt.IfIndex)
			obs = append(obs, Observation{Record: rec, Verdict: v})
		}
		h.br.HandleRecords(obs, pkt)
	})
}

// sweep 模拟引擎的缓存清理
func (h *harness) sweep() {
	h.do(func() { h.br.HandleExpired(h.cache.Sweep()) })
}

// takeQueries 返回并清空已发送报文中指定类型的问题数
func (h *harness) takeQueries(qtype uint16) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, out := range h.sent {
		for _, q := range out.Questions {
			if q.Type == qtype {
				n++
				break
			}
		}
	}
	h.sent = nil
	h.dsts = nil
	return n
}

func (h *harness) takeSent() []*wire.Outgoing {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.sent
	h.sent = nil
	h.dsts = nil
	return out
}

func (h *harness) takeEvents() []types.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.events
	h.events = nil
	return out
}

func (h *harness) setSendErr(err error) {
	h.mu.Lock()
	h.sendErr = err
	h.mu.Unlock()
}

func (h *harness) services() []types.ServiceRecord {
	var out []types.ServiceRecord
	h.do(func() { out = h.br.Services() })
	return out
}

func v4Packet() interfaces.Packet {
	return interfaces.Packet{
		Src:      &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: wire.Port},
		IfIndex:  1,
		Protocol: types.ProtocolIPv4,
	}
}

func ptr(instance string, ttl uint32) wire.Record {
	return wire.Record{RR: wire.NewPTR(serviceName, instance, ttl)}
}

func srv(instance, host string, port uint16, ttl uint32) wire.Record {
	return wire.Record{RR: wire.NewSRV(instance, host, port, ttl), CacheFlush: true}
}

func txt(instance string, ttl uint32, ss ...string) wire.Record {
	if len(ss) == 0 {
		ss = []string{""}
	}
	return wire.Record{RR: wire.NewTXT(instance, ss, ttl), CacheFlush: true}
}

func addr(host, ip string, ttl uint32) wire.Record {
	return wire.Record{RR: wire.NewAddr(host, netip.MustParseAddr(ip), ttl), CacheFlush: true}
}

func printer1Announcement() []wire.Record {
	return []wire.Record{
		ptr(printer1, 4500),
		srv(printer1, printer1Host, 8080, 120),
		txt(printer1, 4500),
		addr(printer1Host, "10.0.0.5", 120),
	}
}

// ============================================================================
//                              浏览流程
// ============================================================================

func TestBrowser_Printer1Scenario(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))

	h.receive(v4Packet(), printer1Announcement()...)

	events := h.takeEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceAdded, events[0].Kind)
	rec := events[0].Record
	assert.Equal(t, "Printer1", rec.Name)
	assert.Equal(t, "_http._tcp", rec.Type)
	assert.Equal(t, "local", rec.Domain)
	assert.Equal(t, "printer1.local", rec.Host)
	assert.Equal(t, uint16(8080), rec.Port)
	assert.Equal(t, netip.MustParseAddr("10.0.0.5"), rec.AddrV4)
	assert.False(t, rec.AddrV6.IsValid())
	assert.Equal(t, 1, rec.InterfaceIndex)
	assert.Empty(t, rec.Txt)
	added := rec.Key()

	// 重复通告不产生事件
	h.receive(v4Packet(), printer1Announcement()...)
	assert.Empty(t, h.takeEvents())

	// goodbye
	h.receive(v4Packet(), ptr(printer1, 0))
	events = h.takeEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceRemoved, events[0].Kind)
	assert.Equal(t, added, events[0].Record.Key())
	assert.Empty(t, h.services())
}

func TestBrowser_FullGoodbyeEmitsOneRemoval(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))
	h.receive(v4Packet(), printer1Announcement()...)
	h.takeEvents()

	// SRV 在 PTR 之前也只移除一次
	h.receive(v4Packet(),
		srv(printer1, printer1Host, 8080, 0),
		ptr(printer1, 0),
		txt(printer1, 0),
	)
	events := h.takeEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceRemoved, events[0].Kind)

	var resolvers int
	h.do(func() { resolvers = h.br.Session().Resolvers() })
	assert.Zero(t, resolvers)
}

func TestBrowser_StartSendsQueries(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolIPv4))

	sent := h.takeSent()
	require.Len(t, sent, 1)
	require.Len(t, sent[0].Questions, 1)
	assert.Equal(t, serviceName, sent[0].Questions[0].Name)
	assert.Equal(t, dns.TypePTR, sent[0].Questions[0].Type)

	// 1s、2s、4s 翻倍
	h.advance(time.Second)
	assert.Equal(t, 1, h.takeQueries(dns.TypePTR))
	h.advance(time.Second)
	assert.Zero(t, h.takeQueries(dns.TypePTR))
	h.advance(time.Second)
	assert.Equal(t, 1, h.takeQueries(dns.TypePTR))
	h.advance(3 * time.Second)
	assert.Zero(t, h.takeQueries(dns.TypePTR))
	h.advance(time.Second)
	assert.Equal(t, 1, h.takeQueries(dns.TypePTR))
}

func TestBrowser_QueryCarriesKnownAnswers(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))
	h.receive(v4Packet(), printer1Announcement()...)
	h.takeSent()

	h.advance(time.Second)
	sent := h.takeSent()
	require.NotEmpty(t, sent)
	var known []wire.Record
	for _, out := range sent {
		if len(out.Questions) == 1 && out.Questions[0].Type == dns.TypePTR {
			known = out.Answers
		}
	}
	require.Len(t, known, 1)
	assert.Equal(t, printer1, known[0].RR.(*dns.PTR).Ptr)
	assert.LessOrEqual(t, known[0].TTL(), uint32(4500))
}

func TestBrowser_StartRejects(t *testing.T) {
	t.Run("已存在会话", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.start("_http._tcp", types.ProtocolAny))
		err := h.start("_ipp._tcp", types.ProtocolAny)
		require.ErrorIs(t, err, ErrBrowserExists)

		events := h.takeEvents()
		require.Len(t, events, 1)
		assert.Equal(t, types.ErrorBrowserFailed, events[0].Error)
	})

	t.Run("服务类型无效", func(t *testing.T) {
		h := newHarness(t)
		err := h.start("http", types.ProtocolAny)
		require.ErrorIs(t, err, ErrInvalidBrowse)

		var exists bool
		h.do(func() { exists = h.br.Exists() })
		assert.False(t, exists)
		require.Len(t, h.takeEvents(), 1)
	})

	t.Run("协议无效", func(t *testing.T) {
		h := newHarness(t)
		err := h.start("_http._tcp", types.Protocol(9))
		require.ErrorIs(t, err, types.ErrInvalidProtocol)
	})
}

func TestBrowser_Stop(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))

	other := "Printer2._http._tcp.local."
	h.receive(v4Packet(), printer1Announcement()...)
	h.receive(v4Packet(),
		ptr(other, 4500),
		srv(other, "printer2.local.", 631, 120),
		addr("printer2.local.", "10.0.0.6", 120),
	)
	require.Len(t, h.takeEvents(), 2)

	h.do(h.br.Stop)
	events := h.takeEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "Printer1", events[0].Record.Name, "按发现顺序移除")
	assert.Equal(t, "Printer2", events[1].Record.Name)
	for _, ev := range events {
		assert.Equal(t, types.EventServiceRemoved, ev.Kind)
	}

	// 停止后不再有事件和查询
	h.takeSent()
	h.receive(v4Packet(), ptr("Printer3._http._tcp.local.", 4500))
	h.advance(time.Minute)
	assert.Empty(t, h.takeEvents())
	assert.Empty(t, h.takeSent())

	// 可以重新开始
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))
	events = h.takeEvents()
	assert.Len(t, events, 2, "缓存中的实例立即重新发现")
}

func TestBrowser_TransportFailure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))
	h.receive(v4Packet(), printer1Announcement()...)
	h.takeEvents()

	h.setSendErr(errors.New("network down"))
	h.advance(time.Second)

	events := h.takeEvents()
	require.Len(t, events, 2)
	assert.Equal(t, types.EventServiceRemoved, events[0].Kind)
	assert.Equal(t, types.EventError, events[1].Kind)
	assert.Equal(t, types.ErrorBrowserFailed, events[1].Error)
	assert.ErrorIs(t, events[1].Cause, ErrSendFailed)

	var exists bool
	h.do(func() { exists = h.br.Exists() })
	assert.False(t, exists)
}

func TestBrowser_TransportFailedCallback(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))

	cause := errors.New("socket closed")
	h.do(func() { h.br.TransportFailed(cause) })
	events := h.takeEvents()
	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Cause, cause)

	h.do(func() { h.br.TransportFailed(cause) })
	assert.Empty(t, h.takeEvents(), "没有会话时无操作")
}

func TestBrowser_ProtocolFilter(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolIPv6))

	h.receive(v4Packet(), printer1Announcement()...)
	assert.Empty(t, h.takeEvents(), "IPv4 数据包中的 PTR 被过滤")

	v6 := interfaces.Packet{
		Src:      &net.UDPAddr{IP: net.ParseIP("fe80::5"), Port: wire.Port},
		IfIndex:  1,
		Protocol: types.ProtocolIPv6,
	}
	h.receive(v6, ptr(printer1, 4500))
	assert.Empty(t, h.takeEvents(), "只有 IPv4 地址时不满足 IPv6 过滤")

	h.receive(v6, addr(printer1Host, "fe80::5", 120))
	events := h.takeEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceAdded, events[0].Kind)
	assert.Equal(t, netip.MustParseAddr("fe80::5"), events[0].Record.AddrV6)
	assert.False(t, events[0].Record.AddrV4.IsValid())
	assert.Equal(t, types.ProtocolIPv6, events[0].Record.Protocol)
}

func TestBrowser_AddressesFillIndependently(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))
	h.receive(v4Packet(), printer1Announcement()...)
	require.Len(t, h.takeEvents(), 1)

	h.receive(v4Packet(), addr(printer1Host, "fe80::5", 120))
	events := h.takeEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceUpdated, events[0].Kind)
	assert.Equal(t, netip.MustParseAddr("10.0.0.5"), events[0].Record.AddrV4)
	assert.Equal(t, netip.MustParseAddr("fe80::5"), events[0].Record.AddrV6)
	assert.Len(t, h.services(), 1, "同一实例只有一条记录")
}

// ============================================================================
//                              解析器
// ============================================================================

func TestResolver_LaterTxtUpdates(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))

	h.receive(v4Packet(),
		ptr(printer1, 4500),
		srv(printer1, printer1Host, 8080, 120),
		addr(printer1Host, "10.0.0.5", 120),
	)
	events := h.takeEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceAdded, events[0].Kind)
	assert.Empty(t, events[0].Record.Txt, "没有 TXT 时为空列表")

	h.receive(v4Packet(), txt(printer1, 4500, "a=1", "b="))
	events = h.takeEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceUpdated, events[0].Kind)
	assert.Equal(t, map[string]string{"a": "1", "b": ""}, events[0].Record.Txt.Map())
}

func TestResolver_RetriesThenWaitsForPTR(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))
	h.takeSent()

	h.receive(v4Packet(), ptr(printer1, 4500))
	assert.Equal(t, 1, h.takeQueries(dns.TypeSRV), "立即查询 SRV")

	// 重试 3 次：1s、2s、4s
	h.advance(time.Second)
	assert.Equal(t, 1, h.takeQueries(dns.TypeSRV))
	h.advance(2 * time.Second)
	assert.Equal(t, 1, h.takeQueries(dns.TypeSRV))
	h.advance(4 * time.Second)
	assert.Equal(t, 1, h.takeQueries(dns.TypeSRV))
	h.advance(time.Minute)
	assert.Zero(t, h.takeQueries(dns.TypeSRV), "重试用尽后保持 Pending")

	var state ResolverState
	key := types.InstanceKey{Name: "Printer1", InterfaceIndex: 1, Protocol: types.ProtocolAny}
	h.do(func() {
		r, ok := h.br.Session().Resolver(key)
		require.True(t, ok)
		state = r.State()
	})
	assert.Equal(t, ResolverPending, state)

	// 新的 PTR 通告重新开始解析
	h.receive(v4Packet(), ptr(printer1, 4500))
	assert.Equal(t, 1, h.takeQueries(dns.TypeSRV))
	assert.Empty(t, h.takeEvents())
}

func TestResolver_QueriesAddressAfterSRV(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolIPv4))
	h.takeSent()

	h.receive(v4Packet(), ptr(printer1, 4500), srv(printer1, printer1Host, 8080, 120))
	sent := h.takeSent()
	require.Len(t, sent, 1)
	var qtypes []uint16
	for _, q := range sent[0].Questions {
		qtypes = append(qtypes, q.Type)
	}
	assert.ElementsMatch(t, []uint16{dns.TypeA, dns.TypeTXT}, qtypes, "IPv4 过滤只查询 A")

	h.receive(v4Packet(), addr(printer1Host, "10.0.0.5", 120))
	require.Len(t, h.takeEvents(), 1)

	h.advance(time.Second)
	assert.Zero(t, h.takeQueries(dns.TypeA), "解析完成后停止重试")
}

func TestResolver_AddressExpiry(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))
	h.receive(v4Packet(),
		ptr(printer1, 4500),
		srv(printer1, printer1Host, 8080, 120),
		addr(printer1Host, "10.0.0.5", 60),
	)
	require.Len(t, h.takeEvents(), 1)

	h.advance(60 * time.Second)
	h.takeSent()
	h.sweep()

	events := h.takeEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceRemoved, events[0].Kind)
	assert.Equal(t, 1, h.takeQueries(dns.TypeA), "回到 Pending 重新查询地址")

	var resolvers int
	h.do(func() { resolvers = h.br.Session().Resolvers() })
	assert.Equal(t, 1, resolvers, "解析器保留")

	h.receive(v4Packet(), addr(printer1Host, "10.0.0.7", 120))
	events = h.takeEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceAdded, events[0].Kind)
	assert.Equal(t, netip.MustParseAddr("10.0.0.7"), events[0].Record.AddrV4)
}

func TestResolver_PTRExpiry(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))
	h.receive(v4Packet(),
		ptr(printer1, 10),
		srv(printer1, printer1Host, 8080, 120),
		addr(printer1Host, "10.0.0.5", 120),
	)
	require.Len(t, h.takeEvents(), 1)

	h.advance(10 * time.Second)
	h.sweep()

	events := h.takeEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventServiceRemoved, events[0].Kind)

	var resolvers int
	h.do(func() { resolvers = h.br.Session().Resolvers() })
	assert.Zero(t, resolvers)
}

func TestBrowser_Refresh(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))
	h.receive(v4Packet(),
		ptr(printer1, 100),
		srv(printer1, printer1Host, 8080, 120),
		addr(printer1Host, "10.0.0.5", 120),
	)
	h.advance(79 * time.Second)
	h.takeSent()

	h.do(h.br.Refresh)
	assert.Empty(t, h.takeSent(), "未到 80%")

	h.clk.Add(time.Second)
	h.do(h.br.Refresh)
	assert.Equal(t, 1, h.takeQueries(dns.TypePTR))

	h.do(h.br.Refresh)
	assert.Zero(t, h.takeQueries(dns.TypePTR), "每条记录只刷新一次")
}

func TestBrowser_UncachedGoodbyeIgnored(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))
	h.takeSent()

	h.receive(v4Packet(), ptr(printer1, 0))

	var resolvers int
	h.do(func() { resolvers = h.br.Session().Resolvers() })
	assert.Zero(t, resolvers)
	assert.Zero(t, h.takeQueries(dns.TypeSRV))
	assert.Empty(t, h.takeEvents())

	// 其他接口上的 goodbye 不影响已发现的实例
	h.receive(v4Packet(), printer1Announcement()...)
	require.Len(t, h.takeEvents(), 1)
	other := v4Packet()
	other.IfIndex = 2
	h.receive(other, ptr(printer1, 0))
	h.do(func() { resolvers = h.br.Session().Resolvers() })
	assert.Equal(t, 1, resolvers)
	assert.Empty(t, h.takeEvents())
	assert.Len(t, h.services(), 1)
}

func TestBrowser_EventsInDiscoveryOrder(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.start("_http._tcp", types.ProtocolAny))

	names := []string{"Printer1", "Printer2", "Printer3", "Printer4", "Printer5"}
	var recs []wire.Record
	for _, name := range names {
		recs = append(recs, ptr(name+"._http._tcp.local.", 4500))
	}
	for _, name := range names {
		recs = append(recs, srv(name+"._http._tcp.local.", printer1Host, 8080, 120))
	}
	recs = append(recs, addr(printer1Host, "10.0.0.5", 120))
	h.receive(v4Packet(), recs...)

	var added []string
	for _, ev := range h.takeEvents() {
		require.Equal(t, types.EventServiceAdded, ev.Kind)
		added = append(added, ev.Record.Name)
	}
	assert.Equal(t, names, added)

	// 只有共享主机的地址变化时，按发现顺序派发更新
	h.receive(v4Packet(), addr(printer1Host, "fe80::5", 120))
	var updated []string
	for _, ev := range h.takeEvents() {
		require.Equal(t, types.EventServiceUpdated, ev.Kind)
		updated = append(updated, ev.Record.Name)
	}
	assert.Equal(t, names, updated)

	h.do(func() { h.br.Stop() })
	var removed []string
	for _, ev := range h.takeEvents() {
		removed = append(removed, ev.Record.Name)
	}
	assert.Equal(t, names, removed)
}
