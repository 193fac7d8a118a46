// Package memnet 提供内存中的多播链路
//
// 同一 Network 上的 Transport 共享一条链路：多播数据包同步投递给所有
// 拥有对应地址族地址的端点（包括发送方自身，与真实多播回环一致），
// 单播按目标地址投递。用于多引擎测试与示例。
package memnet

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"

	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

var (
	// ErrClosed 端点已关闭
	ErrClosed = errors.New("memnet: closed")

	// ErrNotListening 端点尚未调用 Listen
	ErrNotListening = errors.New("memnet: not listening")

	// ErrUnreachable 单播目标不存在
	ErrUnreachable = errors.New("memnet: destination unreachable")
)

// Network 内存链路
type Network struct {
	mu    sync.RWMutex
	nodes []*Transport
}

// NewNetwork 创建内存链路
func NewNetwork() *Network {
	return &Network{}
}

// Transport 创建链路上的端点
//
// 每个端点只有一个接口，ifIndex 与 addrs 为该接口的索引与地址。
func (n *Network) Transport(name string, ifIndex int, addrs ...netip.Addr) *Transport {
	t := &Transport{
		net: n,
		ifc: types.Interface{Index: ifIndex, Name: name, Addrs: addrs},
	}
	n.mu.Lock()
	n.nodes = append(n.nodes, t)
	n.mu.Unlock()
	return t
}

func (n *Network) remove(t *Transport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, node := range n.nodes {
		if node == t {
			n.nodes = append(n.nodes[:i], n.nodes[i+1:]...)
			return
		}
	}
}

func (n *Network) snapshot() []*Transport {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Transport(nil), n.nodes...)
}

// ============================================================================
//                              Transport
// ============================================================================

// Transport 内存链路端点
type Transport struct {
	net *Network
	ifc types.Interface

	mu      sync.Mutex
	handler interfaces.PacketHandler
	sendErr error
	closed  bool
	sent    int
}

// 确保实现接口
var _ interfaces.Transport = (*Transport)(nil)

// Listen 注册数据包处理器
func (t *Transport) Listen(h interfaces.PacketHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.handler = h
	return nil
}

// Send 投递数据包
func (t *Transport) Send(ctx context.Context, data []byte, dst interfaces.Destination) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	switch {
	case t.closed:
		t.mu.Unlock()
		return ErrClosed
	case t.handler == nil:
		t.mu.Unlock()
		return ErrNotListening
	case t.sendErr != nil:
		err := t.sendErr
		t.mu.Unlock()
		return err
	}
	t.sent++
	t.mu.Unlock()

	if dst.IfIndex != 0 && dst.IfIndex != t.ifc.Index {
		return nil
	}

	if !dst.Multicast() {
		to, ok := netip.AddrFromSlice(dst.Addr.IP)
		if !ok {
			return ErrUnreachable
		}
		to = to.Unmap()
		family := familyOf(to)
		src, ok := t.source(family)
		if !ok {
			return ErrUnreachable
		}
		for _, node := range t.net.snapshot() {
			if node.owns(to) {
				node.receive(data, src, family)
				return nil
			}
		}
		return ErrUnreachable
	}

	for _, family := range []types.Protocol{types.ProtocolIPv4, types.ProtocolIPv6} {
		if !dst.Protocol.Matches(family) {
			continue
		}
		src, ok := t.source(family)
		if !ok {
			continue
		}
		for _, node := range t.net.snapshot() {
			if _, ok := node.source(family); ok {
				node.receive(data, src, family)
			}
		}
	}
	return nil
}

// Interfaces 返回端点的唯一接口
func (t *Transport) Interfaces() ([]types.Interface, error) {
	return []types.Interface{t.ifc}, nil
}

// Close 从链路上移除端点
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.handler = nil
	t.mu.Unlock()
	t.net.remove(t)
	return nil
}

// Fail 模拟传输失败：通知处理器，之后的发送返回 err
func (t *Transport) Fail(err error) {
	t.mu.Lock()
	t.sendErr = err
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h.HandleTransportError(err)
	}
}

// Sent 成功发送的数据包数
func (t *Transport) Sent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

// Inject 模拟从 src 收到数据包
func (t *Transport) Inject(data []byte, src *net.UDPAddr) {
	family := types.ProtocolIPv6
	if src.IP.To4() != nil {
		family = types.ProtocolIPv4
	}
	t.receive(data, src, family)
}

func (t *Transport) receive(data []byte, src *net.UDPAddr, family types.Protocol) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h == nil {
		return
	}
	h.HandlePacket(interfaces.Packet{
		Data:     append([]byte(nil), data...),
		Src:      src,
		IfIndex:  t.ifc.Index,
		Protocol: family,
	})
}

// source 端点在该地址族上的源地址
func (t *Transport) source(family types.Protocol) (*net.UDPAddr, bool) {
	for _, a := range t.ifc.Addrs {
		if familyOf(a) == family {
			return &net.UDPAddr{IP: a.AsSlice(), Port: wire.Port, Zone: a.Zone()}, true
		}
	}
	return nil, false
}

func (t *Transport) owns(addr netip.Addr) bool {
	for _, a := range t.ifc.Addrs {
		if a.WithZone("") == addr.WithZone("") {
			return true
		}
	}
	return false
}

func familyOf(a netip.Addr) types.Protocol {
	if a.Unmap().Is4() {
		return types.ProtocolIPv4
	}
	return types.ProtocolIPv6
}
