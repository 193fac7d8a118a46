package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-zeroconf/config"
	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/internal/util/logger"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

var log = logger.Logger("core/transport")

// readBufferSize 接收缓冲区，不小于配置允许的最大报文
const readBufferSize = 9000

// ============================================================================
//                              UDP 实现
// ============================================================================

// UDP mDNS 多播 UDP 传输
type UDP struct {
	cfg config.TransportConfig

	mu     sync.Mutex
	conn4  *ipv4.PacketConn
	conn6  *ipv6.PacketConn
	ifaces []net.Interface
	group  *errgroup.Group

	listening atomic.Bool
	closed    atomic.Bool
}

// 确保实现接口
var _ interfaces.Transport = (*UDP)(nil)

// NewUDP 创建 UDP 传输，Listen 时才打开套接字
func NewUDP(cfg config.TransportConfig) *UDP {
	return &UDP{cfg: cfg}
}

// Listen 打开套接字、加入多播组并启动接收协程
func (t *UDP) Listen(h interfaces.PacketHandler) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if !t.listening.CompareAndSwap(false, true) {
		return ErrAlreadyListening
	}

	all, err := net.Interfaces()
	if err != nil {
		t.listening.Store(false)
		return fmt.Errorf("transport: list interfaces: %w", err)
	}
	ifaces := selectInterfaces(all, t.cfg.Interfaces)
	if len(ifaces) == 0 {
		t.listening.Store(false)
		return ErrNoInterfaces
	}

	var errs error
	var conn4 *ipv4.PacketConn
	var conn6 *ipv6.PacketConn
	if t.cfg.EnableIPv4 {
		conn4, err = listen4(ifaces)
		errs = multierr.Append(errs, err)
	}
	if t.cfg.EnableIPv6 {
		conn6, err = listen6(ifaces)
		errs = multierr.Append(errs, err)
	}
	if conn4 == nil && conn6 == nil {
		t.listening.Store(false)
		if errs == nil {
			errs = ErrNoInterfaces
		}
		return errs
	}
	if errs != nil {
		log.Warn("部分地址族不可用", "error", errs)
	}

	var readers []familyReader
	if conn4 != nil {
		readers = append(readers, reader4{conn4})
	}
	if conn6 != nil {
		readers = append(readers, reader6{conn6})
	}
	t.mu.Lock()
	t.conn4, t.conn6, t.ifaces = conn4, conn6, ifaces
	t.mu.Unlock()
	g := t.serve(readers, h)
	t.mu.Lock()
	t.group = g
	t.mu.Unlock()

	names := make([]string, 0, len(ifaces))
	for _, ifi := range ifaces {
		names = append(names, ifi.Name)
	}
	log.Info("mDNS 传输已启动", "interfaces", names, "ipv4", conn4 != nil, "ipv6", conn6 != nil)
	return nil
}

func listenAddr(host string) string {
	return net.JoinHostPort(host, strconv.Itoa(wire.Port))
}

func listen4(ifaces []net.Interface) (*ipv4.PacketConn, error) {
	lc := net.ListenConfig{Control: reuseControl}
	c, err := lc.ListenPacket(context.Background(), "udp4", listenAddr("0.0.0.0"))
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp4: %w", err)
	}
	p := ipv4.NewPacketConn(c)

	joined := 0
	group := &net.UDPAddr{IP: wire.IPv4Group}
	for i := range ifaces {
		if err := p.JoinGroup(&ifaces[i], group); err != nil {
			log.Debug("加入 IPv4 多播组失败", "interface", ifaces[i].Name, "error", err)
			continue
		}
		joined++
	}
	if joined == 0 {
		_ = c.Close()
		return nil, fmt.Errorf("%w: ipv4", ErrNoInterfaces)
	}

	err = multierr.Combine(
		p.SetControlMessage(ipv4.FlagInterface, true),
		p.SetMulticastTTL(255),
		p.SetMulticastLoopback(true),
	)
	if err != nil {
		log.Debug("设置 IPv4 套接字选项失败", "error", err)
	}
	return p, nil
}

func listen6(ifaces []net.Interface) (*ipv6.PacketConn, error) {
	lc := net.ListenConfig{Control: reuseControl}
	c, err := lc.ListenPacket(context.Background(), "udp6", listenAddr("::"))
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp6: %w", err)
	}
	p := ipv6.NewPacketConn(c)

	joined := 0
	group := &net.UDPAddr{IP: wire.IPv6Group}
	for i := range ifaces {
		if err := p.JoinGroup(&ifaces[i], group); err != nil {
			log.Debug("加入 IPv6 多播组失败", "interface", ifaces[i].Name, "error", err)
			continue
		}
		joined++
	}
	if joined == 0 {
		_ = c.Close()
		return nil, fmt.Errorf("%w: ipv6", ErrNoInterfaces)
	}

	err = multierr.Combine(
		p.SetControlMessage(ipv6.FlagInterface, true),
		p.SetMulticastHopLimit(255),
		p.SetMulticastLoopback(true),
	)
	if err != nil {
		log.Debug("设置 IPv6 套接字选项失败", "error", err)
	}
	return p, nil
}

// ============================================================================
//                              接收
// ============================================================================

// familyReader 单个地址族的接收端
type familyReader interface {
	Protocol() types.Protocol
	ReadPacket(buf []byte) (n, ifIndex int, src net.Addr, err error)
	Close() error
}

type reader4 struct{ *ipv4.PacketConn }

func (reader4) Protocol() types.Protocol { return types.ProtocolIPv4 }

func (r reader4) ReadPacket(buf []byte) (int, int, net.Addr, error) {
	n, cm, src, err := r.ReadFrom(buf)
	if cm == nil {
		return n, 0, src, err
	}
	return n, cm.IfIndex, src, err
}

type reader6 struct{ *ipv6.PacketConn }

func (reader6) Protocol() types.Protocol { return types.ProtocolIPv6 }

func (r reader6) ReadPacket(buf []byte) (int, int, net.Addr, error) {
	n, cm, src, err := r.ReadFrom(buf)
	if cm == nil {
		return n, 0, src, err
	}
	return n, cm.IfIndex, src, err
}

// serve 为每个地址族启动接收协程
//
// 任一地址族读取失败时关闭全部接收端，所有协程退出后通过
// HandleTransportError 报告第一个错误。主动 Close 不报告。
func (t *UDP) serve(readers []familyReader, h interfaces.PacketHandler) *errgroup.Group {
	g, ctx := errgroup.WithContext(context.Background())
	for _, r := range readers {
		g.Go(func() error { return t.recv(r, h) })
	}
	go func() {
		<-ctx.Done()
		if t.closed.Load() {
			return
		}
		for _, r := range readers {
			_ = r.Close()
		}
	}()
	go func() {
		if err := g.Wait(); err != nil && !t.closed.Load() {
			log.Error("接收失败", "error", err)
			h.HandleTransportError(err)
		}
	}()
	return g
}

func (t *UDP) recv(r familyReader, h interfaces.PacketHandler) error {
	buf := make([]byte, readBufferSize)
	for {
		n, ifIndex, src, err := r.ReadPacket(buf)
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("transport: read %s: %w", r.Protocol(), err)
		}
		t.deliver(h, buf[:n], src, ifIndex, r.Protocol())
	}
}

// deliver 过滤未选择接口上的数据包并交给处理器
func (t *UDP) deliver(h interfaces.PacketHandler, data []byte, src net.Addr, ifIndex int, proto types.Protocol) {
	if ifIndex != 0 && !t.hasInterface(ifIndex) {
		return
	}
	udp, ok := src.(*net.UDPAddr)
	if !ok {
		return
	}
	h.HandlePacket(interfaces.Packet{
		Data:     append([]byte(nil), data...),
		Src:      udp,
		IfIndex:  ifIndex,
		Protocol: proto,
	})
}

func (t *UDP) hasInterface(index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ifi := range t.ifaces {
		if ifi.Index == index {
			return true
		}
	}
	return false
}

// ============================================================================
//                              发送
// ============================================================================

// Send 发送数据包
//
// dst.Addr 为 nil 时发往 dst.IfIndex（0 表示所有接口）上 dst.Protocol
// 对应地址族的多播组；否则单播到 dst.Addr。
func (t *UDP) Send(ctx context.Context, data []byte, dst interfaces.Destination) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.closed.Load() {
		return ErrClosed
	}
	t.mu.Lock()
	conn4, conn6, ifaces := t.conn4, t.conn6, t.ifaces
	t.mu.Unlock()
	if conn4 == nil && conn6 == nil {
		return ErrNotListening
	}

	if !dst.Multicast() {
		if dst.Addr.IP.To4() != nil {
			if conn4 == nil {
				return fmt.Errorf("%w: ipv4", ErrFamilyDisabled)
			}
			_, err := conn4.WriteTo(data, &ipv4.ControlMessage{IfIndex: dst.IfIndex}, dst.Addr)
			return err
		}
		if conn6 == nil {
			return fmt.Errorf("%w: ipv6", ErrFamilyDisabled)
		}
		_, err := conn6.WriteTo(data, &ipv6.ControlMessage{IfIndex: dst.IfIndex}, dst.Addr)
		return err
	}

	var errs error
	sent := 0
	for _, ifi := range ifaces {
		if dst.IfIndex != 0 && ifi.Index != dst.IfIndex {
			continue
		}
		if conn4 != nil && dst.Protocol.Matches(types.ProtocolIPv4) {
			if _, err := conn4.WriteTo(data, &ipv4.ControlMessage{IfIndex: ifi.Index}, wire.IPv4Addr); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s/ipv4: %w", ifi.Name, err))
			} else {
				sent++
			}
		}
		if conn6 != nil && dst.Protocol.Matches(types.ProtocolIPv6) {
			if _, err := conn6.WriteTo(data, &ipv6.ControlMessage{IfIndex: ifi.Index}, wire.IPv6Addr); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s/ipv6: %w", ifi.Name, err))
			} else {
				sent++
			}
		}
	}
	// 部分接口发送失败不影响其他接口
	if sent > 0 {
		if errs != nil {
			log.Debug("部分接口发送失败", "error", errs)
		}
		return nil
	}
	if errs == nil {
		return ErrNoInterfaces
	}
	return errs
}

// Interfaces 返回使用中的接口及其单播地址
func (t *UDP) Interfaces() ([]types.Interface, error) {
	t.mu.Lock()
	ifaces := t.ifaces
	v4, v6 := t.conn4 != nil, t.conn6 != nil
	t.mu.Unlock()

	out := make([]types.Interface, 0, len(ifaces))
	for _, ifi := range ifaces {
		addrs, err := ifi.Addrs()
		if err != nil {
			return nil, fmt.Errorf("transport: addresses of %s: %w", ifi.Name, err)
		}
		out = append(out, types.Interface{
			Index: ifi.Index,
			Name:  ifi.Name,
			Addrs: unicastAddrs(addrs, v4, v6),
		})
	}
	return out, nil
}

// Close 关闭套接字并等待接收协程退出
func (t *UDP) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.mu.Lock()
	conn4, conn6, g := t.conn4, t.conn6, t.group
	t.mu.Unlock()

	var err error
	if conn4 != nil {
		err = multierr.Append(err, ignoreClosed(conn4.Close()))
	}
	if conn6 != nil {
		err = multierr.Append(err, ignoreClosed(conn6.Close()))
	}
	if g != nil {
		// 读取错误已经通过 HandleTransportError 报告
		_ = g.Wait()
	}
	log.Info("mDNS 传输已关闭")
	return err
}

// ignoreClosed 接收失败时套接字可能已被关闭
func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
