package types

import (
	"fmt"
	"net/netip"
)

// ============================================================================
//                              InstanceKey - 实例标识
// ============================================================================

// InstanceKey 服务实例在浏览会话中的唯一标识
//
// Protocol 取浏览会话的过滤协议，因此同一接口上同一实例的
// IPv4 与 IPv6 应答更新的是同一条记录。
type InstanceKey struct {
	Name           string
	InterfaceIndex int
	Protocol       Protocol
}

// String 返回可读表示，用于日志
func (k InstanceKey) String() string {
	return fmt.Sprintf("%s%%%d/%s", k.Name, k.InterfaceIndex, k.Protocol)
}

// ============================================================================
//                              ServiceRecord - 服务记录
// ============================================================================

// ServiceRecord 已解析的服务实例
type ServiceRecord struct {
	// Name 实例名（未转义，如 "My Printer"）
	Name string

	// Type 服务类型（如 "_http._tcp"）
	Type string

	// Domain 域（如 "local"）
	Domain string

	// Host SRV 目标主机名（如 "printer1.local"）
	Host string

	// Port SRV 端口
	Port uint16

	// InterfaceIndex 发现该实例的网络接口
	InterfaceIndex int

	// Protocol 浏览会话的过滤协议
	Protocol Protocol

	// AddrV4 IPv4 地址，未知时为零值
	AddrV4 netip.Addr

	// AddrV6 IPv6 地址，未知时为零值
	AddrV6 netip.Addr

	// Txt TXT 属性
	Txt TxtRecords
}

// Key 返回实例标识
func (r *ServiceRecord) Key() InstanceKey {
	return InstanceKey{Name: r.Name, InterfaceIndex: r.InterfaceIndex, Protocol: r.Protocol}
}

// Clone 深拷贝
func (r *ServiceRecord) Clone() ServiceRecord {
	c := *r
	c.Txt = r.Txt.Clone()
	return c
}

// Equal 比较所有字段
func (r *ServiceRecord) Equal(o *ServiceRecord) bool {
	return r.Name == o.Name &&
		r.Type == o.Type &&
		r.Domain == o.Domain &&
		r.Host == o.Host &&
		r.Port == o.Port &&
		r.InterfaceIndex == o.InterfaceIndex &&
		r.Protocol == o.Protocol &&
		r.AddrV4 == o.AddrV4 &&
		r.AddrV6 == o.AddrV6 &&
		r.Txt.Equal(o.Txt)
}

// HasAddress 是否至少有一个满足过滤协议的地址
func (r *ServiceRecord) HasAddress() bool {
	switch r.Protocol {
	case ProtocolIPv4:
		return r.AddrV4.IsValid()
	case ProtocolIPv6:
		return r.AddrV6.IsValid()
	default:
		return r.AddrV4.IsValid() || r.AddrV6.IsValid()
	}
}

// String 返回可读表示
func (r ServiceRecord) String() string {
	return fmt.Sprintf("%s.%s.%s@%s:%d", r.Name, r.Type, r.Domain, r.Host, r.Port)
}

// ============================================================================
//                              Interface - 网络接口
// ============================================================================

// Interface 传输层使用的网络接口
type Interface struct {
	// Index 接口索引
	Index int

	// Name 接口名
	Name string

	// Addrs 接口上的单播地址
	Addrs []netip.Addr
}
