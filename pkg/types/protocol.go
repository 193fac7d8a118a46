package types

import (
	"fmt"
	"strings"
)

// ============================================================================
//                              Protocol - 网络层协议
// ============================================================================

// Protocol 网络层协议
//
// 用作浏览会话的过滤条件，也用于标记数据包所属的地址族。
type Protocol int

const (
	// ProtocolAny 不限协议
	ProtocolAny Protocol = iota
	// ProtocolIPv4 仅 IPv4
	ProtocolIPv4
	// ProtocolIPv6 仅 IPv6
	ProtocolIPv6
)

// String 返回协议的字符串表示
func (p Protocol) String() string {
	switch p {
	case ProtocolIPv4:
		return "ipv4"
	case ProtocolIPv6:
		return "ipv6"
	case ProtocolAny:
		return "any"
	default:
		return fmt.Sprintf("protocol(%d)", int(p))
	}
}

// Matches 检查地址族 family 是否满足过滤条件 p
func (p Protocol) Matches(family Protocol) bool {
	return p == ProtocolAny || p == family
}

// Valid 检查是否为已知协议值
func (p Protocol) Valid() bool {
	return p >= ProtocolAny && p <= ProtocolIPv6
}

// ParseProtocol 解析协议名称
//
// 接受 "v4"/"ipv4"/"4"、"v6"/"ipv6"/"6" 和 "any"/""。
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "unspec":
		return ProtocolAny, nil
	case "v4", "ipv4", "4", "inet":
		return ProtocolIPv4, nil
	case "v6", "ipv6", "6", "inet6":
		return ProtocolIPv6, nil
	default:
		return ProtocolAny, fmt.Errorf("%w: %q", ErrInvalidProtocol, s)
	}
}
