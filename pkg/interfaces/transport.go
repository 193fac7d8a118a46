// Package interfaces 定义 go-zeroconf 的边界接口
//
// 本文件定义 Transport 接口，抽象 mDNS 多播数据包收发。
package interfaces

import (
	"context"
	"net"

	"github.com/dep2p/go-zeroconf/pkg/types"
)

// Packet 收到的数据包
type Packet struct {
	// Data 原始 DNS 报文
	Data []byte

	// Src 源地址
	Src *net.UDPAddr

	// IfIndex 接收接口索引
	IfIndex int

	// Protocol 地址族（ProtocolIPv4 或 ProtocolIPv6）
	Protocol types.Protocol
}

// Destination 发送目标
type Destination struct {
	// IfIndex 发送接口，0 表示所有接口
	IfIndex int

	// Protocol 地址族，ProtocolAny 表示所有启用的地址族
	Protocol types.Protocol

	// Addr 单播目标，nil 表示多播组
	Addr *net.UDPAddr
}

// Multicast 是否发往多播组
func (d Destination) Multicast() bool {
	return d.Addr == nil
}

// PacketHandler 接收数据包与传输错误
//
// 回调在传输层的接收协程中执行，实现方应尽快返回。
type PacketHandler interface {
	// HandlePacket 处理收到的数据包
	HandlePacket(pkt Packet)

	// HandleTransportError 处理不可恢复的传输错误
	HandleTransportError(err error)
}

// Transport 定义 mDNS 传输层接口
//
// 架构位置：Core Layer 边界
// 实现位置：internal/core/transport/
type Transport interface {
	// Listen 开始接收数据包，只能调用一次
	Listen(handler PacketHandler) error

	// Send 发送数据包
	Send(ctx context.Context, data []byte, dst Destination) error

	// Interfaces 返回正在使用的网络接口
	Interfaces() ([]types.Interface, error)

	// Close 关闭传输
	Close() error
}
