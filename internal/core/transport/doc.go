// Package transport 实现 mDNS 多播传输
//
// UDP 基于 golang.org/x/net/ipv4 与 ipv6 的 PacketConn：
//   - 在 5353 端口上分别监听 IPv4 与 IPv6（SO_REUSEADDR/SO_REUSEPORT，
//     与系统中的其他 mDNS 响应者共存）
//   - 在每个 up 且支持多播的接口上加入 224.0.0.251 / ff02::fb
//   - 通过控制消息获取接收接口索引，发送时指定出接口
//   - 两个接收协程由 errgroup 管理，任一失败即关闭全部接收端并通知 PacketHandler
//
// 子包 memnet 提供内存链路实现，用于测试与示例。
package transport
