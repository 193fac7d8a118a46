// Package interfaces 定义 go-zeroconf 的边界接口
//
// 核心引擎只依赖这里的接口，不依赖具体实现：
//   - Transport: 多播数据包收发，实现位于 internal/core/transport（UDP）
//     和 internal/core/transport/memnet（内存网络，用于测试）
//   - Subscription: 事件订阅，由 internal/core/eventbus 实现
package interfaces
