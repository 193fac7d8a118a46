// Package types 定义 go-zeroconf 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - protocol.go - Protocol 网络层协议过滤（IPv4/IPv6/Any）
//   - service.go  - ServiceRecord 已解析服务记录、InstanceKey 实例标识、Interface 网络接口
//   - txt.go      - TxtRecords 有序 TXT 键值列表
//   - event.go    - Event 事件、EventKind 事件类型、ErrorKind 错误类型
//   - errors.go   - 公共错误定义
//
// # 快照语义
//
// 事件中携带的 ServiceRecord 是引擎内部记录的深拷贝，
// 订阅者可以任意持有和修改，不会影响引擎状态。
package types
