// Package publish 实现服务发布：探测、冲突检测、通告与应答
//
// # 状态机
//
//	Idle ──Start──▶ Probing ──无冲突──▶ Announcing ──最后一次通告──▶ Established
//	                  │                    │                            │
//	                  └──────── 冲突 ──────┴────────────────────────────┴──▶ Conflict
//	                  传输失败（任意状态）──▶ Failed
//
// Probing 阶段在随机初始延迟后发送 ProbeCount 次探测查询（首次带 QU 位，
// 授权段携带拟发布的 SRV/TXT），同时探测的平局按 RFC 6762 §8.2 比较
// 记录集，失败方等待 ConflictDefer 后重新探测。
//
// Announcing 与 Established 状态下 Publisher 同时充当应答者，回答
// PTR/SRV/TXT/A/AAAA 及 DNS-SD 枚举查询，并执行已知应答抑制。
//
// 所有方法只能在引擎事件循环中调用。
package publish
