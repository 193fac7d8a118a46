// Package engine 组装 mDNS/DNS-SD 引擎
//
// Engine 持有一个事件循环，数据包处理、定时器与所有公共调用都在
// 循环协程中执行：
//
//	transport ──Post──▶ loop ──▶ wire.Decode ──▶ cache.Observe ──▶ browse
//	                                  │                               │
//	                                  └──────────▶ publish ◀──────────┘
//	                                                  │
//	                              eventbus.Emit ◀─────┘
//
// 每个任务或定时器批次执行后 eventbus 按检测顺序派发事件。
//
// 公共方法可以从任意协程调用，内部通过 loop.Do 投递并等待完成。
// Sync 是测试屏障：先执行所有已到期的定时器，再返回。
package engine
