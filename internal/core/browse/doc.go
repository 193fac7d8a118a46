// Package browse 实现服务浏览与实例解析
//
// Browser 同一时间只持有一个 Session。会话以 1 秒起、逐次翻倍直到
// QueryIntervalMax 的间隔重复发送 PTR 查询，并携带缓存中的已知应答；
// 缓存中到达 TTL 80% 的 PTR 会被重新查询。
//
// 每个新发现的实例对应一个 Resolver：
//
//	Pending ──SRV + 地址齐全──▶ Resolved
//	   ▲                           │
//	   └────── SRV/地址消失 ────────┘
//
// Resolver 从缓存中读取 SRV/TXT/A/AAAA 计算服务记录，缺失时查询并按
// ResolveInterval 翻倍重试 ResolveRetries 次，之后保持 Pending，直到
// 再次收到该实例的 PTR。解析失败从不作为错误上报。
//
// 所有方法只能在引擎事件循环中调用。
package browse
