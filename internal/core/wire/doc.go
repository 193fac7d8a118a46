// Package wire 实现 mDNS 报文编解码
//
// 基于 github.com/miekg/dns，在其之上处理 mDNS 特有的部分：
//   - class 字段最高位：应答记录中为 cache-flush 位，问题中为 QU（单播应答）位
//   - 报文大小限制与拆分：超出的应答拆到后续报文，查询的已知应答溢出时置 TC 位
//   - DNS-SD 名称：实例名转义、服务名拼接与拆分
//   - TXT 属性：key=value / 裸 key 字符串与 types.TxtRecords 互转
//
// 本包只包含纯函数，不持有任何状态。
package wire
