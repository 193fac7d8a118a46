// Package metrics 提供引擎监控指标
//
// 基于 prometheus/client_golang，注册到注入的 prometheus.Registerer
// （未注入时使用新建的 Registry）：
//
//	zeroconf_packets_received_total{family}  收到的数据包
//	zeroconf_packets_sent_total              发出的数据包
//	zeroconf_bytes_received_total            收到的字节数
//	zeroconf_bytes_sent_total                发出的字节数
//	zeroconf_decode_errors_total             解码失败被丢弃的数据包
//	zeroconf_events_total{kind}              派发的事件
//	zeroconf_probes_sent_total               发出的探测报文
//	zeroconf_conflicts_total                 检测到的名称冲突
//	zeroconf_cache_entries                   缓存记录数
//
// # 快速开始
//
//	reg := prometheus.NewRegistry()
//	m, err := metrics.New(reg)
//	m.LogRecvPacket(types.ProtocolIPv4, len(data))
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics
