// Package zeroconf 提供原生的 mDNS / DNS-SD 服务发布与浏览
//
// go-zeroconf 自行实现多播 DNS 协议状态机（RFC 6762 / RFC 6763）：
// 探测、冲突检测、通告、基于缓存的浏览与解析，不依赖系统的
// Avahi 或 Bonjour 守护进程。
//
// # 快速开始
//
//	import "github.com/dep2p/go-zeroconf"
//
//	zc, err := zeroconf.Start(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer zc.Close()
//
//	// 发布服务
//	zc.Subscribe(func(ev types.Event) {
//	    fmt.Println(ev)
//	})
//	_ = zc.AddServiceTxtRecord("path", "/")
//	_ = zc.StartServicePublish("My Printer", "_http._tcp", "local", 8080)
//
//	// 浏览服务
//	_ = zc.StartBrowser("_ipp._tcp", types.ProtocolAny)
//
// # 事件
//
// 所有结果通过事件派发：
//
//	┌──────────────────────┬──────────────────────────────────────────┐
//	│ servicePublished     │ 发布的服务完成探测与通告                   │
//	│ serviceAdded         │ 浏览会话首次解析出实例                     │
//	│ serviceUpdated       │ 已解析实例的地址、端口或 TXT 变化          │
//	│ serviceRemoved       │ 实例消失（goodbye、过期）或会话结束        │
//	│ error                │ serviceNameCollision /                    │
//	│                      │ serviceRegistrationFailed / browserFailed │
//	└──────────────────────┴──────────────────────────────────────────┘
//
// 返回错误的方法同时派发相同含义的错误事件，返回的 *Error 的
// Kind 字段与事件一致。
//
// # 文件组织
//
//   - zeroconf.go - ZeroConf 公共 API
//   - options.go  - 配置选项
//   - fx.go       - Fx 模块装配
//   - errors.go   - 错误定义
//   - version.go  - 版本信息
//
// 内部实现位于 internal/core：wire（报文编解码）、cache（记录缓存）、
// publish（探测与应答）、browse（浏览与解析）、engine（事件循环与分发）、
// transport（UDP 多播与内存网络）。
package zeroconf
