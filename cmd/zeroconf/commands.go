package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/dep2p/go-zeroconf/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════
// publish
// ═══════════════════════════════════════════════════════════════════════════

// txtFlag 可重复的 -txt key=value 参数
type txtFlag []string

func (t *txtFlag) String() string {
	return strings.Join(*t, ",")
}

func (t *txtFlag) Set(v string) error {
	if v == "" {
		return errors.New("txt 不能为空")
	}
	*t = append(*t, v)
	return nil
}

func runPublish(args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	name := fs.String("name", "", "实例名（必需）")
	serviceType := fs.String("type", "_http._tcp", "服务类型")
	domain := fs.String("domain", "", "域（默认取配置）")
	port := fs.Uint("port", 0, "服务端口（必需）")
	var txt txtFlag
	fs.Var(&txt, "txt", "TXT 属性 key=value 或 key，可重复")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *port == 0 || *port > 65535 {
		fs.Usage()
		return errors.New("需要 -name 和有效的 -port")
	}

	ctx, stop := signalContext()
	defer stop()

	zc, cleanup, err := start(ctx, &common)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer cleanup()

	sub := zc.Subscribe(printEvent)
	defer sub.Close()

	for _, kv := range txt {
		rec := types.ParseTxtRecord(kv)
		var err error
		if rec.HasValue {
			err = zc.AddServiceTxtRecord(rec.Key, rec.Value)
		} else {
			err = zc.AddServiceTxtRecord(rec.Key)
		}
		if err != nil {
			return err
		}
	}

	if err := zc.StartServicePublish(*name, *serviceType, *domain, uint16(*port)); err != nil {
		return err
	}
	fmt.Printf("正在发布 %s.%s 端口 %d，按 Ctrl+C 退出\n", *name, *serviceType, *port)

	<-ctx.Done()
	fmt.Println("\n正在撤销发布...")
	zc.StopServicePublish()
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// browse
// ═══════════════════════════════════════════════════════════════════════════

func runBrowse(args []string) error {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	serviceType := fs.String("type", "_http._tcp", "服务类型")
	protoName := fs.String("proto", "any", "地址族过滤 v4|v6|any")
	if err := fs.Parse(args); err != nil {
		return err
	}
	proto, err := types.ParseProtocol(*protoName)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	zc, cleanup, err := start(ctx, &common)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer cleanup()

	sub := zc.Subscribe(printEvent)
	defer sub.Close()

	if err := zc.StartBrowser(*serviceType, proto); err != nil {
		return err
	}
	fmt.Printf("正在浏览 %s (%s)，按 Ctrl+C 退出\n", *serviceType, proto)

	<-ctx.Done()
	fmt.Println()
	zc.StopBrowser()
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// 输出
// ═══════════════════════════════════════════════════════════════════════════

func printEvent(ev types.Event) {
	switch ev.Kind {
	case types.EventServiceAdded, types.EventServiceUpdated, types.EventServiceRemoved:
		fmt.Println(formatRecord(ev.Kind, &ev.Record))
	default:
		fmt.Println(ev)
	}
}

func formatRecord(kind types.EventKind, r *types.ServiceRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-15s %q %s.%s host=%s port=%d if=%d", kind, r.Name, r.Type, r.Domain, r.Host, r.Port, r.InterfaceIndex)
	if r.AddrV4.IsValid() {
		fmt.Fprintf(&b, " v4=%s", r.AddrV4)
	}
	if r.AddrV6.IsValid() {
		fmt.Fprintf(&b, " v6=%s", r.AddrV6)
	}
	if len(r.Txt) > 0 {
		parts := make([]string, 0, len(r.Txt))
		for _, t := range r.Txt {
			parts = append(parts, t.String())
		}
		fmt.Fprintf(&b, " txt=[%s]", strings.Join(parts, " "))
	}
	return b.String()
}
