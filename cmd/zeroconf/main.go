// Package main 提供 zeroconf 命令行入口
//
// 用法：
//
//	zeroconf publish -name "My Printer" -type _http._tcp -port 8080 -txt path=/
//	zeroconf browse -type _http._tcp -proto v4
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dep2p/go-zeroconf"
	"github.com/dep2p/go-zeroconf/internal/util/logger"
)

var log = logger.Logger("cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 公共参数
// ═══════════════════════════════════════════════════════════════════════════

// commonFlags 所有子命令共享的参数
type commonFlags struct {
	configFile  string
	logFile     string
	metricsAddr string
	hostName    string
	fxLog       bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configFile, "config", "", "配置文件路径（JSON）")
	fs.StringVar(&c.logFile, "log", "", "日志文件路径（默认输出到 stderr）")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "Prometheus 指标监听地址，如 :9100")
	fs.StringVar(&c.hostName, "host", "", "发布使用的主机名（默认取系统主机名）")
	fs.BoolVar(&c.fxLog, "fx-log", false, "输出 Fx 依赖注入日志")
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("缺少子命令")
	}

	switch args[0] {
	case "publish":
		return runPublish(args[1:])
	case "browse":
		return runBrowse(args[1:])
	case "version", "-version", "--version":
		fmt.Println(zeroconf.VersionInfo())
		return nil
	case "help", "-h", "-help", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("未知子命令: %s", args[0])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `用法: zeroconf <command> [参数]

子命令:
  publish   发布服务，直到收到 Ctrl+C
  browse    浏览服务并打印事件，直到收到 Ctrl+C
  version   显示版本信息

使用 "zeroconf <command> -h" 查看子命令参数。`)
}

// ═══════════════════════════════════════════════════════════════════════════
// 启动与关闭
// ═══════════════════════════════════════════════════════════════════════════

// start 按公共参数创建并启动 ZeroConf
//
// 返回的 cleanup 关闭 ZeroConf、指标服务和日志文件。
func start(ctx context.Context, c *commonFlags) (*zeroconf.ZeroConf, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		logger.SetOutput(f)
		closers = append(closers, func() { _ = f.Close() })
	}

	var opts []zeroconf.Option
	if c.configFile != "" {
		opts = append(opts, zeroconf.WithConfigFile(c.configFile))
	}
	if c.hostName != "" {
		opts = append(opts, zeroconf.WithHostName(c.hostName))
	}
	if c.fxLog {
		zl, err := zap.NewDevelopment()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("创建 Fx 日志失败: %w", err)
		}
		opts = append(opts, zeroconf.WithFxLogger(zl))
		closers = append(closers, func() { _ = zl.Sync() })
	}

	if c.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, zeroconf.WithRegisterer(reg))
		srv := serveMetrics(c.metricsAddr, reg)
		closers = append(closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	zc, err := zeroconf.Start(ctx, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() {
		if err := zc.Close(); err != nil {
			log.Warn("关闭失败", "error", err)
		}
	})
	return zc, cleanup, nil
}

// serveMetrics 在 addr 上提供 /metrics
func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("指标服务失败", "addr", addr, "error", err)
		}
	}()
	log.Info("指标服务已启动", "addr", addr)
	return srv
}

// signalContext 收到 SIGINT/SIGTERM 时取消
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
