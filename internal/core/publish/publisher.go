package publish

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/dep2p/go-zeroconf/config"
	"github.com/dep2p/go-zeroconf/internal/core/loop"
	"github.com/dep2p/go-zeroconf/internal/core/metrics"
	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/internal/util/logger"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

var log = logger.Logger("core/publish")

// Deps Publisher 依赖
type Deps struct {
	// Loop 引擎事件循环，用于定时器
	Loop *loop.Loop

	// Send 编码并发送报文
	Send func(out *wire.Outgoing, dst interfaces.Destination) error

	// Emit 派发事件
	Emit func(types.Event)

	// Interfaces 返回本机接口及其地址
	Interfaces func() []types.Interface

	// Metrics 指标，可为 nil
	Metrics metrics.Reporter

	// Jitter 返回 [0, max) 内的随机时长，为 nil 时使用 math/rand
	Jitter func(max time.Duration) time.Duration
}

// Publisher 服务发布器
//
// 同一时间只有一个注册。TXT 记录先暂存在 Publisher 中，
// 发布或 UpdateTxt 时生效。
type Publisher struct {
	cfg    config.PublishConfig
	domain string
	host   string
	deps   Deps

	reg    *Registration
	staged types.TxtRecords
}

// New 创建发布器
func New(cfg *config.Config, deps Deps) *Publisher {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Jitter == nil {
		deps.Jitter = jitter
	}
	if deps.Interfaces == nil {
		deps.Interfaces = func() []types.Interface { return nil }
	}
	host := cfg.Publish.HostName
	if host == "" {
		host = defaultHostName()
	}
	return &Publisher{
		cfg:    cfg.Publish,
		domain: cfg.Domain,
		host:   host,
		deps:   deps,
	}
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

// defaultHostName 取系统主机名的第一个 label
func defaultHostName() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "zeroconf"
	}
	name, _, _ = strings.Cut(name, ".")
	return name
}

// ============================================================================
//                              公共方法
// ============================================================================

// Start 发布服务
//
// 参数无效或已有注册时派发 serviceRegistrationFailed 并返回错误。
// domain 为空时使用配置的默认域。
func (p *Publisher) Start(instance, service, domain string, port uint16) error {
	if p.reg != nil {
		return p.fail(fmt.Errorf("%w: %s", ErrAlreadyPublished, p.reg.Instance))
	}
	if domain == "" {
		domain = p.domain
	}
	if err := validate(instance, service, domain, port); err != nil {
		return p.fail(err)
	}

	reg, err := newRegistration(instance, service, domain, p.host, port, p.staged.Clone(),
		p.cfg.HostTTL.Seconds(), p.cfg.RecordTTL.Seconds())
	if err != nil {
		return p.fail(fmt.Errorf("%w: %w", ErrInvalidService, err))
	}

	p.reg = reg
	reg.state = StateProbing
	delay := p.deps.Jitter(p.cfg.ProbeInitialDelay.Duration())
	reg.timer = p.deps.Loop.AfterFunc(delay, func() { p.probe(reg) })

	log.Info("开始发布服务",
		"id", reg.ID,
		"instance", reg.instanceName,
		"host", reg.hostName,
		"port", port,
		"delay", delay)
	return nil
}

// Stop 撤销发布
//
// 已通告的记录以 TTL 0 发送 goodbye。未发布时无操作。
func (p *Publisher) Stop() {
	reg := p.detach()
	if reg == nil {
		return
	}
	if reg.state.Responding() {
		out := &wire.Outgoing{Response: true, Answers: reg.goodbye()}
		if err := p.deps.Send(out, interfaces.Destination{}); err != nil {
			log.Warn("发送 goodbye 失败", "instance", reg.instanceName, "error", err)
		}
	}
	reg.state = StateIdle
	log.Info("停止发布服务", "id", reg.ID, "instance", reg.instanceName)
}

// Exists 是否存在注册
func (p *Publisher) Exists() bool {
	return p.reg != nil
}

// Registration 返回当前注册，不存在时返回 nil
func (p *Publisher) Registration() *Registration {
	return p.reg
}

// State 当前发布状态
func (p *Publisher) State() State {
	if p.reg == nil {
		return StateIdle
	}
	return p.reg.state
}

// TransportFailed 传输层失败，注册进入 Failed 并释放
func (p *Publisher) TransportFailed(cause error) {
	if p.reg == nil {
		return
	}
	p.abort(p.reg, StateFailed, types.ErrorServiceRegistrationFailed, cause)
}

// ============================================================================
//                              内部方法
// ============================================================================

// detach 先从 Publisher 上摘下注册再停止其定时器
func (p *Publisher) detach() *Registration {
	reg := p.reg
	if reg == nil {
		return nil
	}
	p.reg = nil
	reg.stopTimers()
	return reg
}

// abort 以终止状态释放注册并派发错误事件
func (p *Publisher) abort(reg *Registration, state State, kind types.ErrorKind, cause error) {
	if p.reg != reg {
		return
	}
	p.detach()
	reg.state = state
	log.Warn("服务发布终止",
		"id", reg.ID,
		"instance", reg.instanceName,
		"state", state,
		"error", cause)
	p.deps.Emit(types.ErrorEvent(kind, cause))
}

// fail 派发 serviceRegistrationFailed 并返回原错误
func (p *Publisher) fail(err error) error {
	log.Debug("服务发布请求失败", "error", err)
	p.deps.Emit(types.ErrorEvent(types.ErrorServiceRegistrationFailed, err))
	return err
}

// addrs 本机所有接口地址
func (p *Publisher) addrs() []netip.Addr {
	var out []netip.Addr
	for _, ifc := range p.deps.Interfaces() {
		out = append(out, ifc.Addrs...)
	}
	return out
}

// ifaceAddrs 指定接口的地址，找不到时返回全部地址
func (p *Publisher) ifaceAddrs(index int) []netip.Addr {
	for _, ifc := range p.deps.Interfaces() {
		if ifc.Index == index && len(ifc.Addrs) > 0 {
			return ifc.Addrs
		}
	}
	return p.addrs()
}

func validate(instance, service, domain string, port uint16) error {
	if err := wire.ValidateInstanceName(instance); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidService, err)
	}
	if err := wire.ValidateServiceType(service); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidService, err)
	}
	if err := wire.ValidateDomain(domain); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidService, err)
	}
	if port == 0 {
		return fmt.Errorf("%w: port must not be 0", ErrInvalidService)
	}
	return nil
}
