package browse

import (
	"fmt"

	"github.com/miekg/dns"

	"github.com/dep2p/go-zeroconf/config"
	"github.com/dep2p/go-zeroconf/internal/core/cache"
	"github.com/dep2p/go-zeroconf/internal/core/loop"
	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/internal/util/logger"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

var log = logger.Logger("core/browse")

// Deps Browser 依赖
type Deps struct {
	// Loop 引擎事件循环，用于定时器
	Loop *loop.Loop

	// Cache 引擎记录缓存
	Cache *cache.Cache

	// Send 编码并发送报文
	Send func(out *wire.Outgoing, dst interfaces.Destination) error

	// Emit 派发事件
	Emit func(types.Event)
}

// Observation 一条收到的记录及其缓存处理结果
type Observation struct {
	Record  wire.Record
	Verdict cache.Verdict
}

// Browser 服务浏览器
type Browser struct {
	cfg    config.BrowseConfig
	domain string
	deps   Deps

	session *Session
}

// New 创建浏览器
func New(cfg *config.Config, deps Deps) *Browser {
	return &Browser{
		cfg:    cfg.Browse,
		domain: cfg.Domain,
		deps:   deps,
	}
}

// ============================================================================
//                              公共方法
// ============================================================================

// Start 开始浏览服务类型 service
//
// 已有会话或参数无效时派发 browserFailed 并返回错误。缓存中已有的
// PTR 立即作为发现的实例。
func (b *Browser) Start(service string, proto types.Protocol) error {
	if b.session != nil {
		return b.fail(fmt.Errorf("%w: %s", ErrBrowserExists, b.session.Service))
	}
	if err := wire.ValidateServiceType(service); err != nil {
		return b.fail(fmt.Errorf("%w: %w", ErrInvalidBrowse, err))
	}
	if !proto.Valid() {
		return b.fail(fmt.Errorf("%w: %w", ErrInvalidBrowse, types.ErrInvalidProtocol))
	}

	s := newSession(service, b.domain, proto)
	b.session = s
	log.Info("开始浏览服务",
		"id", s.ID,
		"service", s.serviceName,
		"protocol", proto)

	for _, e := range b.deps.Cache.Lookup(s.serviceName, dns.TypePTR) {
		if r, _ := b.track(s, e.RR.(*dns.PTR).Ptr, e.IfIndex); r != nil {
			b.evaluate(s, r)
		}
	}
	b.query(s)
	if b.session != s {
		return nil
	}
	for _, r := range s.resolvers.Values() {
		if r.state == ResolverPending {
			b.resolve(s, r)
		}
	}
	return nil
}

// Stop 结束浏览会话
//
// 释放所有解析器，为每个已解析的实例派发 serviceRemoved。未浏览时无操作。
func (b *Browser) Stop() {
	s := b.detach()
	if s == nil {
		return
	}
	n := b.teardown(s)
	log.Info("停止浏览服务", "id", s.ID, "service", s.serviceName, "removed", n)
}

// Exists 是否存在浏览会话
func (b *Browser) Exists() bool {
	return b.session != nil
}

// Session 返回当前会话，不存在时返回 nil
func (b *Browser) Session() *Session {
	return b.session
}

// Services 当前会话已解析实例的快照
func (b *Browser) Services() []types.ServiceRecord {
	if b.session == nil {
		return nil
	}
	return b.session.Services()
}

// TransportFailed 传输层失败，结束会话并派发 browserFailed
func (b *Browser) TransportFailed(cause error) {
	s := b.detach()
	if s == nil {
		return
	}
	n := b.teardown(s)
	log.Warn("浏览会话因传输失败终止", "id", s.ID, "removed", n, "error", cause)
	b.deps.Emit(types.ErrorEvent(types.ErrorBrowserFailed, cause))
}

// ============================================================================
//                              记录处理
// ============================================================================

// HandleRecords 处理一个数据包中经过缓存的全部记录
//
// 先处理本会话服务类型的 PTR（发现与移除），再重新计算受影响的解析器。
func (b *Browser) HandleRecords(obs []Observation, pkt interfaces.Packet) {
	s := b.session
	if s == nil {
		return
	}

	var touched []*Resolver
	var fresh []*Resolver
	for _, o := range obs {
		if o.Record.Type() != dns.TypePTR || !wire.SameName(o.Record.Name(), s.serviceName) {
			continue
		}
		target := o.Record.RR.(*dns.PTR).Ptr
		// 未缓存的 goodbye 同样只做移除
		switch {
		case o.Verdict == cache.Goodbye || o.Record.TTL() == 0:
			if key, ok := b.instanceKey(s, target, pkt.IfIndex); ok {
				b.remove(s, key, "goodbye")
			}
		default:
			if !s.Protocol.Matches(pkt.Protocol) {
				continue
			}
			r, created := b.track(s, target, pkt.IfIndex)
			if r == nil {
				continue
			}
			touched = append(touched, r)
			if created || o.Verdict != cache.Suppressed {
				fresh = append(fresh, r)
			}
		}
	}

	for _, o := range obs {
		switch o.Record.Type() {
		case dns.TypeSRV, dns.TypeTXT:
			touched = append(touched, s.resolversFor(o.Record.Name(), pkt.IfIndex, false)...)
		case dns.TypeA, dns.TypeAAAA:
			touched = append(touched, s.resolversFor(o.Record.Name(), pkt.IfIndex, true)...)
		}
	}

	b.evaluateAll(s, touched)

	// 新的 PTR 通告使停止重试的解析器重新开始
	for _, r := range fresh {
		if b.session != s {
			return
		}
		if s.resolvers.Has(r.key) && r.state == ResolverPending && r.timer == nil {
			r.attempts = 0
			b.resolve(s, r)
		}
	}
}

// HandleExpired 处理缓存中过期的记录
func (b *Browser) HandleExpired(entries []*cache.Entry) {
	s := b.session
	if s == nil {
		return
	}

	var touched []*Resolver
	for _, e := range entries {
		switch e.Type() {
		case dns.TypePTR:
			if !wire.SameName(e.Name(), s.serviceName) {
				continue
			}
			if key, ok := b.instanceKey(s, e.RR.(*dns.PTR).Ptr, e.IfIndex); ok {
				b.remove(s, key, "expired")
			}
		case dns.TypeSRV, dns.TypeTXT:
			touched = append(touched, s.resolversFor(e.Name(), e.IfIndex, false)...)
		case dns.TypeA, dns.TypeAAAA:
			touched = append(touched, s.resolversFor(e.Name(), e.IfIndex, true)...)
		}
	}
	b.evaluateAll(s, touched)
}

// Refresh 重新查询到达 TTL 刷新比例的 PTR（RFC 6762 §5.2）
func (b *Browser) Refresh() {
	s := b.session
	if s == nil {
		return
	}
	due := b.deps.Cache.DueForRefresh(s.serviceName, dns.TypePTR, b.cfg.RefreshFraction)
	if len(due) == 0 {
		return
	}
	log.Debug("刷新即将过期的 PTR", "service", s.serviceName, "count", len(due))
	b.send(s, &wire.Outgoing{
		Questions: []wire.Question{s.ptrQuestion()},
		Answers:   b.deps.Cache.KnownAnswers(s.serviceName, dns.TypePTR),
	}, interfaces.Destination{Protocol: s.Protocol})
}

// ============================================================================
//                              内部方法
// ============================================================================

func (b *Browser) fail(err error) error {
	log.Debug("浏览请求失败", "error", err)
	b.deps.Emit(types.ErrorEvent(types.ErrorBrowserFailed, err))
	return err
}

// detach 先从 Browser 上摘下会话再停止其定时器
func (b *Browser) detach() *Session {
	s := b.session
	if s == nil {
		return nil
	}
	b.session = nil
	s.stopTimers()
	return s
}

// teardown 释放所有解析器并为每条记录派发 serviceRemoved
func (b *Browser) teardown(s *Session) int {
	s.resolvers.Clear()
	removed := s.discovered.Clear()
	for _, rec := range removed {
		b.deps.Emit(types.RecordEvent(types.EventServiceRemoved, rec))
	}
	return len(removed)
}

// instanceKey 从 PTR 目标得到实例标识，目标不属于本会话时返回 false
func (b *Browser) instanceKey(s *Session, target string, ifIndex int) (types.InstanceKey, bool) {
	instance, service, domain, err := wire.SplitInstance(target)
	if err != nil {
		log.Debug("忽略无效的 PTR 目标", "target", target, "error", err)
		return types.InstanceKey{}, false
	}
	if !wire.SameName(wire.ServiceFQDN(service, domain), s.serviceName) {
		return types.InstanceKey{}, false
	}
	return s.key(instance, ifIndex), true
}

// track 返回实例的解析器，不存在时创建
func (b *Browser) track(s *Session, target string, ifIndex int) (r *Resolver, created bool) {
	key, ok := b.instanceKey(s, target, ifIndex)
	if !ok {
		return nil, false
	}
	if r, ok := s.resolvers.Get(key); ok {
		return r, false
	}
	r = newResolver(key, target)
	s.resolvers.Upsert(key, r)
	log.Debug("发现服务实例", "key", key)
	return r, true
}

// remove PTR 消失：释放解析器，已解析时派发 serviceRemoved
func (b *Browser) remove(s *Session, key types.InstanceKey, reason string) {
	if r, ok := s.resolvers.Remove(key); ok {
		r.stopTimer()
	}
	if rec, ok := s.discovered.Remove(key); ok {
		log.Debug("服务实例消失", "key", key, "reason", reason)
		b.deps.Emit(types.RecordEvent(types.EventServiceRemoved, rec))
	}
}

func (b *Browser) evaluateAll(s *Session, rs []*Resolver) {
	seen := make(map[*Resolver]struct{}, len(rs))
	for _, r := range rs {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		if b.session != s {
			return
		}
		if s.resolvers.Has(r.key) {
			b.evaluate(s, r)
		}
	}
}

// evaluate 根据缓存重新计算实例记录
//
// 数据充足时插入或更新记录；不足时移除已有记录并回到 Pending 重新查询。
func (b *Browser) evaluate(s *Session, r *Resolver) {
	res := r.lookup(b.deps.Cache, s.Protocol)
	if !res.sufficient() {
		if rec, ok := s.discovered.Remove(r.key); ok {
			log.Debug("服务实例数据不完整，移除", "key", r.key)
			b.deps.Emit(types.RecordEvent(types.EventServiceRemoved, rec))
		}
		if r.state == ResolverResolved {
			r.state = ResolverPending
			r.attempts = 0
			b.resolve(s, r)
		}
		return
	}

	r.state = ResolverResolved
	r.stopTimer()

	next := res.record(r.key, s)
	cur, ok := s.discovered.Get(r.key)
	switch {
	case !ok:
		s.discovered.Upsert(r.key, next)
		log.Debug("服务实例已解析", "record", next, "v4", next.AddrV4, "v6", next.AddrV6)
		b.deps.Emit(types.RecordEvent(types.EventServiceAdded, next))
	case !cur.Equal(next):
		*cur = *next
		log.Debug("服务实例已更新", "record", cur)
		b.deps.Emit(types.RecordEvent(types.EventServiceUpdated, cur))
	}
}

// resolve 发送解析查询，重试 ResolveRetries 次，间隔逐次翻倍
func (b *Browser) resolve(s *Session, r *Resolver) {
	r.timer = nil
	if b.session != s || r.state != ResolverPending {
		return
	}
	if !s.resolvers.Has(r.key) {
		return
	}

	res := r.lookup(b.deps.Cache, s.Protocol)
	qs, known := res.questions(r, b.deps.Cache, s.Protocol)
	if len(qs) == 0 {
		return
	}
	r.attempts++
	r.lastAttempt = b.deps.Loop.Now()
	log.Debug("解析服务实例", "key", r.key, "attempt", r.attempts, "questions", len(qs))

	dst := interfaces.Destination{IfIndex: r.key.InterfaceIndex, Protocol: s.Protocol}
	if !b.send(s, &wire.Outgoing{Questions: qs, Answers: known}, dst) {
		return
	}
	if r.attempts <= b.cfg.ResolveRetries {
		interval := b.cfg.ResolveInterval.Duration() << (r.attempts - 1)
		r.timer = b.deps.Loop.AfterFunc(interval, func() { b.resolve(s, r) })
	}
}

// query 发送 PTR 查询并安排下一次，间隔翻倍直到 QueryIntervalMax
func (b *Browser) query(s *Session) {
	s.timer = nil
	if b.session != s {
		return
	}
	out := &wire.Outgoing{
		Questions: []wire.Question{s.ptrQuestion()},
		Answers:   b.deps.Cache.KnownAnswers(s.serviceName, dns.TypePTR),
	}
	if !b.send(s, out, interfaces.Destination{Protocol: s.Protocol}) {
		return
	}
	s.queries++
	log.Debug("发送 PTR 查询", "service", s.serviceName, "query", s.queries, "known", len(out.Answers))

	if s.interval == 0 {
		s.interval = b.cfg.QueryInterval.Duration()
	} else {
		s.interval = min(s.interval*2, b.cfg.QueryIntervalMax.Duration())
	}
	s.timer = b.deps.Loop.AfterFunc(s.interval, func() { b.query(s) })
}

// send 发送报文，失败时按传输失败结束会话
func (b *Browser) send(s *Session, out *wire.Outgoing, dst interfaces.Destination) bool {
	if err := b.deps.Send(out, dst); err != nil {
		if b.session == s {
			b.TransportFailed(fmt.Errorf("%w: %w", ErrSendFailed, err))
		}
		return false
	}
	return true
}
