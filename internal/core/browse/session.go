package browse

import (
	"time"

	"github.com/google/uuid"
	"github.com/miekg/dns"

	"github.com/dep2p/go-zeroconf/internal/core/loop"
	"github.com/dep2p/go-zeroconf/internal/core/store"
	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

// Session 浏览会话
type Session struct {
	// ID 会话标识
	ID string

	// Service 服务类型，如 "_http._tcp"
	Service string

	// Domain 浏览域
	Domain string

	// Protocol 协议过滤
	Protocol types.Protocol

	serviceName string

	discovered *store.Store[types.InstanceKey, *types.ServiceRecord]
	resolvers  *store.Store[types.InstanceKey, *Resolver]

	interval time.Duration
	queries  int
	timer    *loop.Timer
}

func newSession(service, domain string, proto types.Protocol) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Service:     wire.TrimDot(service),
		Domain:      wire.TrimDot(domain),
		Protocol:    proto,
		serviceName: wire.ServiceFQDN(service, domain),
		discovered:  store.New[types.InstanceKey, *types.ServiceRecord](),
		resolvers:   store.New[types.InstanceKey, *Resolver](),
	}
}

// ServiceName 服务类型完整域名
func (s *Session) ServiceName() string {
	return s.serviceName
}

// Services 已解析实例的快照，按发现顺序
func (s *Session) Services() []types.ServiceRecord {
	vals := s.discovered.Values()
	out := make([]types.ServiceRecord, 0, len(vals))
	for _, rec := range vals {
		out = append(out, rec.Clone())
	}
	return out
}

// Interval 当前 PTR 查询间隔
func (s *Session) Interval() time.Duration {
	return s.interval
}

// Resolver 返回实例的解析器
func (s *Session) Resolver(key types.InstanceKey) (*Resolver, bool) {
	return s.resolvers.Get(key)
}

// Resolvers 解析器数量
func (s *Session) Resolvers() int {
	return s.resolvers.Len()
}

// key 构造实例标识，协议取会话的过滤协议
func (s *Session) key(instance string, ifIndex int) types.InstanceKey {
	return types.InstanceKey{Name: instance, InterfaceIndex: ifIndex, Protocol: s.Protocol}
}

// resolversFor 按发现顺序返回实例名或 SRV 目标为 name 且接口匹配的解析器
func (s *Session) resolversFor(name string, ifIndex int, byTarget bool) []*Resolver {
	var out []*Resolver
	for _, r := range s.resolvers.Values() {
		if r.key.InterfaceIndex != ifIndex {
			continue
		}
		target := r.instanceName
		if byTarget {
			target = r.target
		}
		if target != "" && wire.SameName(target, name) {
			out = append(out, r)
		}
	}
	return out
}

// ptrQuestion 会话的 PTR 查询
func (s *Session) ptrQuestion() wire.Question {
	return wire.Question{Name: s.serviceName, Type: dns.TypePTR}
}

func (s *Session) stopTimers() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for _, r := range s.resolvers.Values() {
		r.stopTimer()
	}
}
