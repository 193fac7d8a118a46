package browse

import (
	"net/netip"
	"time"

	"github.com/miekg/dns"

	"github.com/dep2p/go-zeroconf/internal/core/cache"
	"github.com/dep2p/go-zeroconf/internal/core/loop"
	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

// ResolverState 解析状态
type ResolverState int

const (
	// ResolverPending 等待 SRV 与地址
	ResolverPending ResolverState = iota
	// ResolverResolved 已解析
	ResolverResolved
)

// String 返回状态的字符串表示
func (s ResolverState) String() string {
	switch s {
	case ResolverPending:
		return "pending"
	case ResolverResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Resolver 单个实例的解析器
type Resolver struct {
	key          types.InstanceKey
	instanceName string
	state        ResolverState

	// target 最近一次看到的 SRV 目标
	target string

	// attempts 本轮已发送的查询次数
	attempts    int
	lastAttempt time.Time
	timer       *loop.Timer
}

func newResolver(key types.InstanceKey, instanceName string) *Resolver {
	return &Resolver{key: key, instanceName: instanceName}
}

// Key 实例标识
func (r *Resolver) Key() types.InstanceKey {
	return r.key
}

// State 当前状态
func (r *Resolver) State() ResolverState {
	return r.state
}

// Attempts 本轮已发送的查询次数
func (r *Resolver) Attempts() int {
	return r.attempts
}

// LastAttempt 最近一次查询时间
func (r *Resolver) LastAttempt() time.Time {
	return r.lastAttempt
}

func (r *Resolver) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// resolution 从缓存读取的解析结果
type resolution struct {
	srv    *dns.SRV
	txt    *dns.TXT
	v4, v6 netip.Addr
}

// sufficient SRV 与至少一个满足过滤协议的地址
func (res *resolution) sufficient() bool {
	return res.srv != nil && (res.v4.IsValid() || res.v6.IsValid())
}

// latest 返回接口匹配且最近收到的条目
func latest(entries []*cache.Entry, ifIndex int) *cache.Entry {
	var best *cache.Entry
	for _, e := range entries {
		if e.IfIndex != ifIndex {
			continue
		}
		if best == nil || e.Received.After(best.Received) {
			best = e
		}
	}
	return best
}

// lookup 从缓存读取实例的 SRV/TXT 与目标地址
func (r *Resolver) lookup(c *cache.Cache, proto types.Protocol) resolution {
	var res resolution
	ifIndex := r.key.InterfaceIndex

	if e := latest(c.Lookup(r.instanceName, dns.TypeSRV), ifIndex); e != nil {
		res.srv = e.RR.(*dns.SRV)
		r.target = res.srv.Target
	}
	if e := latest(c.Lookup(r.instanceName, dns.TypeTXT), ifIndex); e != nil {
		res.txt = e.RR.(*dns.TXT)
	}
	if res.srv == nil {
		return res
	}
	if proto.Matches(types.ProtocolIPv4) {
		if e := latest(c.Lookup(res.srv.Target, dns.TypeA), ifIndex); e != nil {
			res.v4, _ = wire.AddrOf(e.RR)
		}
	}
	if proto.Matches(types.ProtocolIPv6) {
		if e := latest(c.Lookup(res.srv.Target, dns.TypeAAAA), ifIndex); e != nil {
			res.v6, _ = wire.AddrOf(e.RR)
		}
	}
	return res
}

// record 构造服务记录
func (res *resolution) record(key types.InstanceKey, s *Session) *types.ServiceRecord {
	rec := &types.ServiceRecord{
		Name:           key.Name,
		Type:           s.Service,
		Domain:         s.Domain,
		Host:           wire.TrimDot(res.srv.Target),
		Port:           res.srv.Port,
		InterfaceIndex: key.InterfaceIndex,
		Protocol:       key.Protocol,
		AddrV4:         res.v4,
		AddrV6:         res.v6,
	}
	if res.txt != nil {
		rec.Txt = wire.DecodeTxt(res.txt.Txt)
	}
	return rec
}

// questions 本轮需要查询的问题及其已知应答
func (res *resolution) questions(r *Resolver, c *cache.Cache, proto types.Protocol) ([]wire.Question, []wire.Record) {
	var qs []wire.Question
	if res.srv == nil {
		qs = append(qs, wire.Question{Name: r.instanceName, Type: dns.TypeSRV})
	} else {
		if proto.Matches(types.ProtocolIPv4) && !res.v4.IsValid() {
			qs = append(qs, wire.Question{Name: res.srv.Target, Type: dns.TypeA})
		}
		if proto.Matches(types.ProtocolIPv6) && !res.v6.IsValid() {
			qs = append(qs, wire.Question{Name: res.srv.Target, Type: dns.TypeAAAA})
		}
	}
	if res.txt == nil {
		qs = append(qs, wire.Question{Name: r.instanceName, Type: dns.TypeTXT})
	}

	var known []wire.Record
	for _, q := range qs {
		known = append(known, c.KnownAnswers(q.Name, q.Type)...)
	}
	return qs, known
}
