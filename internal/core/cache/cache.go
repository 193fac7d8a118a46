// Package cache 实现 mDNS 记录缓存与去重
//
// 缓存以 (小写名称, 类型, 规范化 rdata, 接口索引) 为键，容量由
// golang-lru 限制，过期时间基于引擎时钟。所有方法只能在事件循环中调用。
package cache

import (
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/miekg/dns"

	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/internal/util/logger"
)

var log = logger.Logger("core/cache")

// flushGrace cache-flush 记录使旧记录在此时间后过期（RFC 6762 §10.2）
const flushGrace = time.Second

// Verdict Observe 的结果
type Verdict int

const (
	// Fresh 新记录
	Fresh Verdict = iota
	// Refreshed 已知记录，TTL 被延长
	Refreshed
	// Suppressed 已知记录，剩余 TTL 不小于新值
	Suppressed
	// Goodbye TTL 为 0，记录已删除
	Goodbye
)

// String 返回结果的字符串表示
func (v Verdict) String() string {
	switch v {
	case Fresh:
		return "fresh"
	case Refreshed:
		return "refreshed"
	case Suppressed:
		return "suppressed"
	case Goodbye:
		return "goodbye"
	default:
		return "unknown"
	}
}

// Entry 缓存条目
type Entry struct {
	// RR 记录，TTL 为收到时的原始值
	RR dns.RR

	// IfIndex 收到记录的接口
	IfIndex int

	// CacheFlush 是否带 cache-flush 位
	CacheFlush bool

	// Received 最近一次收到的时间
	Received time.Time

	// Expires 过期时间
	Expires time.Time

	refreshed bool
}

// Name 记录名
func (e *Entry) Name() string { return e.RR.Header().Name }

// Type 记录类型
func (e *Entry) Type() uint16 { return e.RR.Header().Rrtype }

// TTL 收到时的 TTL
func (e *Entry) TTL() time.Duration {
	return time.Duration(e.RR.Header().Ttl) * time.Second
}

// Remaining 剩余有效期
func (e *Entry) Remaining(now time.Time) time.Duration {
	if d := e.Expires.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Expired 是否已过期
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.Expires)
}

type key struct {
	name    string
	rrtype  uint16
	rdata   string
	ifIndex int
}

type nameKey struct {
	name   string
	rrtype uint16
}

// Cache 记录缓存
type Cache struct {
	clk     clock.Clock
	entries *lru.Cache[key, *Entry]

	// byName 二级索引，用于按 (名称, 类型) 查找
	byName map[nameKey]map[key]struct{}

	// evicted 容量淘汰的条目，下次 Sweep 时一并返回
	evicted  []*Entry
	removing bool
}

// New 创建缓存
func New(size int, clk clock.Clock) (*Cache, error) {
	c := &Cache{
		clk:    clk,
		byName: make(map[nameKey]map[key]struct{}),
	}
	entries, err := lru.NewWithEvict(size, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

func keyOf(rr dns.RR, ifIndex int) key {
	h := rr.Header()
	return key{
		name:    dns.CanonicalName(h.Name),
		rrtype:  h.Rrtype,
		rdata:   wire.RdataKey(rr),
		ifIndex: ifIndex,
	}
}

func (k key) nameKey() nameKey {
	return nameKey{name: k.name, rrtype: k.rrtype}
}

// onEvict 由 lru 在容量淘汰与显式删除时回调
func (c *Cache) onEvict(k key, e *Entry) {
	c.unindex(k)
	if c.removing {
		return
	}
	log.Debug("缓存已满，淘汰记录", "name", k.name, "type", dns.TypeToString[k.rrtype])
	c.evicted = append(c.evicted, e)
}

func (c *Cache) index(k key) {
	nk := k.nameKey()
	set, ok := c.byName[nk]
	if !ok {
		set = make(map[key]struct{})
		c.byName[nk] = set
	}
	set[k] = struct{}{}
}

func (c *Cache) unindex(k key) {
	nk := k.nameKey()
	if set, ok := c.byName[nk]; ok {
		delete(set, k)
		if len(set) == 0 {
			delete(c.byName, nk)
		}
	}
}

func (c *Cache) remove(k key) {
	c.removing = true
	c.entries.Remove(k)
	c.removing = false
}

// Observe 记录收到的资源记录并返回处理结果
//
// TTL 为 0 的记录（goodbye）删除已知条目；未知的 goodbye 视为 Suppressed。
// 带 cache-flush 位的记录使同名同类型同接口、rdata 不同且收到已超过
// 1 秒的条目在 1 秒后过期。
func (c *Cache) Observe(rec wire.Record, ifIndex int) (Verdict, *Entry) {
	now := c.clk.Now()
	k := keyOf(rec.RR, ifIndex)
	ttl := time.Duration(rec.TTL()) * time.Second

	if rec.CacheFlush && ttl > 0 {
		c.flushOthers(k, now)
	}

	existing, ok := c.entries.Get(k)
	if ttl == 0 {
		if !ok {
			return Suppressed, nil
		}
		c.remove(k)
		return Goodbye, existing
	}

	if ok {
		if existing.Remaining(now) >= ttl {
			return Suppressed, existing
		}
		existing.RR = rec.RR
		existing.CacheFlush = rec.CacheFlush
		existing.Received = now
		existing.Expires = now.Add(ttl)
		existing.refreshed = false
		return Refreshed, existing
	}

	e := &Entry{
		RR:         rec.RR,
		IfIndex:    ifIndex,
		CacheFlush: rec.CacheFlush,
		Received:   now,
		Expires:    now.Add(ttl),
	}
	c.entries.Add(k, e)
	c.index(k)
	return Fresh, e
}

func (c *Cache) flushOthers(k key, now time.Time) {
	for other := range c.byName[k.nameKey()] {
		if other == k || other.ifIndex != k.ifIndex {
			continue
		}
		e, ok := c.entries.Peek(other)
		if !ok || now.Sub(e.Received) <= flushGrace {
			continue
		}
		if deadline := now.Add(flushGrace); e.Expires.After(deadline) {
			e.Expires = deadline
		}
	}
}

// Sweep 删除并返回所有过期条目（包括容量淘汰的条目）
func (c *Cache) Sweep() []*Entry {
	now := c.clk.Now()
	out := c.evicted
	c.evicted = nil

	var expired []key
	for _, k := range c.entries.Keys() {
		if e, ok := c.entries.Peek(k); ok && e.Expired(now) {
			expired = append(expired, k)
			out = append(out, e)
		}
	}
	for _, k := range expired {
		c.remove(k)
	}
	return out
}

// Lookup 返回 (名称, 类型) 下所有未过期条目
func (c *Cache) Lookup(name string, rrtype uint16) []*Entry {
	now := c.clk.Now()
	set := c.byName[nameKey{name: dns.CanonicalName(name), rrtype: rrtype}]
	out := make([]*Entry, 0, len(set))
	for k := range set {
		if e, ok := c.entries.Peek(k); ok && !e.Expired(now) {
			out = append(out, e)
		}
	}
	return out
}

// KnownAnswers 返回剩余 TTL 超过一半的条目，用于查询的已知应答（RFC 6762 §7.1）
//
// 不同接口上 rdata 相同的记录只返回一条，TTL 为剩余秒数。
func (c *Cache) KnownAnswers(name string, rrtype uint16) []wire.Record {
	now := c.clk.Now()
	seen := make(map[string]struct{})
	var out []wire.Record
	for _, e := range c.Lookup(name, rrtype) {
		remaining := e.Remaining(now)
		if remaining*2 <= e.TTL() {
			continue
		}
		rk := wire.RdataKey(e.RR)
		if _, dup := seen[rk]; dup {
			continue
		}
		seen[rk] = struct{}{}
		out = append(out, wire.Record{RR: wire.WithTTL(e.RR, uint32(remaining/time.Second))})
	}
	return out
}

// DueForRefresh 返回到达 TTL 的 fraction 比例且尚未刷新的条目，并标记为已刷新
//
// 条目再次收到（Refreshed）后标记被清除。
func (c *Cache) DueForRefresh(name string, rrtype uint16, fraction float64) []*Entry {
	now := c.clk.Now()
	var out []*Entry
	for _, e := range c.Lookup(name, rrtype) {
		if e.refreshed {
			continue
		}
		if now.Sub(e.Received) >= time.Duration(float64(e.TTL())*fraction) {
			e.refreshed = true
			out = append(out, e)
		}
	}
	return out
}

// Remove 删除条目
func (c *Cache) Remove(e *Entry) {
	c.remove(keyOf(e.RR, e.IfIndex))
}

// Len 条目数
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge 清空缓存
func (c *Cache) Purge() {
	c.removing = true
	c.entries.Purge()
	c.removing = false
	c.evicted = nil
	c.byName = make(map[nameKey]map[key]struct{})
}
