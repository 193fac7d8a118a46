package publish

import (
	"net/netip"

	"github.com/miekg/dns"

	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
)

// legacyTTL 传统单播应答的 TTL 上限（RFC 6762 §6.7）
const legacyTTL = 10

type answerSet struct {
	records []wire.Record
	seen    map[string]struct{}
}

func newAnswerSet() *answerSet {
	return &answerSet{seen: make(map[string]struct{})}
}

func recordKey(rr dns.RR) string {
	return dns.CanonicalName(rr.Header().Name) + "/" + dns.TypeToString[rr.Header().Rrtype] + "/" + wire.RdataKey(rr)
}

func (s *answerSet) add(rr dns.RR, flush bool) {
	k := recordKey(rr)
	if _, ok := s.seen[k]; ok {
		return
	}
	s.seen[k] = struct{}{}
	s.records = append(s.records, wire.Record{RR: rr, CacheFlush: flush})
}

func (s *answerSet) has(rr dns.RR) bool {
	_, ok := s.seen[recordKey(rr)]
	return ok
}

// respond 回答查询
//
// 查询方在已知应答中列出、且 TTL 不小于本方一半的记录不再回答
// （RFC 6762 §7.1）。源端口不是 5353 的查询方按传统单播应答。
func (p *Publisher) respond(reg *Registration, msg *wire.Message, pkt interfaces.Packet) {
	addrs := p.ifaceAddrs(pkt.IfIndex)
	answers, extras := newAnswerSet(), newAnswerSet()
	unicast := false

	for _, q := range msg.Questions {
		ans, add := reg.answer(q, addrs)
		answered := false
		for _, rr := range ans {
			if knownAnswer(msg, rr) {
				continue
			}
			answers.add(rr, unique(rr))
			answered = true
		}
		if !answered {
			continue
		}
		unicast = unicast || q.UnicastResponse
		for _, rr := range add {
			extras.add(rr, unique(rr))
		}
	}
	if len(answers.records) == 0 {
		return
	}

	out := &wire.Outgoing{Response: true, Answers: answers.records}
	for _, rec := range extras.records {
		if !answers.has(rec.RR) && !knownAnswer(msg, rec.RR) {
			out.Additionals = append(out.Additionals, rec)
		}
	}

	dst := interfaces.Destination{IfIndex: pkt.IfIndex, Protocol: pkt.Protocol}
	legacy := pkt.Src != nil && pkt.Src.Port != wire.Port
	switch {
	case legacy:
		dst.Addr = pkt.Src
		out.ID = msg.ID
		out.Questions = make([]wire.Question, 0, len(msg.Questions))
		for _, q := range msg.Questions {
			out.Questions = append(out.Questions, wire.Question{Name: q.Name, Type: q.Type})
		}
		out.Answers = legacyRecords(out.Answers)
		out.Additionals = legacyRecords(out.Additionals)
	case unicast && pkt.Src != nil:
		dst.Addr = pkt.Src
	}

	log.Debug("回答查询",
		"instance", reg.instanceName,
		"answers", len(out.Answers),
		"additionals", len(out.Additionals),
		"legacy", legacy,
		"unicast", dst.Addr != nil)
	if err := p.deps.Send(out, dst); err != nil {
		log.Warn("发送应答失败", "instance", reg.instanceName, "error", err)
	}
}

// answer 返回问题的应答记录与附加记录
func (r *Registration) answer(q wire.Question, addrs []netip.Addr) (answers, additionals []dns.RR) {
	switch {
	case wire.SameName(q.Name, r.serviceName) && matchType(q.Type, dns.TypePTR):
		answers = append(answers, r.ptr())
		additionals = append(additionals, r.srv(), r.txt())
		additionals = append(additionals, r.addrs(addrs)...)

	case wire.SameName(q.Name, wire.EnumerationFQDN(r.Domain)) && matchType(q.Type, dns.TypePTR):
		answers = append(answers, r.enumeration())

	case wire.SameName(q.Name, r.instanceName):
		if matchType(q.Type, dns.TypeSRV) {
			answers = append(answers, r.srv())
			additionals = append(additionals, r.addrs(addrs)...)
		}
		if matchType(q.Type, dns.TypeTXT) {
			answers = append(answers, r.txt())
		}

	case wire.SameName(q.Name, r.hostName):
		for _, rr := range r.addrs(addrs) {
			if matchType(q.Type, rr.Header().Rrtype) {
				answers = append(answers, rr)
			} else {
				additionals = append(additionals, rr)
			}
		}
	}
	return answers, additionals
}

func matchType(qtype, rrtype uint16) bool {
	return qtype == rrtype || qtype == dns.TypeANY
}

// unique 除 PTR 外的记录都是本机独占的
func unique(rr dns.RR) bool {
	return rr.Header().Rrtype != dns.TypePTR
}

// knownAnswer 查询方是否已缓存该记录且剩余 TTL 不小于一半
func knownAnswer(msg *wire.Message, rr dns.RR) bool {
	for _, ka := range msg.Answers {
		if ka.Type() != rr.Header().Rrtype || !wire.SameName(ka.Name(), rr.Header().Name) {
			continue
		}
		if wire.SameRdata(ka.RR, rr) && uint64(ka.TTL())*2 >= uint64(rr.Header().Ttl) {
			return true
		}
	}
	return false
}

func legacyRecords(recs []wire.Record) []wire.Record {
	out := make([]wire.Record, 0, len(recs))
	for _, rec := range recs {
		rr := rec.RR
		if rr.Header().Ttl > legacyTTL {
			rr = wire.WithTTL(rr, legacyTTL)
		}
		out = append(out, wire.Record{RR: rr})
	}
	return out
}
