package wire

import (
	"fmt"

	"github.com/miekg/dns"
)

// DefaultMaxPacketSize IPv6 以太网 UDP 载荷上限
const DefaultMaxPacketSize = 1452

// Outgoing 待发送的报文内容
//
// Response 为 true 时编码为权威应答；否则为查询，Answers 是已知应答列表。
type Outgoing struct {
	ID       uint16
	Response bool

	Questions   []Question
	Answers     []Record
	Authorities []Record
	Additionals []Record
}

// Empty 是否没有任何内容
func (o *Outgoing) Empty() bool {
	return len(o.Questions) == 0 && len(o.Answers) == 0 && len(o.Authorities) == 0
}

// Encode 将报文编码为一个或多个不超过 maxSize 字节的数据包
//
// 问题和授权段必须放进第一个包；应答按顺序填充，放不下时开启新包，
// 后续包不再携带问题。查询的已知应答溢出时，除最后一个包外都置 TC 位
// （RFC 6762 §7.2）。附加记录只放进最后一个包，放不下的丢弃。
// maxSize <= 0 时使用 DefaultMaxPacketSize。
func Encode(out *Outgoing, maxSize int) ([][]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxPacketSize
	}

	m := newMsg(out)
	for _, q := range out.Questions {
		qclass := uint16(dns.ClassINET)
		if q.UnicastResponse {
			qclass |= classTopBit
		}
		m.Question = append(m.Question, dns.Question{Name: q.Name, Qtype: q.Type, Qclass: qclass})
	}
	m.Ns = toRRs(out.Authorities)
	if m.Len() > maxSize {
		return nil, fmt.Errorf("%w: questions and authority records need %d bytes", ErrRecordTooLarge, m.Len())
	}

	var msgs []*dns.Msg
	for _, rr := range toRRs(out.Answers) {
		m.Answer = append(m.Answer, rr)
		if m.Len() <= maxSize {
			continue
		}
		m.Answer = m.Answer[:len(m.Answer)-1]

		single := newMsg(out)
		single.Answer = []dns.RR{rr}
		if single.Len() > maxSize {
			return nil, fmt.Errorf("%w: %s needs %d bytes", ErrRecordTooLarge, rr.Header().Name, single.Len())
		}

		if !out.Response {
			m.Truncated = true
		}
		msgs = append(msgs, m)
		m = single
	}

	for _, rr := range toRRs(out.Additionals) {
		m.Extra = append(m.Extra, rr)
		if m.Len() > maxSize {
			m.Extra = m.Extra[:len(m.Extra)-1]
		}
	}
	msgs = append(msgs, m)

	packets := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		buf, err := msg.Pack()
		if err != nil {
			return nil, fmt.Errorf("wire: pack: %w", err)
		}
		packets = append(packets, buf)
	}
	return packets, nil
}

func newMsg(out *Outgoing) *dns.Msg {
	m := new(dns.Msg)
	m.Id = out.ID
	m.Opcode = dns.OpcodeQuery
	m.Response = out.Response
	m.Authoritative = out.Response
	m.Compress = true
	return m
}

// toRRs 复制记录并把 cache-flush 位写回 class
func toRRs(recs []Record) []dns.RR {
	out := make([]dns.RR, 0, len(recs))
	for _, r := range recs {
		rr := dns.Copy(r.RR)
		h := rr.Header()
		h.Class = dns.ClassINET
		if r.CacheFlush {
			h.Class |= classTopBit
		}
		out = append(out, rr)
	}
	return out
}
