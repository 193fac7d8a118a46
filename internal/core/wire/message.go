package wire

import (
	"fmt"
	"iter"
	"net"

	"github.com/miekg/dns"
)

// mDNS 常量
const (
	// Port mDNS 端口
	Port = 5353

	// classTopBit 应答中为 cache-flush，问题中为 QU
	classTopBit = 1 << 15
)

var (
	// IPv4Group mDNS IPv4 多播组
	IPv4Group = net.IPv4(224, 0, 0, 251)

	// IPv6Group mDNS IPv6 多播组
	IPv6Group = net.ParseIP("ff02::fb")

	// IPv4Addr IPv4 多播目标
	IPv4Addr = &net.UDPAddr{IP: IPv4Group, Port: Port}

	// IPv6Addr IPv6 多播目标
	IPv6Addr = &net.UDPAddr{IP: IPv6Group, Port: Port}
)

// Section 记录所在的报文段
type Section int

const (
	// SectionAnswer 应答段
	SectionAnswer Section = iota
	// SectionAuthority 授权段（探测报文中的候选记录）
	SectionAuthority
	// SectionAdditional 附加段
	SectionAdditional
)

// Question 查询问题
type Question struct {
	Name            string
	Type            uint16
	UnicastResponse bool
}

// Record 资源记录
//
// RR 的 class 已去掉最高位，cache-flush 位单独保存在 CacheFlush。
type Record struct {
	RR         dns.RR
	CacheFlush bool
	Section    Section
}

// Name 记录名
func (r Record) Name() string { return r.RR.Header().Name }

// Type 记录类型
func (r Record) Type() uint16 { return r.RR.Header().Rrtype }

// TTL 记录 TTL（秒）
func (r Record) TTL() uint32 { return r.RR.Header().Ttl }

// Message 解码后的 mDNS 报文
type Message struct {
	ID            uint16
	Response      bool
	Authoritative bool
	Truncated     bool

	Questions   []Question
	Answers     []Record
	Authorities []Record
	Additionals []Record
}

// IsProbe 是否为探测报文（带授权段的查询）
func (m *Message) IsProbe() bool {
	return !m.Response && len(m.Questions) > 0 && len(m.Authorities) > 0
}

// Records 按应答、授权、附加的顺序遍历所有 IN 类的 PTR/SRV/TXT/A/AAAA 记录
func (m *Message) Records() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, section := range [][]Record{m.Answers, m.Authorities, m.Additionals} {
			for _, r := range section {
				if !Supported(r.RR) {
					continue
				}
				if !yield(r) {
					return
				}
			}
		}
	}
}

// Supported 是否为引擎处理的记录类型
func Supported(rr dns.RR) bool {
	h := rr.Header()
	if h.Class != dns.ClassINET {
		return false
	}
	switch h.Rrtype {
	case dns.TypePTR, dns.TypeSRV, dns.TypeTXT, dns.TypeA, dns.TypeAAAA:
		return true
	}
	return false
}

// Decode 解码 mDNS 报文
//
// opcode 或 rcode 非 0 的报文必须丢弃（RFC 6762 §18.3、§18.11）。
// 返回的错误均包装 ErrMalformed。
func Decode(data []byte) (*Message, error) {
	var msg dns.Msg
	if err := msg.Unpack(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Opcode != dns.OpcodeQuery {
		return nil, fmt.Errorf("%w: opcode %d", ErrMalformed, msg.Opcode)
	}
	if msg.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: rcode %d", ErrMalformed, msg.Rcode)
	}

	m := &Message{
		ID:            msg.Id,
		Response:      msg.Response,
		Authoritative: msg.Authoritative,
		Truncated:     msg.Truncated,
		Questions:     make([]Question, 0, len(msg.Question)),
	}
	for _, q := range msg.Question {
		m.Questions = append(m.Questions, Question{
			Name:            q.Name,
			Type:            q.Qtype,
			UnicastResponse: q.Qclass&classTopBit != 0,
		})
	}
	m.Answers = fromRRs(msg.Answer, SectionAnswer)
	m.Authorities = fromRRs(msg.Ns, SectionAuthority)
	m.Additionals = fromRRs(msg.Extra, SectionAdditional)
	return m, nil
}

func fromRRs(rrs []dns.RR, section Section) []Record {
	out := make([]Record, 0, len(rrs))
	for _, rr := range rrs {
		h := rr.Header()
		// OPT 的 class 字段是 UDP 载荷大小，不做处理
		if h.Rrtype == dns.TypeOPT {
			continue
		}
		flush := h.Class&classTopBit != 0
		h.Class &^= classTopBit
		out = append(out, Record{RR: rr, CacheFlush: flush, Section: section})
	}
	return out
}
