package wire

import (
	"bytes"
	"cmp"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

func header(name string, rrtype uint16, ttl uint32) dns.RR_Header {
	return dns.RR_Header{Name: name, Rrtype: rrtype, Class: dns.ClassINET, Ttl: ttl}
}

// NewPTR 构造 PTR 记录
func NewPTR(name, target string, ttl uint32) *dns.PTR {
	return &dns.PTR{Hdr: header(name, dns.TypePTR, ttl), Ptr: target}
}

// NewSRV 构造 SRV 记录
func NewSRV(name, target string, port uint16, ttl uint32) *dns.SRV {
	return &dns.SRV{Hdr: header(name, dns.TypeSRV, ttl), Target: target, Port: port}
}

// NewTXT 构造 TXT 记录，txt 为 EncodeTxt 的结果
func NewTXT(name string, txt []string, ttl uint32) *dns.TXT {
	return &dns.TXT{Hdr: header(name, dns.TypeTXT, ttl), Txt: txt}
}

// NewAddr 按地址族构造 A 或 AAAA 记录
func NewAddr(name string, addr netip.Addr, ttl uint32) dns.RR {
	if addr.Is4() || addr.Is4In6() {
		return &dns.A{Hdr: header(name, dns.TypeA, ttl), A: net.IP(addr.Unmap().AsSlice())}
	}
	return &dns.AAAA{Hdr: header(name, dns.TypeAAAA, ttl), AAAA: net.IP(addr.WithZone("").AsSlice())}
}

// AddrOf 取出 A/AAAA 记录中的地址
func AddrOf(rr dns.RR) (netip.Addr, bool) {
	var ip net.IP
	switch v := rr.(type) {
	case *dns.A:
		ip = v.A.To4()
	case *dns.AAAA:
		ip = v.AAAA.To16()
	default:
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(ip)
	return addr, ok
}

// WithTTL 复制记录并设置 TTL
func WithTTL(rr dns.RR, ttl uint32) dns.RR {
	c := dns.Copy(rr)
	c.Header().Ttl = ttl
	return c
}

// RdataKey 返回记录数据的规范化表示
//
// 名称按小写比较，TXT 按还原转义后的内容比较，用于缓存键与冲突检测。
func RdataKey(rr dns.RR) string {
	switch v := rr.(type) {
	case *dns.PTR:
		return dns.CanonicalName(v.Ptr)
	case *dns.SRV:
		return strings.Join([]string{
			strconv.Itoa(int(v.Priority)),
			strconv.Itoa(int(v.Weight)),
			strconv.Itoa(int(v.Port)),
			dns.CanonicalName(v.Target),
		}, " ")
	case *dns.TXT:
		raw := make([]string, 0, len(v.Txt))
		for _, t := range v.Txt {
			raw = append(raw, unescapeTxt(t))
		}
		return strings.Join(raw, "\x00")
	case *dns.A:
		return v.A.To4().String()
	case *dns.AAAA:
		return v.AAAA.To16().String()
	default:
		return rr.String()
	}
}

// SameRdata 两条记录的数据是否相同（不比较 TTL）
func SameRdata(a, b dns.RR) bool {
	return a.Header().Rrtype == b.Header().Rrtype && RdataKey(a) == RdataKey(b)
}

// CompareRecordSets 按 RFC 6762 §8.2 比较两组探测记录
//
// 两组记录先按 class、type、原始 rdata 排序，再逐条比较；
// 一组是另一组的前缀时较长者更大。返回值 <0、0、>0 分别表示
// a 小于、等于、大于 b。
func CompareRecordSets(a, b []dns.RR) int {
	ra, rb := sortedRaw(a), sortedRaw(b)
	for i := 0; i < len(ra) && i < len(rb); i++ {
		if c := ra[i].compare(rb[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(ra), len(rb))
}

type rawRecord struct {
	class  uint16
	rrtype uint16
	rdata  []byte
}

func (r rawRecord) compare(o rawRecord) int {
	if c := cmp.Compare(r.class, o.class); c != 0 {
		return c
	}
	if c := cmp.Compare(r.rrtype, o.rrtype); c != 0 {
		return c
	}
	return bytes.Compare(r.rdata, o.rdata)
}

func sortedRaw(rrs []dns.RR) []rawRecord {
	out := make([]rawRecord, 0, len(rrs))
	for _, rr := range rrs {
		out = append(out, rawRecord{
			class:  rr.Header().Class &^ classTopBit,
			rrtype: rr.Header().Rrtype,
			rdata:  rawRdata(rr),
		})
	}
	slices.SortFunc(out, rawRecord.compare)
	return out
}

// rawRdata 以不压缩的形式打包并截取 rdata
func rawRdata(rr dns.RR) []byte {
	c := dns.Copy(rr)
	// 根名称占 1 字节，头部固定 11 字节
	c.Header().Name = "."
	buf := make([]byte, dns.Len(c)+16)
	off, err := dns.PackRR(c, buf, 0, nil, false)
	if err != nil || off < 11 {
		return []byte(RdataKey(rr))
	}
	return buf[11:off]
}
