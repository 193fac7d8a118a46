package publish

import (
	"net/netip"

	"github.com/google/uuid"
	"github.com/miekg/dns"

	"github.com/dep2p/go-zeroconf/internal/core/loop"
	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

// Registration 正在发布的服务
type Registration struct {
	// ID 注册标识
	ID string

	Instance string
	Service  string
	Domain   string
	Port     uint16
	Txt      types.TxtRecords

	state State

	instanceName string
	serviceName  string
	hostName     string
	txtStrings   []string

	hostTTL   uint32
	recordTTL uint32

	// probes 本轮已发送的探测次数
	probes int
	// announces 已发送的初始通告次数
	announces int
	timer     *loop.Timer

	// txtAnnounces TXT 更新通告剩余次数
	txtAnnounces int
	txtTimer     *loop.Timer
}

func newRegistration(instance, service, domain, host string, port uint16, txt types.TxtRecords, hostTTL, recordTTL uint32) (*Registration, error) {
	strs, err := wire.EncodeTxt(txt)
	if err != nil {
		return nil, err
	}
	return &Registration{
		ID:           uuid.NewString(),
		Instance:     instance,
		Service:      wire.TrimDot(service),
		Domain:       wire.TrimDot(domain),
		Port:         port,
		Txt:          txt,
		instanceName: wire.InstanceFQDN(instance, service, domain),
		serviceName:  wire.ServiceFQDN(service, domain),
		hostName:     wire.HostFQDN(host, domain),
		txtStrings:   strs,
		hostTTL:      hostTTL,
		recordTTL:    recordTTL,
	}, nil
}

// State 当前状态
func (r *Registration) State() State {
	return r.state
}

// InstanceName 实例完整域名
func (r *Registration) InstanceName() string {
	return r.instanceName
}

// HostName 主机完整域名
func (r *Registration) HostName() string {
	return r.hostName
}

func (r *Registration) stopTimers() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.txtTimer != nil {
		r.txtTimer.Stop()
		r.txtTimer = nil
	}
}

// setTxt 替换 TXT 记录
func (r *Registration) setTxt(txt types.TxtRecords) error {
	strs, err := wire.EncodeTxt(txt)
	if err != nil {
		return err
	}
	r.Txt = txt
	r.txtStrings = strs
	return nil
}

// ============================================================================
//                              记录构造
// ============================================================================

func (r *Registration) ptr() dns.RR {
	return wire.NewPTR(r.serviceName, r.instanceName, r.recordTTL)
}

func (r *Registration) srv() dns.RR {
	return wire.NewSRV(r.instanceName, r.hostName, r.Port, r.hostTTL)
}

func (r *Registration) txt() dns.RR {
	return wire.NewTXT(r.instanceName, r.txtStrings, r.recordTTL)
}

func (r *Registration) enumeration() dns.RR {
	return wire.NewPTR(wire.EnumerationFQDN(r.Domain), r.serviceName, r.recordTTL)
}

func (r *Registration) addrs(addrs []netip.Addr) []dns.RR {
	out := make([]dns.RR, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, wire.NewAddr(r.hostName, a, r.hostTTL))
	}
	return out
}

// probeRecords 探测报文授权段中的候选记录
func (r *Registration) probeRecords() []dns.RR {
	return []dns.RR{r.srv(), r.txt()}
}

// announcement 通告报文的全部记录，唯一记录带 cache-flush 位
func (r *Registration) announcement(addrs []netip.Addr) []wire.Record {
	recs := []wire.Record{
		{RR: r.ptr()},
		{RR: r.srv(), CacheFlush: true},
		{RR: r.txt(), CacheFlush: true},
	}
	for _, rr := range r.addrs(addrs) {
		recs = append(recs, wire.Record{RR: rr, CacheFlush: true})
	}
	return append(recs, wire.Record{RR: r.enumeration()})
}

// goodbye 服务相关记录，TTL 为 0
//
// 地址记录属于主机，不随服务撤销。
func (r *Registration) goodbye() []wire.Record {
	recs := r.announcement(nil)
	for i := range recs {
		recs[i].RR = wire.WithTTL(recs[i].RR, 0)
	}
	return recs
}
