package publish

import (
	"fmt"

	"github.com/miekg/dns"

	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

// ============================================================================
//                              探测与通告
// ============================================================================

// probe 发送下一次探测，全部发送完毕后转入通告
func (p *Publisher) probe(reg *Registration) {
	if p.reg != reg || reg.state != StateProbing {
		return
	}
	if reg.probes >= p.cfg.ProbeCount {
		p.announce(reg)
		return
	}

	out := &wire.Outgoing{
		Questions: []wire.Question{{
			Name:            reg.instanceName,
			Type:            dns.TypeANY,
			UnicastResponse: reg.probes == 0,
		}},
	}
	for _, rr := range reg.probeRecords() {
		out.Authorities = append(out.Authorities, wire.Record{RR: rr})
	}
	if err := p.deps.Send(out, interfaces.Destination{}); err != nil {
		p.abort(reg, StateFailed, types.ErrorServiceRegistrationFailed, fmt.Errorf("%w: probe: %w", ErrSendFailed, err))
		return
	}
	reg.probes++
	p.deps.Metrics.LogProbe()
	log.Debug("发送探测", "instance", reg.instanceName, "probe", reg.probes)

	reg.timer = p.deps.Loop.AfterFunc(p.cfg.ProbeInterval.Duration(), func() { p.probe(reg) })
}

// announce 发送一次初始通告，最后一次之后进入 Established
func (p *Publisher) announce(reg *Registration) {
	if p.reg != reg {
		return
	}
	reg.state = StateAnnouncing

	out := &wire.Outgoing{Response: true, Answers: reg.announcement(p.addrs())}
	if err := p.deps.Send(out, interfaces.Destination{}); err != nil {
		p.abort(reg, StateFailed, types.ErrorServiceRegistrationFailed, fmt.Errorf("%w: announce: %w", ErrSendFailed, err))
		return
	}
	reg.announces++
	log.Debug("发送通告", "instance", reg.instanceName, "announce", reg.announces)

	if reg.announces < p.cfg.AnnounceCount {
		interval := p.cfg.AnnounceInterval.Duration() << (reg.announces - 1)
		reg.timer = p.deps.Loop.AfterFunc(interval, func() { p.announce(reg) })
		return
	}

	reg.timer = nil
	reg.state = StateEstablished
	log.Info("服务发布完成", "id", reg.ID, "instance", reg.instanceName)
	p.deps.Emit(types.PublishedEvent())
}

// ============================================================================
//                              冲突检测
// ============================================================================

// HandleMessage 处理收到的报文：检测冲突、同时探测平局，并回答查询
func (p *Publisher) HandleMessage(msg *wire.Message, pkt interfaces.Packet) {
	reg := p.reg
	if reg == nil {
		return
	}

	if msg.Response {
		p.checkConflict(reg, msg)
		return
	}
	if reg.state == StateProbing && msg.IsProbe() {
		p.checkProbe(reg, msg)
		return
	}
	if reg.state.Responding() {
		p.respond(reg, msg, pkt)
	}
}

// checkConflict 权威应答中与本实例同名但数据不同的 SRV/TXT 视为冲突
func (p *Publisher) checkConflict(reg *Registration, msg *wire.Message) {
	if !msg.Authoritative {
		return
	}
	ours := map[uint16]dns.RR{
		dns.TypeSRV: reg.srv(),
		dns.TypeTXT: reg.txt(),
	}
	for rec := range msg.Records() {
		if rec.TTL() == 0 || !wire.SameName(rec.Name(), reg.instanceName) {
			continue
		}
		mine, ok := ours[rec.Type()]
		if !ok || wire.SameRdata(mine, rec.RR) {
			continue
		}

		p.deps.Metrics.LogConflict()
		p.abort(reg, StateConflict, types.ErrorServiceNameCollision,
			fmt.Errorf("%w: %s (%s)", ErrNameConflict, reg.Instance, dns.TypeToString[rec.Type()]))
		return
	}
}

// checkProbe 同时探测的平局判定（RFC 6762 §8.2）
//
// 对方记录集较大时本方失败，等待 ConflictDefer 后重新探测；
// 记录集相同为自身回环，忽略。
func (p *Publisher) checkProbe(reg *Registration, msg *wire.Message) {
	asked := false
	for _, q := range msg.Questions {
		if wire.SameName(q.Name, reg.instanceName) {
			asked = true
			break
		}
	}
	if !asked {
		return
	}

	var theirs []dns.RR
	for _, rec := range msg.Authorities {
		if wire.SameName(rec.Name(), reg.instanceName) {
			theirs = append(theirs, rec.RR)
		}
	}
	if len(theirs) == 0 {
		return
	}

	if wire.CompareRecordSets(theirs, reg.probeRecords()) <= 0 {
		return
	}

	log.Info("同时探测失败，延迟后重新探测", "instance", reg.instanceName, "defer", p.cfg.ConflictDefer)
	p.deps.Metrics.LogConflict()
	reg.stopTimers()
	reg.probes = 0
	reg.timer = p.deps.Loop.AfterFunc(p.cfg.ConflictDefer.Duration(), func() { p.probe(reg) })
}
