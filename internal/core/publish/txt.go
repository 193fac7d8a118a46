package publish

import (
	"fmt"

	"github.com/dep2p/go-zeroconf/internal/core/wire"
	"github.com/dep2p/go-zeroconf/pkg/interfaces"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

// ============================================================================
//                              TXT 记录
// ============================================================================

// AddTxt 暂存一条 TXT 记录，同名键（不区分大小写）被替换
//
// 暂存的记录在下一次 Start 或 UpdateTxt 时生效。
func (p *Publisher) AddTxt(key string, value ...string) error {
	if err := wire.ValidateTxtKey(key); err != nil {
		return err
	}
	next := p.staged.Clone()
	next.Set(key, value...)
	if _, err := wire.EncodeTxt(next); err != nil {
		return err
	}
	p.staged = next
	return nil
}

// ClearTxt 清空暂存的 TXT 记录
func (p *Publisher) ClearTxt() {
	p.staged = nil
}

// StagedTxt 返回暂存的 TXT 记录副本
func (p *Publisher) StagedTxt() types.TxtRecords {
	return p.staged.Clone()
}

// UpdateTxt 用暂存的 TXT 记录替换已发布的记录
//
// Probing/Announcing 状态下只替换候选记录；Established 状态下发送
// 两次间隔 AnnounceInterval 的 cache-flush TXT 通告，发送失败派发
// serviceRegistrationFailed 但保持 Established。没有注册时无操作。
func (p *Publisher) UpdateTxt() error {
	reg := p.reg
	if reg == nil {
		return nil
	}
	if err := reg.setTxt(p.staged.Clone()); err != nil {
		return p.fail(fmt.Errorf("%w: %w", ErrInvalidService, err))
	}
	log.Debug("更新 TXT 记录", "instance", reg.instanceName, "state", reg.state, "txt", len(reg.Txt))

	if reg.state != StateEstablished {
		return nil
	}
	if reg.txtTimer != nil {
		reg.txtTimer.Stop()
		reg.txtTimer = nil
	}
	reg.txtAnnounces = 2
	return p.announceTxt(reg)
}

func (p *Publisher) announceTxt(reg *Registration) error {
	reg.txtTimer = nil
	if p.reg != reg || reg.txtAnnounces <= 0 {
		return nil
	}
	reg.txtAnnounces--

	out := &wire.Outgoing{
		Response: true,
		Answers:  []wire.Record{{RR: reg.txt(), CacheFlush: true}},
	}
	if err := p.deps.Send(out, interfaces.Destination{}); err != nil {
		reg.txtAnnounces = 0
		return p.fail(fmt.Errorf("%w: txt update: %w", ErrSendFailed, err))
	}

	if reg.txtAnnounces > 0 {
		reg.txtTimer = p.deps.Loop.AfterFunc(p.cfg.AnnounceInterval.Duration(), func() {
			_ = p.announceTxt(reg)
		})
	}
	return nil
}
