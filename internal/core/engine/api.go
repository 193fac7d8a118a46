package engine

import (
	"context"

	"github.com/dep2p/go-zeroconf/internal/core/loop"
	"github.com/dep2p/go-zeroconf/internal/core/publish"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

// ============================================================================
//                              服务发布
// ============================================================================

// StartServicePublish 发布服务，失败时同时派发 serviceRegistrationFailed
func (e *Engine) StartServicePublish(ctx context.Context, name, service, domain string, port uint16) error {
	return e.call(ctx, func() error {
		e.refreshInterfaces()
		return e.pub.Start(name, service, domain, port)
	})
}

// StopServicePublish 撤销发布
func (e *Engine) StopServicePublish(ctx context.Context) error {
	return e.call(ctx, func() error {
		e.pub.Stop()
		return nil
	})
}

// PublishExists 是否存在发布中的服务
func (e *Engine) PublishExists(ctx context.Context) (bool, error) {
	var ok bool
	err := e.call(ctx, func() error {
		ok = e.pub.Exists()
		return nil
	})
	return ok, err
}

// PublishState 当前发布状态
func (e *Engine) PublishState(ctx context.Context) (publish.State, error) {
	var s publish.State
	err := e.call(ctx, func() error {
		s = e.pub.State()
		return nil
	})
	return s, err
}

// AddServiceTxtRecord 暂存一条 TXT 记录
func (e *Engine) AddServiceTxtRecord(ctx context.Context, key string, value ...string) error {
	return e.call(ctx, func() error {
		return e.pub.AddTxt(key, value...)
	})
}

// ClearServiceTxtRecords 清空暂存的 TXT 记录
func (e *Engine) ClearServiceTxtRecords(ctx context.Context) error {
	return e.call(ctx, func() error {
		e.pub.ClearTxt()
		return nil
	})
}

// UpdateServiceTxtRecords 以暂存的 TXT 记录更新已发布的服务
func (e *Engine) UpdateServiceTxtRecords(ctx context.Context) error {
	return e.call(ctx, func() error {
		return e.pub.UpdateTxt()
	})
}

// ============================================================================
//                              服务浏览
// ============================================================================

// StartBrowser 开始浏览，失败时同时派发 browserFailed
func (e *Engine) StartBrowser(ctx context.Context, service string, proto types.Protocol) error {
	return e.call(ctx, func() error {
		return e.br.Start(service, proto)
	})
}

// StopBrowser 结束浏览，为每个实例派发 serviceRemoved
func (e *Engine) StopBrowser(ctx context.Context) error {
	return e.call(ctx, func() error {
		e.br.Stop()
		return nil
	})
}

// BrowserExists 是否存在浏览会话
func (e *Engine) BrowserExists(ctx context.Context) (bool, error) {
	var ok bool
	err := e.call(ctx, func() error {
		ok = e.br.Exists()
		return nil
	})
	return ok, err
}

// Services 当前浏览会话中已解析实例的快照
func (e *Engine) Services(ctx context.Context) ([]types.ServiceRecord, error) {
	var out []types.ServiceRecord
	err := e.call(ctx, func() error {
		out = e.br.Services()
		return nil
	})
	return out, err
}

// call 在事件循环中执行 fn 并等待结果
func (e *Engine) call(ctx context.Context, fn func() error) error {
	if !e.started.Load() {
		return ErrNotStarted
	}
	var err error
	if derr := e.loop.Do(ctx, func() { err = fn() }); derr != nil {
		if derr == loop.ErrClosed {
			return ErrStopped
		}
		return derr
	}
	return err
}
