package zeroconf

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-zeroconf/internal/core/browse"
	"github.com/dep2p/go-zeroconf/internal/core/engine"
	"github.com/dep2p/go-zeroconf/internal/core/publish"
	"github.com/dep2p/go-zeroconf/pkg/types"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 尚未启动
	ErrNotStarted = engine.ErrNotStarted

	// ErrClosed 已关闭
	ErrClosed = engine.ErrStopped

	// ────────────────────────────────────────────────────────────────────────
	// 发布错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrAlreadyPublished 已有发布中的服务
	ErrAlreadyPublished = publish.ErrAlreadyPublished

	// ErrInvalidService 服务参数无效
	ErrInvalidService = publish.ErrInvalidService

	// ErrNameConflict 服务名冲突
	ErrNameConflict = publish.ErrNameConflict

	// ────────────────────────────────────────────────────────────────────────
	// 浏览错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrBrowserExists 已有浏览会话
	ErrBrowserExists = browse.ErrBrowserExists

	// ErrInvalidBrowse 浏览参数无效
	ErrInvalidBrowse = browse.ErrInvalidBrowse
)

// Error 公共 API 返回的错误
//
// Kind 与同时派发的错误事件类型一致；未派发事件的错误（参数校验、
// 生命周期）为 types.ErrorNone。
type Error struct {
	Op   string
	Kind types.ErrorKind
	Err  error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Kind == types.ErrorNone {
		return fmt.Sprintf("zeroconf: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("zeroconf: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap 返回底层错误
func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError 包装引擎错误，nil 原样返回
func wrapError(op string, kind types.ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrNotStarted) || errors.Is(err, engine.ErrStopped) {
		kind = types.ErrorNone
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
