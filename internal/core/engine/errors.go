package engine

import "errors"

var (
	// ErrNotStarted 引擎尚未启动
	ErrNotStarted = errors.New("engine: not started")

	// ErrStopped 引擎已停止
	ErrStopped = errors.New("engine: stopped")

	// ErrNilTransport 未提供传输
	ErrNilTransport = errors.New("engine: nil transport")
)
