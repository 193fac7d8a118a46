package transport

import "errors"

var (
	// ErrNoInterfaces 没有可用的多播接口
	ErrNoInterfaces = errors.New("transport: no usable multicast interface")

	// ErrClosed 传输已关闭
	ErrClosed = errors.New("transport: closed")

	// ErrNotListening 尚未调用 Listen
	ErrNotListening = errors.New("transport: not listening")

	// ErrAlreadyListening 重复调用 Listen
	ErrAlreadyListening = errors.New("transport: already listening")

	// ErrFamilyDisabled 目标地址族未启用
	ErrFamilyDisabled = errors.New("transport: address family disabled")
)
