// Package types 定义 go-zeroconf 的基础类型
//
// 本文件定义所有公共错误类型。
package types

import "errors"

var (
	// ErrInvalidProtocol 无效的协议名称
	ErrInvalidProtocol = errors.New("invalid protocol")

	// ErrEmptyTxtKey TXT 键为空
	ErrEmptyTxtKey = errors.New("empty txt key")

	// ErrInvalidTxtKey TXT 键包含 '='
	ErrInvalidTxtKey = errors.New("txt key must not contain '='")
)
