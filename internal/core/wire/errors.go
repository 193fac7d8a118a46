package wire

import "errors"

var (
	// ErrMalformed 报文无法解析或不是合法的 mDNS 报文
	ErrMalformed = errors.New("wire: malformed message")

	// ErrRecordTooLarge 单条记录超出报文大小上限
	ErrRecordTooLarge = errors.New("wire: record exceeds packet size")

	// ErrTxtTooLong TXT 字符串超过 255 字节
	ErrTxtTooLong = errors.New("wire: txt string exceeds 255 bytes")

	// ErrInvalidName 名称格式无效
	ErrInvalidName = errors.New("wire: invalid name")
)
