// Package interfaces 定义 go-zeroconf 的边界接口
//
// 本文件定义事件订阅接口。
package interfaces

import "github.com/dep2p/go-zeroconf/pkg/types"

// Subscription 事件订阅
type Subscription interface {
	// Out 返回接收事件的通道，处理函数订阅返回 nil
	Out() <-chan types.Event

	// Close 取消订阅，可以多次调用
	Close() error
}
