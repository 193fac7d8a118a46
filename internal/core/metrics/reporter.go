package metrics

import (
	"github.com/dep2p/go-zeroconf/pkg/types"
)

// Reporter 记录引擎指标
type Reporter interface {
	// LogRecvPacket 记录收到的数据包
	LogRecvPacket(family types.Protocol, size int)

	// LogSentPacket 记录发出的数据包
	LogSentPacket(size int)

	// LogDecodeError 记录解码失败
	LogDecodeError()

	// LogEvent 记录派发的事件
	LogEvent(ev types.Event)

	// LogProbe 记录发出的探测报文
	LogProbe()

	// LogConflict 记录名称冲突
	LogConflict()

	// SetCacheEntries 更新缓存记录数
	SetCacheEntries(n int)
}

// 确保 Metrics 和 Nop 实现 Reporter 接口
var (
	_ Reporter = (*Metrics)(nil)
	_ Reporter = Nop{}
)

// Nop 丢弃所有指标
type Nop struct{}

func (Nop) LogRecvPacket(types.Protocol, int) {}
func (Nop) LogSentPacket(int)                 {}
func (Nop) LogDecodeError()                   {}
func (Nop) LogEvent(types.Event)              {}
func (Nop) LogProbe()                         {}
func (Nop) LogConflict()                      {}
func (Nop) SetCacheEntries(int)               {}
