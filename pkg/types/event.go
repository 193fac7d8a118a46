package types

import "fmt"

// ============================================================================
//                              EventKind - 事件类型
// ============================================================================

// EventKind 事件类型
type EventKind int

const (
	// EventServicePublished 服务发布完成（最后一次初始通告之后）
	EventServicePublished EventKind = iota + 1
	// EventServiceAdded 浏览会话首次解析出实例
	EventServiceAdded
	// EventServiceUpdated 已存在实例的数据变化
	EventServiceUpdated
	// EventServiceRemoved 实例消失或会话结束
	EventServiceRemoved
	// EventError 错误事件，具体类型见 Event.Error
	EventError
)

// String 返回事件类型的字符串表示
func (k EventKind) String() string {
	switch k {
	case EventServicePublished:
		return "servicePublished"
	case EventServiceAdded:
		return "serviceAdded"
	case EventServiceUpdated:
		return "serviceUpdated"
	case EventServiceRemoved:
		return "serviceRemoved"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              ErrorKind - 错误类型
// ============================================================================

// ErrorKind 错误事件类型
type ErrorKind int

const (
	// ErrorNone 无错误
	ErrorNone ErrorKind = iota
	// ErrorServiceNameCollision 服务名冲突
	ErrorServiceNameCollision
	// ErrorServiceRegistrationFailed 服务注册失败
	ErrorServiceRegistrationFailed
	// ErrorBrowserFailed 浏览失败
	ErrorBrowserFailed
)

// String 返回错误类型的字符串表示
func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorServiceNameCollision:
		return "serviceNameCollision"
	case ErrorServiceRegistrationFailed:
		return "serviceRegistrationFailed"
	case ErrorBrowserFailed:
		return "browserFailed"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              Event - 事件
// ============================================================================

// Event 引擎事件
//
// Record 仅对 ServiceAdded/ServiceUpdated/ServiceRemoved 有效；
// Error 与 Cause 仅对 EventError 有效。
type Event struct {
	Kind   EventKind
	Record ServiceRecord
	Error  ErrorKind
	Cause  error
}

// String 返回可读表示
func (e Event) String() string {
	switch e.Kind {
	case EventServiceAdded, EventServiceUpdated, EventServiceRemoved:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Record)
	case EventError:
		if e.Cause != nil {
			return fmt.Sprintf("error(%s: %v)", e.Error, e.Cause)
		}
		return fmt.Sprintf("error(%s)", e.Error)
	default:
		return e.Kind.String()
	}
}

// PublishedEvent 构造 ServicePublished 事件
func PublishedEvent() Event {
	return Event{Kind: EventServicePublished}
}

// RecordEvent 构造携带记录快照的事件
func RecordEvent(kind EventKind, rec *ServiceRecord) Event {
	return Event{Kind: kind, Record: rec.Clone()}
}

// ErrorEvent 构造错误事件
func ErrorEvent(kind ErrorKind, cause error) Event {
	return Event{Kind: EventError, Error: kind, Cause: cause}
}
