package publish

// State 发布状态
type State int

const (
	// StateIdle 未发布
	StateIdle State = iota
	// StateProbing 探测中
	StateProbing
	// StateAnnouncing 初始通告中
	StateAnnouncing
	// StateEstablished 已发布
	StateEstablished
	// StateConflict 名称冲突，注册已释放
	StateConflict
	// StateFailed 传输失败，注册已释放
	StateFailed
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateAnnouncing:
		return "announcing"
	case StateEstablished:
		return "established"
	case StateConflict:
		return "conflict"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Responding 该状态下是否回答查询
func (s State) Responding() bool {
	return s == StateAnnouncing || s == StateEstablished
}
