package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration 是支持 JSON 字符串解析的 time.Duration 包装类型
//
// 支持的格式:
//   - 字符串: "250ms", "1s", "75m" 等
//   - 数字: 纳秒数
//
// 使用示例:
//
//	type ProbeConfig struct {
//	    Interval Duration `json:"interval"`
//	}
//
//	// JSON: {"interval": "250ms"} 或 {"interval": 250000000}
type Duration time.Duration

// UnmarshalJSON 实现 json.Unmarshaler 接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch x := v.(type) {
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("invalid duration string %q: %w", x, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(int64(x))
	default:
		return fmt.Errorf("duration must be a string (e.g., \"250ms\") or number (nanoseconds), got %s", data)
	}
	return nil
}

// MarshalJSON 实现 json.Marshaler 接口，输出为字符串格式
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Duration 返回底层的 time.Duration 值
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Seconds 返回整秒数，用于 DNS TTL 字段
func (d Duration) Seconds() uint32 {
	return uint32(time.Duration(d) / time.Second)
}

// String 返回字符串表示
func (d Duration) String() string {
	return time.Duration(d).String()
}
