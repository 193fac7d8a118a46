package config

import (
	"fmt"
	"time"
)

// PublishConfig 服务发布配置
//
// 默认值遵循 RFC 6762：
//   - 主机相关记录（SRV/A/AAAA）TTL 120 秒，其余记录（PTR/TXT）TTL 75 分钟
//   - 3 次探测，间隔 250ms，首次探测前随机延迟 0~250ms
//   - 2 次通告，首次间隔 1 秒，之后翻倍
type PublishConfig struct {
	// HostName 本机主机名（不含域），为空时使用 os.Hostname
	HostName string `json:"host_name,omitempty"`

	// HostTTL SRV/A/AAAA 记录 TTL
	HostTTL Duration `json:"host_ttl"`

	// RecordTTL PTR/TXT 记录 TTL
	RecordTTL Duration `json:"record_ttl"`

	// ProbeCount 探测次数
	ProbeCount int `json:"probe_count"`

	// ProbeInterval 探测间隔
	ProbeInterval Duration `json:"probe_interval"`

	// ProbeInitialDelay 首次探测前随机延迟的上限
	ProbeInitialDelay Duration `json:"probe_initial_delay"`

	// ConflictDefer 同时探测失败后的等待时间（RFC 6762 §8.2）
	ConflictDefer Duration `json:"conflict_defer"`

	// AnnounceCount 初始通告次数
	AnnounceCount int `json:"announce_count"`

	// AnnounceInterval 首次通告间隔，之后每次翻倍
	AnnounceInterval Duration `json:"announce_interval"`
}

// DefaultPublishConfig 返回默认发布配置
func DefaultPublishConfig() PublishConfig {
	return PublishConfig{
		HostTTL:           Duration(120 * time.Second),
		RecordTTL:         Duration(4500 * time.Second),
		ProbeCount:        3,
		ProbeInterval:     Duration(250 * time.Millisecond),
		ProbeInitialDelay: Duration(250 * time.Millisecond),
		ConflictDefer:     Duration(time.Second),
		AnnounceCount:     2,
		AnnounceInterval:  Duration(time.Second),
	}
}

// Validate 验证发布配置
func (c PublishConfig) Validate() error {
	if c.HostTTL < Duration(time.Second) || c.RecordTTL < Duration(time.Second) {
		return fmt.Errorf("%w: ttl must be at least 1s", ErrInvalidConfig)
	}
	if c.ProbeCount < 1 {
		return fmt.Errorf("%w: probe_count must be positive", ErrInvalidConfig)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("%w: probe_interval must be positive", ErrInvalidConfig)
	}
	if c.ProbeInitialDelay < 0 || c.ConflictDefer < 0 {
		return fmt.Errorf("%w: negative probe delay", ErrInvalidConfig)
	}
	if c.AnnounceCount < 2 {
		return fmt.Errorf("%w: announce_count must be at least 2", ErrInvalidConfig)
	}
	if c.AnnounceInterval < Duration(time.Second) {
		return fmt.Errorf("%w: announce_interval must be at least 1s", ErrInvalidConfig)
	}
	return nil
}
