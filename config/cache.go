package config

import (
	"fmt"
	"time"
)

// CacheConfig 记录缓存配置
type CacheConfig struct {
	// Size 最大缓存记录数，超出时淘汰最久未使用的记录
	Size int `json:"size"`

	// SweepInterval 过期扫描间隔
	SweepInterval Duration `json:"sweep_interval"`
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Size:          4096,
		SweepInterval: Duration(time.Second),
	}
}

// Validate 验证缓存配置
func (c CacheConfig) Validate() error {
	if c.Size < 1 {
		return fmt.Errorf("%w: cache size must be positive", ErrInvalidConfig)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("%w: sweep_interval must be positive", ErrInvalidConfig)
	}
	return nil
}
