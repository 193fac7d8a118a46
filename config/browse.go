package config

import (
	"fmt"
	"time"
)

// BrowseConfig 服务浏览配置
type BrowseConfig struct {
	// QueryInterval 首次重复查询间隔，之后每次翻倍
	QueryInterval Duration `json:"query_interval"`

	// QueryIntervalMax 重复查询间隔上限
	QueryIntervalMax Duration `json:"query_interval_max"`

	// ResolveRetries 解析查询的重试次数
	ResolveRetries int `json:"resolve_retries"`

	// ResolveInterval 首次解析重试间隔，之后每次翻倍
	ResolveInterval Duration `json:"resolve_interval"`

	// RefreshFraction 缓存 PTR 到达 TTL 的该比例时重新查询
	RefreshFraction float64 `json:"refresh_fraction"`
}

// DefaultBrowseConfig 返回默认浏览配置
func DefaultBrowseConfig() BrowseConfig {
	return BrowseConfig{
		QueryInterval:    Duration(time.Second),
		QueryIntervalMax: Duration(time.Hour),
		ResolveRetries:   3,
		ResolveInterval:  Duration(time.Second),
		RefreshFraction:  0.8,
	}
}

// Validate 验证浏览配置
func (c BrowseConfig) Validate() error {
	if c.QueryInterval <= 0 || c.QueryIntervalMax < c.QueryInterval {
		return fmt.Errorf("%w: query_interval must be positive and not above query_interval_max", ErrInvalidConfig)
	}
	if c.ResolveRetries < 0 {
		return fmt.Errorf("%w: resolve_retries must not be negative", ErrInvalidConfig)
	}
	if c.ResolveInterval <= 0 {
		return fmt.Errorf("%w: resolve_interval must be positive", ErrInvalidConfig)
	}
	if c.RefreshFraction <= 0 || c.RefreshFraction >= 1 {
		return fmt.Errorf("%w: refresh_fraction must be in (0, 1)", ErrInvalidConfig)
	}
	return nil
}
