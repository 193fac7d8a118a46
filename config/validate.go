package config

import "errors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("config: invalid")

	// ErrEmptyDomain 域为空
	ErrEmptyDomain = errors.New("config: empty domain")

	// ErrNilConfig 配置为 nil
	ErrNilConfig = errors.New("config: nil")
)

// ValidateAll 验证整个配置的有效性
//
// 这是 Config.Validate() 的别名，额外处理 nil。
func ValidateAll(c *Config) error {
	if c == nil {
		return ErrNilConfig
	}
	return c.Validate()
}
