package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保持默认值。
//
// 示例 JSON:
//
//	{
//	  "domain": "local",
//	  "publish": {"host_name": "printer1", "probe_interval": "250ms"},
//	  "transport": {"enable_ipv6": false}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return FromJSON(data)
}

// ToJSON 将配置序列化为带缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// 环境变量名
const (
	EnvDomain      = "ZEROCONF_DOMAIN"
	EnvHostName    = "ZEROCONF_HOST_NAME"
	EnvInterfaces  = "ZEROCONF_INTERFACES"
	EnvDisableIPv4 = "ZEROCONF_DISABLE_IPV4"
	EnvDisableIPv6 = "ZEROCONF_DISABLE_IPV6"
)

// ApplyEnv 用环境变量覆盖配置
//
// getenv 通常为 os.Getenv。
func ApplyEnv(c *Config, getenv func(string) string) {
	if v := getenv(EnvDomain); v != "" {
		c.Domain = strings.TrimSuffix(v, ".")
	}
	if v := getenv(EnvHostName); v != "" {
		c.Publish.HostName = v
	}
	if v := getenv(EnvInterfaces); v != "" {
		c.Transport.Interfaces = nil
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.Transport.Interfaces = append(c.Transport.Interfaces, name)
			}
		}
	}
	if isTrue(getenv(EnvDisableIPv4)) {
		c.Transport.EnableIPv4 = false
	}
	if isTrue(getenv(EnvDisableIPv6)) {
		c.Transport.EnableIPv6 = false
	}
}

func isTrue(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
