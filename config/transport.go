package config

import "fmt"

// DefaultMaxPacketSize IPv6 以太网 UDP 载荷上限（1500 - 40 - 8）
const DefaultMaxPacketSize = 1452

// TransportConfig 多播传输配置
type TransportConfig struct {
	// EnableIPv4 加入 224.0.0.251
	EnableIPv4 bool `json:"enable_ipv4"`

	// EnableIPv6 加入 ff02::fb
	EnableIPv6 bool `json:"enable_ipv6"`

	// Interfaces 限定使用的接口名，为空时使用所有支持多播且已启用的接口
	Interfaces []string `json:"interfaces,omitempty"`

	// MaxPacketSize 单个报文最大字节数
	MaxPacketSize int `json:"max_packet_size"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		EnableIPv4:    true,
		EnableIPv6:    true,
		MaxPacketSize: DefaultMaxPacketSize,
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	if !c.EnableIPv4 && !c.EnableIPv6 {
		return fmt.Errorf("%w: at least one of ipv4/ipv6 must be enabled", ErrInvalidConfig)
	}
	// RFC 6762 §17：报文不得超过 9000 字节
	if c.MaxPacketSize < 512 || c.MaxPacketSize > 9000 {
		return fmt.Errorf("%w: max_packet_size must be in [512, 9000]", ErrInvalidConfig)
	}
	return nil
}
