// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//   - 支持 ZEROCONF_ 前缀的环境变量覆盖
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Transport.EnableIPv6 = false
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
//
//	// 从文件加载
//	cfg, err := config.LoadFile("zeroconf.json")
package config

// DefaultDomain 默认 mDNS 域
const DefaultDomain = "local"

// Config 是 go-zeroconf 的完整配置结构
//
// 配置按照功能模块组织：
//   - Publish: 服务发布（TTL、探测、通告）
//   - Browse: 服务浏览（查询退避、解析重试）
//   - Cache: 记录缓存
//   - Transport: 多播传输
type Config struct {
	// Domain 默认域（StartBrowser 和未指定域的发布使用）
	Domain string `json:"domain"`

	// Publish 服务发布配置
	Publish PublishConfig `json:"publish"`

	// Browse 服务浏览配置
	Browse BrowseConfig `json:"browse"`

	// Cache 记录缓存配置
	Cache CacheConfig `json:"cache"`

	// Transport 传输层配置
	Transport TransportConfig `json:"transport"`
}

// NewConfig 创建默认配置
//
// 返回的配置使用所有组件的默认值，时间参数取自 RFC 6762 的推荐值。
func NewConfig() *Config {
	return &Config{
		Domain:    DefaultDomain,
		Publish:   DefaultPublishConfig(),
		Browse:    DefaultBrowseConfig(),
		Cache:     DefaultCacheConfig(),
		Transport: DefaultTransportConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置是否有效，如果发现无效配置则返回错误。
func (c *Config) Validate() error {
	if c.Domain == "" {
		return ErrEmptyDomain
	}
	if err := c.Publish.Validate(); err != nil {
		return err
	}
	if err := c.Browse.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return c.Transport.Validate()
}

// Clone 深拷贝配置
func (c *Config) Clone() *Config {
	out := *c
	out.Transport.Interfaces = append([]string(nil), c.Transport.Interfaces...)
	return &out
}
