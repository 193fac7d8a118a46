package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// 名称长度限制
const (
	// MaxInstanceLength 实例名最大字节数（单个 DNS label）
	MaxInstanceLength = 63

	// MaxServiceNameLength 服务名（不含下划线）最大字节数（RFC 6335 §5.1）
	MaxServiceNameLength = 15
)

// EscapeLabel 将原始 label 转为 miekg/dns 的表示形式
//
// 转义规则与 dns.Msg.Unpack 生成的名称一致，因此本地拼接的名称
// 可以直接与收到的名称比较。
func EscapeLabel(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case isLabelSpecial(c):
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < ' ' || c > '~':
			fmt.Fprintf(&b, "\\%03d", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isLabelSpecial(c byte) bool {
	switch c {
	case '.', ' ', '\'', '@', ';', '(', ')', '"', '\\':
		return true
	}
	return false
}

// UnescapeLabel 还原 EscapeLabel 的结果
func UnescapeLabel(label string) string {
	if !strings.Contains(label, `\`) {
		return label
	}
	var b strings.Builder
	b.Grow(len(label))
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c != '\\' || i+1 == len(label) {
			b.WriteByte(c)
			continue
		}
		i++
		if i+2 < len(label) && isDigit(label[i]) && isDigit(label[i+1]) && isDigit(label[i+2]) {
			if n, err := strconv.Atoi(label[i : i+3]); err == nil && n <= 255 {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		b.WriteByte(label[i])
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// TrimDot 去掉结尾的点
func TrimDot(name string) string {
	return strings.TrimSuffix(name, ".")
}

// ServiceFQDN 服务类型的完整域名，如 "_http._tcp.local."
func ServiceFQDN(service, domain string) string {
	return dns.Fqdn(TrimDot(service) + "." + TrimDot(domain))
}

// InstanceFQDN 服务实例的完整域名，如 "My\ Printer._http._tcp.local."
func InstanceFQDN(instance, service, domain string) string {
	return EscapeLabel(instance) + "." + ServiceFQDN(service, domain)
}

// HostFQDN 主机的完整域名
//
// host 不含点时追加 domain，否则视为已限定的名称。
func HostFQDN(host, domain string) string {
	host = TrimDot(host)
	if strings.Contains(host, ".") {
		return dns.Fqdn(host)
	}
	return dns.Fqdn(host + "." + TrimDot(domain))
}

// EnumerationFQDN DNS-SD 服务类型枚举名（RFC 6763 §9）
func EnumerationFQDN(domain string) string {
	return ServiceFQDN("_services._dns-sd._udp", domain)
}

// SameName 不区分大小写比较两个域名
func SameName(a, b string) bool {
	return dns.CanonicalName(a) == dns.CanonicalName(b)
}

// SplitInstance 拆分实例完整域名
//
// 返回未转义的实例名、服务类型（如 "_http._tcp"）和不带结尾点的域。
func SplitInstance(fqdn string) (instance, service, domain string, err error) {
	labels := dns.SplitDomainName(fqdn)
	if len(labels) < 4 {
		return "", "", "", fmt.Errorf("%w: %q is not a service instance name", ErrInvalidName, fqdn)
	}
	service = labels[1] + "." + labels[2]
	if err := ValidateServiceType(service); err != nil {
		return "", "", "", err
	}
	return UnescapeLabel(labels[0]), service, strings.Join(labels[3:], "."), nil
}

// ValidateServiceType 检查服务类型格式 "_name._tcp" 或 "_name._udp"
func ValidateServiceType(service string) error {
	name, proto, ok := strings.Cut(TrimDot(service), ".")
	if !ok {
		return fmt.Errorf("%w: service type %q must be _name._tcp or _name._udp", ErrInvalidName, service)
	}
	proto = strings.ToLower(proto)
	if proto != "_tcp" && proto != "_udp" {
		return fmt.Errorf("%w: service type %q must end in _tcp or _udp", ErrInvalidName, service)
	}
	if len(name) < 2 || name[0] != '_' || len(name)-1 > MaxServiceNameLength {
		return fmt.Errorf("%w: service name %q must be '_' followed by 1-%d characters", ErrInvalidName, name, MaxServiceNameLength)
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !(c == '-' || isDigit(c) || (c|0x20 >= 'a' && c|0x20 <= 'z')) {
			return fmt.Errorf("%w: service name %q contains %q", ErrInvalidName, name, c)
		}
	}
	return nil
}

// ValidateInstanceName 检查实例名长度
func ValidateInstanceName(instance string) error {
	if instance == "" || len(instance) > MaxInstanceLength {
		return fmt.Errorf("%w: instance name must be 1-%d bytes", ErrInvalidName, MaxInstanceLength)
	}
	return nil
}

// ValidateDomain 检查域名
func ValidateDomain(domain string) error {
	if _, ok := dns.IsDomainName(dns.Fqdn(TrimDot(domain))); !ok || TrimDot(domain) == "" {
		return fmt.Errorf("%w: domain %q", ErrInvalidName, domain)
	}
	return nil
}
