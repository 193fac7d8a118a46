package transport

import (
	"net"
	"net/netip"
	"slices"
)

// selectInterfaces 选择 up 且支持多播的接口
//
// names 非空时只保留列出的接口（此时允许回环接口）；否则排除回环接口。
func selectInterfaces(all []net.Interface, names []string) []net.Interface {
	var out []net.Interface
	for _, ifi := range all {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		if len(names) > 0 {
			if !slices.Contains(names, ifi.Name) {
				continue
			}
		} else if ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		out = append(out, ifi)
	}
	return out
}

// unicastAddrs 从接口地址中取出启用的地址族的单播地址
func unicastAddrs(addrs []net.Addr, v4, v6 bool) []netip.Addr {
	var out []netip.Addr
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if addr.IsMulticast() || addr.IsUnspecified() {
			continue
		}
		if (addr.Is4() && v4) || (addr.Is6() && v6) {
			out = append(out, addr)
		}
	}
	return out
}
