package target

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var ErrUnresolvable = errors.New("无法解析目标主机")

// lookupIP 测试时可替换
var lookupIP = net.DefaultResolver.LookupIP

// Resolve 将主机名或 IP 解析为一个可拨号的地址, 优先 IPv4
// 扫描开始前只调用一次
func Resolve(ctx context.Context, host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("%w: 目标为空", ErrUnresolvable)
	}
	// [::1] 形式的 IPv6 字面量
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")

	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	ips, err := lookupIP(ctx, "ip", host)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrUnresolvable, host, err)
	}
	if len(ips) == 0 {
		return "", fmt.Errorf("%w %q: 没有 A/AAAA 记录", ErrUnresolvable, host)
	}
	return pickPreferred(ips).String(), nil
}

// pickPreferred 有 IPv4 时返回第一个 IPv4, 否则返回第一个地址
func pickPreferred(ips []net.IP) net.IP {
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4
		}
	}
	return ips[0]
}
