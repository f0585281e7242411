package portscan

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultPorts 未指定 -p 时扫描的端口
const DefaultPorts = "1-1024"

const (
	minPort = 1
	maxPort = 65535
)

var (
	ErrMalformedToken = errors.New("端口格式错误")
	ErrPortOutOfRange = errors.New("端口超出范围 1-65535")
	ErrInvertedRange  = errors.New("范围起始端口大于结束端口")
	ErrEmptyPortSet   = errors.New("端口集合为空")
)

// ResolvePorts 解析端口描述, 返回去重后升序排列的端口
// 支持: "22" / "22,80,443" / "1-1024" / "22,80,8000-8100"
func ResolvePorts(spec string) ([]uint16, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, ErrEmptyPortSet
	}

	seen := make(map[int]struct{})
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("%w: 空的端口项", ErrMalformedToken)
		}

		start, end, err := parseToken(token)
		if err != nil {
			return nil, err
		}
		for p := start; p <= end; p++ {
			seen[p] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, ErrEmptyPortSet
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)

	out := make([]uint16, len(ports))
	for i, p := range ports {
		out[i] = uint16(p)
	}
	return out, nil
}

// parseToken 解析单个端口或 a-b 范围, 单个端口返回 start == end
func parseToken(token string) (int, int, error) {
	lo, hi, isRange := strings.Cut(token, "-")
	if !isRange {
		p, err := parsePort(token)
		if err != nil {
			return 0, 0, err
		}
		return p, p, nil
	}

	start, err := parsePort(lo)
	if err != nil {
		return 0, 0, fmt.Errorf("%w (范围 %q)", err, token)
	}
	end, err := parsePort(hi)
	if err != nil {
		return 0, 0, fmt.Errorf("%w (范围 %q)", err, token)
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvertedRange, token)
	}
	return start, end, nil
}

func parsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.Atoi(s)
	if err != nil {
		// 纯数字但溢出 int 的情况同样视为越界
		if ne, ok := err.(*strconv.NumError); ok && errors.Is(ne.Err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %s", ErrPortOutOfRange, s)
		}
		return 0, fmt.Errorf("%w: %q", ErrMalformedToken, s)
	}
	if v < minPort || v > maxPort {
		return 0, fmt.Errorf("%w: %d", ErrPortOutOfRange, v)
	}
	return v, nil
}
