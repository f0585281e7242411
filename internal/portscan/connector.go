package portscan

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
)

// BannerBudget 读取 banner 的最大字节数
const BannerBudget = 1024

// Connector 对单个端口发起一次探测
// 实现不得返回错误: 任何故障都要归类为 Closed 或 Filtered
type Connector interface {
	Probe(ctx context.Context, host string, port uint16, connectTimeout, readTimeout time.Duration) PortResult
}

// ConnectorFunc 让普通函数实现 Connector
type ConnectorFunc func(ctx context.Context, host string, port uint16, connectTimeout, readTimeout time.Duration) PortResult

func (f ConnectorFunc) Probe(ctx context.Context, host string, port uint16, connectTimeout, readTimeout time.Duration) PortResult {
	return f(ctx, host, port, connectTimeout, readTimeout)
}

// TCPConnector TCP 全连接探测, 可选读取 banner
type TCPConnector struct{}

// NewTCPConnector 创建 TCP 全连接探测器
func NewTCPConnector() *TCPConnector {
	return &TCPConnector{}
}

// Probe 建立连接 -> 分类 -> (可选) 读取 banner -> 关闭连接
// readTimeout <= 0 时不读取 banner
func (c *TCPConnector) Probe(ctx context.Context, host string, port uint16, connectTimeout, readTimeout time.Duration) PortResult {
	address := net.JoinHostPort(host, strconv.Itoa(int(port)))

	d := net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: -1, // 扫描不需要保持连接
	}

	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", address)
	res := PortResult{Port: port, Latency: time.Since(start)}
	if err != nil {
		res.State = classifyDialErr(err)
		log.Debug().Str("addr", address).Stringer("state", res.State).Err(err).Msg("连接失败")
		return res
	}
	defer conn.Close()

	res.State = StateOpen
	if readTimeout > 0 {
		res.Banner = readBanner(conn, readTimeout)
	}
	log.Debug().Str("addr", address).Dur("latency", res.Latency).Bool("banner", res.Banner != "").Msg("端口开放")
	return res
}

// classifyDialErr RST 视为 Closed, 其余 (超时 / 不可达 / 本地资源不足等) 视为 Filtered
func classifyDialErr(err error) State {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return StateClosed
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return StateFiltered
	}
	// 个别平台只能从错误文本判断
	if strings.Contains(err.Error(), "connection refused") {
		return StateClosed
	}
	return StateFiltered
}

// readBanner 在 readTimeout 内读取服务主动发送的数据, 超时或空读返回 ""
func readBanner(conn net.Conn, readTimeout time.Duration) string {
	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return ""
	}
	buf := make([]byte, BannerBudget)
	n, _ := conn.Read(buf)
	if n <= 0 {
		return ""
	}
	return sanitizeBanner(buf[:n])
}

// sanitizeBanner 去掉首尾空白, 不可打印字符替换为 '.'
func sanitizeBanner(b []byte) string {
	s := strings.TrimSpace(strings.ToValidUTF8(string(b), "."))
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' || r == '\t' {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return '.'
		}
		return r
	}, s)
}
