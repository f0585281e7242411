package portscan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustListen(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("当前环境不允许监听 TCP 端口")
		}
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func listenerPort(l net.Listener) uint16 {
	return uint16(l.Addr().(*net.TCPAddr).Port)
}

// serve 接受连接并交给 handle 处理, 直到 listener 关闭
func serve(l net.Listener, handle func(net.Conn)) {
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()
}

func TestTCPConnector_OpenWithBanner(t *testing.T) {
	l := mustListen(t)
	serve(l, func(c net.Conn) {
		defer c.Close()
		_, _ = c.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
		time.Sleep(100 * time.Millisecond)
	})

	res := NewTCPConnector().Probe(context.Background(), "127.0.0.1", listenerPort(l), time.Second, time.Second)
	require.Equal(t, StateOpen, res.State)
	require.Equal(t, "SSH-2.0-OpenSSH_9.6", res.Banner)
	require.Equal(t, listenerPort(l), res.Port)
	require.Equal(t, "ssh", Identify(res.Port, res.Banner))
}

func TestTCPConnector_SilentServiceHitsReadTimeout(t *testing.T) {
	l := mustListen(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	serve(l, func(c net.Conn) {
		defer c.Close()
		<-release
	})

	start := time.Now()
	res := NewTCPConnector().Probe(context.Background(), "127.0.0.1", listenerPort(l), time.Second, 150*time.Millisecond)
	elapsed := time.Since(start)

	require.Equal(t, StateOpen, res.State)
	require.Empty(t, res.Banner)
	require.Less(t, elapsed, time.Second+150*time.Millisecond)
}

func TestTCPConnector_NoBannerRead(t *testing.T) {
	l := mustListen(t)
	serve(l, func(c net.Conn) {
		defer c.Close()
		_, _ = c.Write([]byte("220 ready\r\n"))
	})

	res := NewTCPConnector().Probe(context.Background(), "127.0.0.1", listenerPort(l), time.Second, 0)
	require.Equal(t, StateOpen, res.State)
	require.Empty(t, res.Banner)
}

func TestTCPConnector_Closed(t *testing.T) {
	l := mustListen(t)
	port := listenerPort(l)
	require.NoError(t, l.Close())
	time.Sleep(50 * time.Millisecond)

	res := NewTCPConnector().Probe(context.Background(), "127.0.0.1", port, 500*time.Millisecond, 0)
	// 个别系统对本地关闭端口不回 RST
	require.Contains(t, []State{StateClosed, StateFiltered}, res.State)
	require.Empty(t, res.Banner)
}

func TestTCPConnector_CanceledContextIsFiltered(t *testing.T) {
	l := mustListen(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewTCPConnector().Probe(ctx, "127.0.0.1", listenerPort(l), time.Second, time.Second)
	require.Equal(t, StateFiltered, res.State)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyDialErr(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}}
	cases := []struct {
		name string
		err  error
		want State
	}{
		{"refused", refused, StateClosed},
		{"wrapped refused", fmt.Errorf("probe: %w", refused), StateClosed},
		{"refused text", errors.New("dial tcp 10.0.0.1:80: connect: connection refused"), StateClosed},
		{"timeout", &net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}}, StateFiltered},
		{"unreachable", &net.OpError{Op: "dial", Net: "tcp", Err: &os.SyscallError{Syscall: "connect", Err: syscall.EHOSTUNREACH}}, StateFiltered},
		{"fd exhaustion", &net.OpError{Op: "dial", Net: "tcp", Err: &os.SyscallError{Syscall: "socket", Err: syscall.EMFILE}}, StateFiltered},
		{"canceled", context.Canceled, StateFiltered},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, classifyDialErr(tc.err))
		})
	}
}

func TestSanitizeBanner(t *testing.T) {
	require.Equal(t, "220 mail ESMTP", sanitizeBanner([]byte("220 mail ESMTP\r\n")))
	require.Equal(t, "a.b", sanitizeBanner([]byte{'a', 0x00, 'b'}))
	require.Equal(t, "HTTP/1.0 200 OK  Server: x", sanitizeBanner([]byte("HTTP/1.0 200 OK\r\nServer: x\r\n\r\n")))
	require.Empty(t, sanitizeBanner([]byte("  \r\n")))
}
