package portscan

import (
	"fmt"
	"time"
)

// State 端口探测结果状态
type State int

const (
	StateClosed   State = iota // 目标主动拒绝 (RST)
	StateFiltered              // 超时或无响应, 疑似被防火墙丢弃
	StateOpen                  // 完成三次握手
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFiltered:
		return "filtered"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText 让 JSON/YAML 输出使用可读的状态名
func (s State) MarshalText() ([]byte, error) {
	switch s {
	case StateOpen, StateClosed, StateFiltered:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("未知端口状态: %d", int(s))
}

// UnmarshalText 解析 MarshalText 的输出
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "open":
		*s = StateOpen
	case "closed":
		*s = StateClosed
	case "filtered":
		*s = StateFiltered
	default:
		return fmt.Errorf("未知端口状态: %q", string(b))
	}
	return nil
}

// ScanTask 单个扫描任务, 分发给工作协程后只被消费一次
type ScanTask struct {
	Host string
	Port uint16
}

// PortResult 扫描结果
// Service 和 Banner 为空表示未识别 / 未读取到
type PortResult struct {
	Port    uint16        `json:"port" yaml:"port"`
	State   State         `json:"state" yaml:"state"`
	Service string        `json:"service,omitempty" yaml:"service,omitempty"`
	Banner  string        `json:"banner,omitempty" yaml:"banner,omitempty"`
	Latency time.Duration `json:"latency" yaml:"latency"`
}

// Progress 每完成一个任务推送一次
type Progress struct {
	Completed int
	Total     int
	Result    PortResult
}

// ProgressFunc 进度回调, 由汇总协程串行调用
type ProgressFunc func(Progress)

// Summary 一次扫描的汇总, Scan 返回后不再修改
type Summary struct {
	ID       string        `json:"id" yaml:"id"`
	Target   string        `json:"target" yaml:"target"`
	Address  string        `json:"address" yaml:"address"`
	Total   int           `json:"total" yaml:"total"`
	Open     int           `json:"open" yaml:"open"`
	Closed   int           `json:"closed" yaml:"closed"`
	Filtered int           `json:"filtered" yaml:"filtered"`
	Started  time.Time     `json:"started" yaml:"started"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	// Results 每个端口一条, 按端口升序
	Results []PortResult `json:"results" yaml:"results"`
}

// Visible 按报告模式筛选结果, open 端口总是保留
func (s Summary) Visible(showClosed, showFiltered bool) []PortResult {
	out := make([]PortResult, 0, s.Open)
	for _, r := range s.Results {
		switch r.State {
		case StateOpen:
			out = append(out, r)
		case StateClosed:
			if showClosed {
				out = append(out, r)
			}
		case StateFiltered:
			if showFiltered {
				out = append(out, r)
			}
		}
	}
	return out
}

// OpenPorts 返回所有开放端口号
func (s Summary) OpenPorts() []uint16 {
	ports := make([]uint16, 0, s.Open)
	for _, r := range s.Results {
		if r.State == StateOpen {
			ports = append(ports, r.Port)
		}
	}
	return ports
}
