package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"PortScanGo/internal/portscan"
)

// document 导出格式; 时长统一为毫秒, 便于其他工具读取
type document struct {
	ID         string    `json:"id" yaml:"id"`
	Target     string    `json:"target" yaml:"target"`
	Address    string    `json:"address" yaml:"address"`
	Started    time.Time `json:"started" yaml:"started"`
	DurationMS int64     `json:"duration_ms" yaml:"duration_ms"`
	Total      int       `json:"total" yaml:"total"`
	Open       int       `json:"open" yaml:"open"`
	Closed     int       `json:"closed" yaml:"closed"`
	Filtered   int       `json:"filtered" yaml:"filtered"`
	Ports      []entry   `json:"ports" yaml:"ports"`
}

type entry struct {
	Port      uint16         `json:"port" yaml:"port"`
	State     portscan.State `json:"state" yaml:"state"`
	Service   string         `json:"service,omitempty" yaml:"service,omitempty"`
	Banner    string         `json:"banner,omitempty" yaml:"banner,omitempty"`
	LatencyMS float64        `json:"latency_ms" yaml:"latency_ms"`
}

func newDocument(sum portscan.Summary, mode Mode) document {
	doc := document{
		ID:         sum.ID,
		Target:     sum.Target,
		Address:    sum.Address,
		Started:    sum.Started,
		DurationMS: sum.Duration.Milliseconds(),
		Total:      sum.Total,
		Open:       sum.Open,
		Closed:     sum.Closed,
		Filtered:   sum.Filtered,
		Ports:      []entry{},
	}
	for _, r := range sum.Visible(mode.ShowClosed, mode.ShowFiltered) {
		doc.Ports = append(doc.Ports, entry{
			Port:      r.Port,
			State:     r.State,
			Service:   r.Service,
			Banner:    r.Banner,
			LatencyMS: float64(r.Latency.Microseconds()) / 1000,
		})
	}
	return doc
}

// Encode 按格式 (json / yaml) 输出汇总
func Encode(w io.Writer, sum portscan.Summary, mode Mode, format string) error {
	doc := newDocument(sum, mode)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("不支持的输出格式: %q", format)
}

// Text 纯文本结果 (无颜色), 用于写入文件
func Text(sum portscan.Summary, mode Mode) []byte {
	var buf bytes.Buffer
	c := NewConsole(&buf, false)
	c.Table(sum, mode)
	return buf.Bytes()
}
