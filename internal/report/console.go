package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"PortScanGo/internal/portscan"
)

// maxBannerWidth 表格中 banner 列的最大宽度
const maxBannerWidth = 48

// Mode 报告模式: open 端口总是显示
type Mode struct {
	ShowClosed   bool
	ShowFiltered bool
}

// Console 终端输出
type Console struct {
	out     io.Writer
	noColor bool

	cyan   *color.Color
	green  *color.Color
	yellow *color.Color
	red    *color.Color
}

// NewConsole 创建终端输出, useColor=false 时输出纯文本
func NewConsole(out io.Writer, useColor bool) *Console {
	c := &Console{
		out:     out,
		noColor: !useColor,
		cyan:    color.New(color.FgCyan),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow),
		red:     color.New(color.FgRed),
	}
	for _, col := range []*color.Color{c.cyan, c.green, c.yellow, c.red} {
		if useColor {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// Banner 扫描开始前的标题
func (c *Console) Banner(target, address string, ports int, timeout time.Duration, workers int) {
	c.Panel("Port Scanner", "扫描目标主机的开放端口")
	fmt.Fprintln(c.out)
	if target != address {
		c.cyan.Fprintf(c.out, "--- 目标: %s (%s) ---\n", target, address)
	} else {
		c.cyan.Fprintf(c.out, "--- 目标: %s ---\n", target)
	}
	c.cyan.Fprintf(c.out, "--- 端口: %d | 并发数: %d | 超时: %s ---\n", ports, workers, timeout)
}

// Found 扫描过程中发现开放端口时实时输出
func (c *Console) Found(address string, r portscan.PortResult) {
	line := fmt.Sprintf("[+]Port: %s:%d Open!", address, r.Port)
	if r.Service != "" {
		line += " (" + r.Service + ")"
	}
	c.green.Fprintln(c.out, line)
}

// Interrupted 扫描被用户中断
func (c *Console) Interrupted() {
	c.yellow.Fprintln(c.out, "[!]扫描被用户中断, 未完成的端口记为 filtered")
}

// Error 输出错误
func (c *Console) Error(err error) {
	c.red.Fprintf(c.out, "[-]%v\n", err)
}

// Table 输出结果表格和汇总
func (c *Console) Table(sum portscan.Summary, mode Mode) {
	rows := sum.Visible(mode.ShowClosed, mode.ShowFiltered)

	fmt.Fprintln(c.out)
	if sum.Open == 0 {
		c.yellow.Fprintln(c.out, "[-]指定范围内没有发现开放端口")
	} else {
		c.green.Fprintf(c.out, "[+]发现 %d 个开放端口\n", sum.Open)
	}
	if len(rows) > 0 {
		tw := tabwriter.NewWriter(c.out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "PORT\tSTATE\tSERVICE\tLATENCY\tBANNER")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d/tcp\t%s\t%s\t%s\t%s\n",
				r.Port, c.state(r.State), orDash(r.Service), r.Latency.Round(time.Microsecond*100), orDash(truncate(r.Banner, maxBannerWidth)))
		}
		_ = tw.Flush()
	}

	fmt.Fprintln(c.out)
	c.Panel("Scan Summary", fmt.Sprintf(
		"Total Ports Scanned: %d\nOpen Ports: %d\nClosed Ports: %d\nFiltered Ports: %d\nDuration: %.2f seconds",
		sum.Total, sum.Open, sum.Closed, sum.Filtered, sum.Duration.Seconds()))
}

// Panel 带圆角边框的文本框
func (c *Console) Panel(title, body string) {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)
	titleStyle := lipgloss.NewStyle().Bold(!c.noColor)
	if !c.noColor {
		style = style.BorderForeground(lipgloss.Color("6"))
		titleStyle = titleStyle.Foreground(lipgloss.Color("6"))
	}
	fmt.Fprintln(c.out, style.Render(titleStyle.Render(title)+"\n"+body))
}

func (c *Console) state(s portscan.State) string {
	switch s {
	case portscan.StateOpen:
		return c.green.Sprint(s)
	case portscan.StateFiltered:
		return c.yellow.Sprint(s)
	}
	return c.red.Sprint(s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
