package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"PortScanGo/internal/config"
	"PortScanGo/internal/logging"
	"PortScanGo/internal/portscan"
	"PortScanGo/internal/report"
	"PortScanGo/internal/target"
)

const cliExecutable = "portscanGo"

// NewCommand 构建根命令; connector 为 nil 时使用 TCP 全连接探测
func NewCommand(connector portscan.Connector) *cobra.Command {
	if connector == nil {
		connector = portscan.NewTCPConnector()
	}

	var (
		configFile     string
		verbosityCount int
		verbose        bool
		noProgress     bool
	)

	cmd := &cobra.Command{
		Use:   cliExecutable + " <target>",
		Short: "扫描目标主机的开放 TCP 端口",
		Example: `  portscanGo 192.168.1.1 -p 80
  portscanGo example.com -p 1-1000
  portscanGo localhost -p 22,80,443,8080
  portscanGo 192.168.1.1 -p 1-65535 -t 0.5 -w 200`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return &usageError{err: err}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
			logging.Setup(stderr, cfg.Log.Level, verbosityCount, verbose, cfg.Log.Color && isTerminal(stderr))

			r := &run{
				cfg:          cfg,
				connector:    connector,
				stdout:       stdout,
				stderr:       stderr,
				console:      report.NewConsole(stdout, cfg.Log.Color && isTerminal(stdout)),
				showProgress: !noProgress && isTerminal(stderr),
			}
			return r.execute(cmd, args[0])
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	defaults := config.Default()
	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "配置文件路径 (YAML)")
	f.StringP("ports", "p", defaults.Scan.Ports, "端口: 单个 (80), 范围 (1-1000) 或逗号分隔 (22,80,443)")
	f.Float64P("timeout", "t", defaults.Scan.Timeout, "连接超时 (秒)")
	f.Float64("read-timeout", defaults.Scan.ReadTimeout, "banner 读取超时 (秒), 0 表示取连接超时的一半 (最多 0.5 秒)")
	f.IntP("workers", "w", defaults.Scan.Workers, "并发数")
	f.Bool("no-banner", false, "不读取 banner")
	f.Bool("show-closed", defaults.Report.ShowClosed, "结果中显示 closed 端口")
	f.Bool("show-filtered", defaults.Report.ShowFiltered, "结果中显示 filtered 端口")
	f.String("format", defaults.Report.Format, "输出格式: text, json, yaml")
	f.StringP("output", "o", defaults.Report.Output, "同时把结果写入文件")
	f.Bool("no-color", false, "禁用颜色")
	f.String("log-level", defaults.Log.Level, "日志级别: debug, info, warn, error")
	// 以下参数只影响本次运行, 不进入配置
	f.BoolVar(&noProgress, "no-progress", false, "不显示进度条")
	f.CountVarP(&verbosityCount, "verbosity", "v", "提高日志详细程度 (可重复)")
	f.BoolVar(&verbose, "verbose", false, "输出 debug 日志")

	return cmd
}

// run 一次扫描的执行上下文
type run struct {
	cfg          config.Config
	connector    portscan.Connector
	stdout       io.Writer
	stderr       io.Writer
	console      *report.Console
	showProgress bool
}

func (r *run) execute(cmd *cobra.Command, host string) error {
	ctx := cmd.Context()

	ports, err := r.cfg.Validate()
	if err != nil {
		return err
	}
	opts := r.cfg.ScanOptions()
	scanner, err := portscan.NewScanner(r.connector, opts)
	if err != nil {
		return err
	}
	address, err := target.Resolve(ctx, host)
	if err != nil {
		return err
	}

	text := r.cfg.Report.Format == config.FormatText
	if text {
		r.console.Banner(host, address, len(ports), opts.ConnectTimeout, opts.Workers)
	}

	bar := progressbar.NewOptions(len(ports),
		progressbar.OptionSetWriter(r.stderr),
		progressbar.OptionSetVisibility(r.showProgress),
		progressbar.OptionEnableColorCodes(r.cfg.Log.Color),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetDescription("[cyan][扫描中][reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	sum, err := scanner.Scan(ctx, address, ports, func(p portscan.Progress) {
		_ = bar.Add(1)
		if p.Result.State == portscan.StateOpen && text {
			if r.showProgress {
				_ = bar.Clear()
			}
			r.console.Found(address, p.Result)
		}
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}
	sum.Target = host

	interrupted := ctx.Err() != nil
	if interrupted && text {
		r.console.Interrupted()
	}

	mode := report.Mode{ShowClosed: r.cfg.Report.ShowClosed, ShowFiltered: r.cfg.Report.ShowFiltered}
	if err := r.write(sum, mode); err != nil {
		return err
	}
	if interrupted {
		return ErrInterrupted
	}
	return nil
}

// write 输出结果到终端, 配置了 output 时同时写文件
func (r *run) write(sum portscan.Summary, mode report.Mode) error {
	format := r.cfg.Report.Format
	if format == config.FormatText {
		r.console.Table(sum, mode)
	} else if err := report.Encode(r.stdout, sum, mode, format); err != nil {
		return fmt.Errorf("输出结果: %w", err)
	}

	if r.cfg.Report.Output == "" {
		return nil
	}
	var data []byte
	if format == config.FormatText {
		data = report.Text(sum, mode)
	} else {
		var buf bytes.Buffer
		if err := report.Encode(&buf, sum, mode, format); err != nil {
			return fmt.Errorf("输出结果: %w", err)
		}
		data = buf.Bytes()
	}
	if err := report.WriteAtomic(r.cfg.Report.Output, data); err != nil {
		return fmt.Errorf("写入结果文件: %w", err)
	}
	log.Info().Str("path", r.cfg.Report.Output).Msg("结果已写入文件")
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
