// Package config 负责加载扫描配置
//
// 优先级 (从低到高):
//  1. 默认值
//  2. YAML 配置文件 (-c/--config)
//  3. 环境变量 PORTSCAN_SCAN_WORKERS -> scan.workers
//  4. 命令行参数 (只有显式设置的参数会覆盖)
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"

	"PortScanGo/internal/portscan"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "PORTSCAN_"

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// 命令行参数名 -> 配置键
var flagKeys = map[string]string{
	"ports":         "scan.ports",
	"timeout":       "scan.timeout",
	"read-timeout":  "scan.read_timeout",
	"workers":       "scan.workers",
	"show-closed":   "report.show_closed",
	"show-filtered": "report.show_filtered",
	"format":        "report.format",
	"output":        "report.output",
	"log-level":     "log.level",
}

// 取反的开关参数
var negatedFlagKeys = map[string]string{
	"no-banner": "scan.banner",
	"no-color":  "log.color",
}

var (
	ErrInvalidWorkers = errors.New("workers 必须 >= 1")
	ErrInvalidTimeout = errors.New("timeout 必须 > 0")
	ErrInvalidFormat  = errors.New("不支持的输出格式")
	ErrInvalidValue   = errors.New("配置值类型错误")
	ErrLoad           = errors.New("加载配置失败")
)

// Config 一次运行的完整配置
type Config struct {
	Scan   ScanConfig
	Report ReportConfig
	Log    LogConfig
}

type ScanConfig struct {
	Ports string
	// Timeout 连接超时 (秒)
	Timeout float64
	// ReadTimeout banner 读取超时 (秒), 0 表示由 Timeout 推导
	ReadTimeout float64
	Workers     int
	Banner      bool
}

type ReportConfig struct {
	ShowClosed   bool
	ShowFiltered bool
	Format       string
	Output       string
}

type LogConfig struct {
	Level string
	Color bool
}

// Default 默认配置
func Default() Config {
	return Config{
		Scan: ScanConfig{
			Ports:   portscan.DefaultPorts,
			Timeout: 1.0,
			Workers: 100,
			Banner:  true,
		},
		Report: ReportConfig{
			Format: FormatText,
		},
		Log: LogConfig{
			Level: "warn",
			Color: true,
		},
	}
}

func defaultMap() map[string]any {
	def := Default()
	return map[string]any{
		"scan.ports":           def.Scan.Ports,
		"scan.timeout":         def.Scan.Timeout,
		"scan.read_timeout":    def.Scan.ReadTimeout,
		"scan.workers":         def.Scan.Workers,
		"scan.banner":          def.Scan.Banner,
		"report.show_closed":   def.Report.ShowClosed,
		"report.show_filtered": def.Report.ShowFiltered,
		"report.format":        def.Report.Format,
		"report.output":        def.Report.Output,
		"log.level":            def.Log.Level,
		"log.color":            def.Log.Color,
	}
}

// Load 按优先级合并配置; configFile 为空时跳过文件, flags 为 nil 时跳过命令行
func Load(configFile string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultMap(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("%w: 默认值: %v", ErrLoad, err)
	}
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrLoad, configFile, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("%w: 环境变量: %v", ErrLoad, err)
	}
	if flags != nil {
		// 未显式设置的参数不覆盖文件和环境变量中的值
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagValue(flags)), nil); err != nil {
			return Config{}, fmt.Errorf("%w: 命令行参数: %v", ErrLoad, err)
		}
	}

	return fromKoanf(k)
}

// envKey PORTSCAN_SCAN_READ_TIMEOUT -> scan.read_timeout
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + rest
}

// flagValue 把命令行参数名映射到配置键, 不认识的参数返回空键被忽略
func flagValue(fs *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if key, ok := flagKeys[f.Name]; ok {
			return key, posflag.FlagVal(fs, f)
		}
		if key, ok := negatedFlagKeys[f.Name]; ok {
			return key, !cast.ToBool(posflag.FlagVal(fs, f))
		}
		return "", nil
	}
}

// fromKoanf 环境变量和文件里的值可能是字符串, 统一用 cast 转换
func fromKoanf(k *koanf.Koanf) (Config, error) {
	var (
		cfg  Config
		errs []error
	)
	str := func(key string) string {
		return strings.TrimSpace(cast.ToString(k.Get(key)))
	}
	float := func(key string) float64 {
		v, err := cast.ToFloat64E(k.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err))
		}
		return v
	}
	integer := func(key string) int {
		v, err := cast.ToIntE(k.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err))
		}
		return v
	}
	boolean := func(key string) bool {
		v, err := cast.ToBoolE(k.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err))
		}
		return v
	}

	cfg.Scan = ScanConfig{
		Ports:       str("scan.ports"),
		Timeout:     float("scan.timeout"),
		ReadTimeout: float("scan.read_timeout"),
		Workers:     integer("scan.workers"),
		Banner:      boolean("scan.banner"),
	}
	cfg.Report = ReportConfig{
		ShowClosed:   boolean("report.show_closed"),
		ShowFiltered: boolean("report.show_filtered"),
		Format:       strings.ToLower(str("report.format")),
		Output:       str("report.output"),
	}
	cfg.Log = LogConfig{
		Level: strings.ToLower(str("log.level")),
		Color: boolean("log.color"),
	}
	return cfg, errors.Join(errs...)
}

// Validate 在扫描开始前检查配置, 并解析端口集合
func (c Config) Validate() ([]uint16, error) {
	if c.Scan.Workers < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Scan.Workers)
	}
	if c.Scan.Timeout <= 0 {
		return nil, fmt.Errorf("%w: %g", ErrInvalidTimeout, c.Scan.Timeout)
	}
	if c.Scan.ReadTimeout < 0 {
		return nil, fmt.Errorf("%w: read_timeout %g", ErrInvalidTimeout, c.Scan.ReadTimeout)
	}
	switch c.Report.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, c.Report.Format)
	}
	return portscan.ResolvePorts(c.Scan.Ports)
}

// ConnectTimeout 连接超时
func (c Config) ConnectTimeout() time.Duration {
	return seconds(c.Scan.Timeout)
}

// BannerTimeout banner 读取超时: 未显式配置时取连接超时的一半, 上限 500ms
// 关闭 banner 时返回 0
func (c Config) BannerTimeout() time.Duration {
	if !c.Scan.Banner {
		return 0
	}
	if c.Scan.ReadTimeout > 0 {
		return seconds(c.Scan.ReadTimeout)
	}
	d := c.ConnectTimeout() / 2
	if d > 500*time.Millisecond {
		d = 500 * time.Millisecond
	}
	return d
}

// ScanOptions 转换为扫描引擎参数
func (c Config) ScanOptions() portscan.Options {
	return portscan.Options{
		Workers:        c.Scan.Workers,
		ConnectTimeout: c.ConnectTimeout(),
		ReadTimeout:    c.BannerTimeout(),
		Identify:       true,
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
