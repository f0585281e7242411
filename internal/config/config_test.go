package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortScanGo/internal/portscan"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("ports", "p", portscan.DefaultPorts, "")
	fs.Float64P("timeout", "t", 1.0, "")
	fs.Float64("read-timeout", 0, "")
	fs.IntP("workers", "w", 100, "")
	fs.Bool("no-banner", false, "")
	fs.Bool("show-closed", false, "")
	fs.Bool("show-filtered", false, "")
	fs.String("format", FormatText, "")
	fs.StringP("output", "o", "", "")
	fs.Bool("no-color", false, "")
	fs.String("log-level", "warn", "")
	fs.StringP("config", "c", "", "")
	return fs
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", testFlags())
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	ports, err := cfg.Validate()
	require.NoError(t, err)
	require.Len(t, ports, 1024)
	require.Equal(t, time.Second, cfg.ConnectTimeout())
	require.Equal(t, 500*time.Millisecond, cfg.BannerTimeout())
}

func TestLoad_FileEnvFlagPrecedence(t *testing.T) {
	path := writeFile(t, `
scan:
  ports: "22,80"
  timeout: 2.5
  workers: 10
report:
  show_filtered: true
  format: yaml
`)
	t.Setenv("PORTSCAN_SCAN_WORKERS", "20")
	t.Setenv("PORTSCAN_SCAN_READ_TIMEOUT", "0.25")

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"-p", "443", "--no-color"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "443", cfg.Scan.Ports, "flag overrides file")
	assert.Equal(t, 2.5, cfg.Scan.Timeout, "file overrides default, unchanged flag keeps file value")
	assert.Equal(t, 20, cfg.Scan.Workers, "env overrides file")
	assert.Equal(t, 0.25, cfg.Scan.ReadTimeout)
	assert.True(t, cfg.Report.ShowFiltered)
	assert.Equal(t, FormatYAML, cfg.Report.Format)
	assert.False(t, cfg.Log.Color)
	assert.True(t, cfg.Scan.Banner)
	assert.Equal(t, 250*time.Millisecond, cfg.BannerTimeout())
}

func TestLoad_NegatedFlags(t *testing.T) {
	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--no-banner", "-w", "3", "-t", "0.2"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	require.False(t, cfg.Scan.Banner)
	require.Equal(t, time.Duration(0), cfg.BannerTimeout())

	opts := cfg.ScanOptions()
	require.Equal(t, 3, opts.Workers)
	require.Equal(t, 200*time.Millisecond, opts.ConnectTimeout)
	require.Zero(t, opts.ReadTimeout)
	require.True(t, opts.Identify)
}

func TestLoad_BadValues(t *testing.T) {
	t.Setenv("PORTSCAN_SCAN_WORKERS", "many")
	_, err := Load("", nil)
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.ErrorIs(t, err, ErrLoad)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero workers", func(c *Config) { c.Scan.Workers = 0 }, ErrInvalidWorkers},
		{"zero timeout", func(c *Config) { c.Scan.Timeout = 0 }, ErrInvalidTimeout},
		{"negative read timeout", func(c *Config) { c.Scan.ReadTimeout = -1 }, ErrInvalidTimeout},
		{"bad format", func(c *Config) { c.Report.Format = "xml" }, ErrInvalidFormat},
		{"bad ports", func(c *Config) { c.Scan.Ports = "5-2" }, portscan.ErrInvertedRange},
		{"empty ports", func(c *Config) { c.Scan.Ports = "" }, portscan.ErrEmptyPortSet},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := cfg.Validate()
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBannerTimeout_DerivedFromConnectTimeout(t *testing.T) {
	cfg := Default()
	cfg.Scan.Timeout = 0.4
	require.Equal(t, 200*time.Millisecond, cfg.BannerTimeout())

	cfg.Scan.Timeout = 5
	require.Equal(t, 500*time.Millisecond, cfg.BannerTimeout())
}

func TestEnvKey(t *testing.T) {
	require.Equal(t, "scan.workers", envKey("PORTSCAN_SCAN_WORKERS"))
	require.Equal(t, "scan.read_timeout", envKey("PORTSCAN_SCAN_READ_TIMEOUT"))
	require.Equal(t, "report.show_filtered", envKey("PORTSCAN_REPORT_SHOW_FILTERED"))
}
