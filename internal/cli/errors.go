package cli

import (
	"errors"

	"PortScanGo/internal/config"
	"PortScanGo/internal/portscan"
	"PortScanGo/internal/target"
)

// 退出码
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitUnresolved  = 3
	ExitInterrupted = 130
)

// ErrInterrupted 扫描被信号中断
var ErrInterrupted = errors.New("扫描被中断")

// usageError 命令行用法错误 (未知参数 / 缺少目标)
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

var configErrors = []error{
	config.ErrInvalidWorkers,
	config.ErrInvalidTimeout,
	config.ErrInvalidFormat,
	config.ErrInvalidValue,
	config.ErrLoad,
	portscan.ErrMalformedToken,
	portscan.ErrPortOutOfRange,
	portscan.ErrInvertedRange,
	portscan.ErrEmptyPortSet,
	portscan.ErrNoWorkers,
	portscan.ErrBadTimeout,
	portscan.ErrNoTarget,
}

// ExitCode 把错误映射为进程退出码
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ue *usageError
	if errors.As(err, &ue) {
		return ExitConfig
	}
	if errors.Is(err, ErrInterrupted) {
		return ExitInterrupted
	}
	if errors.Is(err, target.ErrUnresolvable) {
		return ExitUnresolved
	}
	for _, ce := range configErrors {
		if errors.Is(err, ce) {
			return ExitConfig
		}
	}
	return ExitFailure
}
