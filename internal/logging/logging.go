package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup 初始化全局 logger, 输出到 w (一般是 stderr, 避免和扫描结果混在一起)
//
// 日志级别: --verbose 直接为 debug; 否则 -v 次数 0=>level(配置值, 默认 warn), 1=>info, 2+=>debug
func Setup(w io.Writer, level string, verbosity int, verbose, color bool) {
	lvl := ParseLevel(level)
	switch {
	case verbose || verbosity >= 2:
		lvl = zerolog.DebugLevel
	case verbosity == 1 && lvl > zerolog.InfoLevel:
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    !color,
		TimeFormat: time.TimeOnly,
	}).With().Timestamp().Logger()
}

// ParseLevel 无法识别时退回 warn
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.WarnLevel
	}
	return lvl
}
