package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"PortScanGo/internal/cli"
)

func main() {
	// Ctrl+C 取消扫描, 未完成的端口记为 filtered
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewCommand(nil)
	err := cmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, cli.ErrInterrupted) {
		color.New(color.FgRed).Fprintf(os.Stderr, "[-]%v\n", err)
	}
	stop()
	os.Exit(cli.ExitCode(err))
}
