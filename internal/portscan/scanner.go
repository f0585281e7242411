package portscan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoWorkers   = errors.New("并发数必须 >= 1")
	ErrNoTarget    = errors.New("未指定扫描目标")
	ErrNoConnector = errors.New("未指定探测器")
	ErrBadTimeout  = errors.New("连接超时必须 > 0")
)

// Options 扫描参数
type Options struct {
	Workers        int
	ConnectTimeout time.Duration
	// ReadTimeout <= 0 表示不读取 banner
	ReadTimeout time.Duration
	// Identify 是否为开放端口识别服务名
	Identify bool
}

// Validate 检查扫描参数, 在任何任务分发之前调用
func (o Options) Validate() error {
	if o.Workers < 1 {
		return fmt.Errorf("%w: %d", ErrNoWorkers, o.Workers)
	}
	if o.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrBadTimeout, o.ConnectTimeout)
	}
	return nil
}

// WorstCase 扫描 n 个端口的最长耗时: ceil(n/workers) * (connect + read)
func (o Options) WorstCase(n int) time.Duration {
	if n <= 0 || o.Workers < 1 {
		return 0
	}
	rounds := (n + o.Workers - 1) / o.Workers
	per := o.ConnectTimeout
	if o.ReadTimeout > 0 {
		per += o.ReadTimeout
	}
	return time.Duration(rounds) * per
}

// Scanner 扫描引擎: 固定大小的协程池 + 单点汇总
type Scanner struct {
	connector Connector
	opts      Options
}

// NewScanner 创建一个新的扫描器实例
func NewScanner(connector Connector, opts Options) (*Scanner, error) {
	if connector == nil {
		return nil, ErrNoConnector
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{connector: connector, opts: opts}, nil
}

// Scan 扫描 host 上的所有端口, 全部任务完成后才返回
//
// 任务按端口升序分发, 完成顺序不确定; 返回的 Results 按端口升序排列.
// onProgress 在汇总协程中串行调用, 每完成一个任务恰好调用一次.
// ctx 被取消时未完成的连接立即失败并记为 Filtered, 仍然保证每个端口一条结果.
func (s *Scanner) Scan(ctx context.Context, host string, ports []uint16, onProgress ProgressFunc) (Summary, error) {
	if host == "" {
		return Summary{}, ErrNoTarget
	}
	if len(ports) == 0 {
		return Summary{}, ErrEmptyPortSet
	}

	total := len(ports)
	workers := s.opts.Workers
	if total < workers {
		workers = total
	}

	log.Info().
		Str("target", host).
		Int("ports", total).
		Int("workers", workers).
		Dur("worst_case", s.opts.WorstCase(total)).
		Msg("开始扫描")

	results := make(chan PortResult, workers)
	var wg sync.WaitGroup

	pool, err := ants.NewPoolWithFunc(workers, func(arg any) {
		defer wg.Done()
		results <- s.probe(ctx, arg.(ScanTask))
	})
	if err != nil {
		return Summary{}, fmt.Errorf("创建协程池失败: %w", err)
	}
	defer pool.Release()

	// 分发任务: 池满时 Invoke 阻塞, 每个任务只会被一个协程领取
	go func() {
		for _, p := range ports {
			wg.Add(1)
			if err := pool.Invoke(ScanTask{Host: host, Port: p}); err != nil {
				wg.Done()
				log.Warn().Uint16("port", p).Err(err).Msg("任务提交失败")
				results <- PortResult{Port: p, State: StateFiltered}
			}
		}
		wg.Wait()
		close(results)
	}()

	sum := Summary{
		ID:      uuid.NewString(),
		Target:  host,
		Address: host,
		Total:   total,
		Started: time.Now(),
		Results: make([]PortResult, 0, total),
	}
	completed := 0
	for res := range results {
		completed++
		switch res.State {
		case StateOpen:
			sum.Open++
		case StateClosed:
			sum.Closed++
		case StateFiltered:
			sum.Filtered++
		}
		sum.Results = append(sum.Results, res)
		if onProgress != nil {
			onProgress(Progress{Completed: completed, Total: total, Result: res})
		}
	}
	sum.Duration = time.Since(sum.Started)

	sort.Slice(sum.Results, func(i, j int) bool {
		return sum.Results[i].Port < sum.Results[j].Port
	})

	log.Info().
		Str("target", host).
		Int("open", sum.Open).
		Int("closed", sum.Closed).
		Int("filtered", sum.Filtered).
		Dur("elapsed", sum.Duration).
		Msg("扫描完成")
	return sum, nil
}

// probe 执行单个任务; 探测器 panic 时记为 Filtered, 不影响其他任务
func (s *Scanner) probe(ctx context.Context, task ScanTask) (res PortResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Uint16("port", task.Port).Interface("panic", r).Msg("探测异常")
			res = PortResult{Port: task.Port, State: StateFiltered}
		}
	}()

	res = s.connector.Probe(ctx, task.Host, task.Port, s.opts.ConnectTimeout, s.opts.ReadTimeout)
	res.Port = task.Port
	if s.opts.Identify && res.State == StateOpen && res.Service == "" {
		res.Service = Identify(res.Port, res.Banner)
	}
	return res
}
