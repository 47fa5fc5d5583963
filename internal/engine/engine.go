// Package engine 提供显式的 DSP 执行上下文：固定数量的 worker 从队列中取出任务，
// 通过每个任务自己的消息通道返回进度和结果。
//
// 引擎有三种状态：运行、挂起、关闭。挂起时已排队的任务保持等待，
// 关闭后新的提交返回 ErrEngineClosed，尚未执行的任务以同样的错误结束。
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"tabcraft/internal/dsp"
	"tabcraft/internal/instrument"
	"tabcraft/internal/pipeline"
	"tabcraft/internal/stems"
	"tabcraft/internal/types"
)

// ErrEngineClosed 引擎已关闭
var ErrEngineClosed = errors.New("引擎已关闭")

// DefaultInstrument 请求未指定乐器时使用
const DefaultInstrument = "guitar"

// State 引擎状态
type State int32

const (
	StateRunning State = iota
	StateSuspended
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Config 引擎配置
type Config struct {
	// Workers 同时执行的任务数，<=0 时使用 CPU 核数
	Workers int
	// QueueSize 等待队列长度，<=0 时为 Workers*4
	QueueSize int
	// Concurrency 单个任务内部音高检测的并发数，<=0 时使用 GOMAXPROCS
	Concurrency int
	// Registry 乐器定弦表，为空时使用内置表
	Registry *instrument.Registry
	// MeterProvider 为空时使用全局 provider
	MeterProvider metric.MeterProvider
	// Suspended 为 true 时引擎以挂起状态创建
	Suspended bool
}

// Engine DSP 执行上下文
type Engine struct {
	cfg      Config
	registry *instrument.Registry
	metrics  *Metrics

	// base 所有任务上下文的父上下文，Close 时取消
	base     context.Context
	shutdown context.CancelFunc

	mu    sync.Mutex
	cond  *sync.Cond
	state State

	// sendMu 保证 Close 之后不会再有任务进入队列
	sendMu sync.RWMutex
	queue  chan *Job
	done   chan struct{}
	wg     sync.WaitGroup
	nextID atomic.Uint64
}

// New 创建引擎并启动 worker
func New(cfg Config) (*Engine, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}
	if cfg.Registry == nil {
		cfg.Registry = instrument.Default()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	metrics, err := NewMetrics(mp)
	if err != nil {
		return nil, fmt.Errorf("创建引擎指标失败: %w", err)
	}

	base, shutdown := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg,
		registry: cfg.Registry,
		metrics:  metrics,
		base:     base,
		shutdown: shutdown,
		queue:    make(chan *Job, cfg.QueueSize),
		done:     make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	if cfg.Suspended {
		e.state = StateSuspended
	}

	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	slog.Debug("引擎已启动", "workers", cfg.Workers, "queue", cfg.QueueSize, "state", e.state)
	return e, nil
}

// State 返回当前状态
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Tuning 按键名或别名解析乐器定弦，空字符串表示 DefaultInstrument
func (e *Engine) Tuning(name string) (instrument.Tuning, error) {
	if name == "" {
		name = DefaultInstrument
	}
	return e.registry.Lookup(name)
}

// Resume 恢复执行挂起期间排队的任务
func (e *Engine) Resume() error {
	return e.transition(StateRunning)
}

// Suspend 暂停取出新任务，正在执行的任务不受影响
func (e *Engine) Suspend() error {
	return e.transition(StateSuspended)
}

func (e *Engine) transition(to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return ErrEngineClosed
	}
	e.state = to
	e.cond.Broadcast()
	return nil
}

// Close 关闭引擎：拒绝新提交，取消正在执行的任务，未执行的任务以 ErrEngineClosed 结束。
// 重复调用安全。
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return nil
	}
	e.state = StateClosed
	close(e.done)
	e.cond.Broadcast()
	e.mu.Unlock()

	// 等待进行中的 Submit 退出
	e.sendMu.Lock()
	e.sendMu.Unlock()

	e.shutdown()
	e.wg.Wait()

	for {
		select {
		case job := <-e.queue:
			job.finish(nil, ErrEngineClosed)
		default:
			slog.Debug("引擎已关闭")
			return nil
		}
	}
}

// Submit 校验请求并放入队列。参数错误在这里立即返回，不会进入队列。
// 队列已满时阻塞，直到有空位、ctx 结束或引擎关闭。
func (e *Engine) Submit(ctx context.Context, req Request) (*Job, error) {
	tuning, err := e.prepare(&req)
	if err != nil {
		return nil, err
	}

	e.sendMu.RLock()
	defer e.sendMu.RUnlock()
	if e.State() == StateClosed {
		return nil, ErrEngineClosed
	}

	job := newJob(e.base, e.nextID.Add(1), req, tuning)
	job.progress(StageQueued, 0)
	select {
	case e.queue <- job:
		return job, nil
	case <-e.done:
		job.cancel()
		return nil, ErrEngineClosed
	case <-ctx.Done():
		job.cancel()
		return nil, ctx.Err()
	}
}

// Analyze 提交请求并等待结果
func (e *Engine) Analyze(ctx context.Context, req Request) (*Result, error) {
	job, err := e.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, job.Cancel)
	defer stop()
	return job.Wait(context.WithoutCancel(ctx))
}

func (e *Engine) prepare(req *Request) (instrument.Tuning, error) {
	if req.Buffer == nil {
		return instrument.Tuning{}, types.ErrEmptyBuffer
	}
	if req.Buffer.SampleRate <= 0 {
		return instrument.Tuning{}, fmt.Errorf("%w: 采样率无效 (%d)", types.ErrInvalidOptions, req.Buffer.SampleRate)
	}
	if req.Options == (types.AnalysisOptions{}) {
		req.Options = types.DefaultAnalysisOptions()
	}
	if req.Tab == (types.TabOptions{}) {
		req.Tab = types.DefaultTabOptions()
	}
	if req.Instrument == "" {
		req.Instrument = DefaultInstrument
	}

	var errs []error
	if err := req.Options.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := req.Tab.Validate(); err != nil {
		errs = append(errs, err)
	}
	if req.Stem != "" {
		if _, err := types.ParseStemKind(string(req.Stem)); err != nil {
			errs = append(errs, err)
		}
	}
	tuning, err := e.registry.Lookup(req.Instrument)
	if err != nil {
		errs = append(errs, err)
	}
	return tuning, errors.Join(errs...)
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case job := <-e.queue:
			if !e.awaitRunning() {
				job.finish(nil, ErrEngineClosed)
				continue
			}
			e.run(job)
		}
	}
}

// awaitRunning 挂起时阻塞，返回 false 表示引擎已关闭
func (e *Engine) awaitRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.state == StateSuspended {
		e.cond.Wait()
	}
	return e.state == StateRunning
}

func (e *Engine) run(job *Job) {
	start := time.Now()
	ctx := job.ctx
	e.metrics.ActiveJobs.Add(ctx, 1)
	defer e.metrics.ActiveJobs.Add(context.WithoutCancel(ctx), -1)

	res, err := e.process(job)

	status := "ok"
	switch {
	case errors.Is(err, context.Canceled):
		status = "canceled"
	case err != nil:
		status = "error"
	}
	mctx := context.WithoutCancel(ctx)
	e.metrics.Jobs.Add(mctx, 1, metric.WithAttributes(attribute.String("status", status)))
	e.metrics.JobDuration.Record(mctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stem", string(job.req.Stem))))
	if res != nil {
		e.metrics.Frames.Add(mctx, int64(res.Frames))
	}

	slog.Debug("任务结束",
		"job", job.ID,
		"name", job.Name,
		"status", status,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	job.finish(res, err)
}

func (e *Engine) process(job *Job) (*Result, error) {
	ctx := job.ctx
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := job.req
	buf := req.Buffer
	res := &Result{}
	if req.Stem != "" {
		job.progress(StageSeparate, 0)
		stem, err := stems.Separate(buf, req.Stem, stems.Options{
			Progress: func(p int) { job.progress(StageSeparate, p) },
		})
		if err != nil {
			return nil, fmt.Errorf("分离 %s 失败: %w", req.Stem, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Stem = stem
		buf = stem.Buffer()
	}

	job.progress(StageAnalyze, 0)
	analysis, err := pipeline.Analyze(ctx, buf, job.tuning, pipeline.Options{
		Analysis:    req.Options,
		Tab:         req.Tab,
		Concurrency: e.cfg.Concurrency,
		Progress: func(done, total int) {
			job.progress(StageAnalyze, done*100/total)
		},
	})
	if err != nil {
		return nil, err
	}
	res.Analysis = analysis
	res.Frames = dsp.FrameCount(buf.Len(), req.Options.FrameSize, req.Options.HopSize)
	return res, nil
}
