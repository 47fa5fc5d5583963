package engine

import (
	"context"
	"sync"

	"tabcraft/internal/instrument"
	"tabcraft/internal/types"
)

// messageBuffer 每个任务消息通道的容量，最后一个位置始终留给最终消息
const messageBuffer = 16

// Request 分析请求
type Request struct {
	Name       string                // 仅用于日志
	Buffer     *types.SampleBuffer   // 待分析音频，处理期间只读
	Instrument string                // 乐器键名或别名
	Stem       types.StemKind        // 非空时先分离该分轨，再分析分轨
	Options    types.AnalysisOptions // 零值表示使用默认值
	Tab        types.TabOptions      // 零值表示使用默认值
}

// Stage 任务阶段
type Stage string

const (
	StageQueued   Stage = "queued"
	StageSeparate Stage = "separate"
	StageAnalyze  Stage = "analyze"
	StageDone     Stage = "done"
)

// Result 任务的最终输出
type Result struct {
	Analysis *types.Analysis
	// Stem 仅在请求指定了分轨时非空
	Stem *types.StemBuffer
	// Frames 分析的帧数
	Frames int
}

// Message 任务发往调用方的消息。
// Final 为 true 的消息恰好出现一次，之后通道关闭。
type Message struct {
	Stage   Stage
	Percent int
	Final   bool
	Result  *Result
	Err     error
}

// Job 已提交的任务句柄
type Job struct {
	ID   uint64
	Name string

	req    Request
	tuning instrument.Tuning
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	finished bool
	messages chan Message
}

func newJob(parent context.Context, id uint64, req Request, tuning instrument.Tuning) *Job {
	ctx, cancel := context.WithCancel(parent)
	return &Job{
		ID:       id,
		Name:     req.Name,
		req:      req,
		tuning:   tuning,
		ctx:      ctx,
		cancel:   cancel,
		messages: make(chan Message, messageBuffer),
	}
}

// Messages 返回进度和结果消息通道
func (j *Job) Messages() <-chan Message {
	return j.messages
}

// Cancel 取消任务，处理在下一个帧或阶段边界停止
func (j *Job) Cancel() {
	j.cancel()
}

// Wait 读取消息直到最终结果。不要与 Messages 同时使用。
func (j *Job) Wait(ctx context.Context) (*Result, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-j.messages:
			if !ok {
				return nil, ErrEngineClosed
			}
			if msg.Final {
				return msg.Result, msg.Err
			}
		}
	}
}

// progress 非阻塞发送，调用方消费不及时则丢弃
func (j *Job) progress(stage Stage, percent int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finished || len(j.messages) >= cap(j.messages)-1 {
		return
	}
	select {
	case j.messages <- Message{Stage: stage, Percent: percent}:
	default:
	}
}

func (j *Job) finish(res *Result, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finished {
		return
	}
	j.finished = true
	j.cancel()
	j.messages <- Message{Stage: StageDone, Percent: 100, Final: true, Result: res, Err: err}
	close(j.messages)
}
