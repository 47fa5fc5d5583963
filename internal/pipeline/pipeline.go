// Package pipeline 实现单个音频的完整分析流程：
// 单声道混合 → 分帧 → 音高检测 → {节拍, 调性, 指板映射 → 六线谱}。
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"tabcraft/internal/dsp"
	"tabcraft/internal/instrument"
	"tabcraft/internal/tab"
	"tabcraft/internal/types"
)

// minChunk 每个并发任务至少处理的帧数
const minChunk = 32

// Options 单次分析的参数
type Options struct {
	Analysis types.AnalysisOptions
	Tab      types.TabOptions

	// Concurrency 音高检测的并发数，<=0 时使用 GOMAXPROCS
	Concurrency int

	// Progress 报告已处理帧数，可能被多个 goroutine 并发调用，可为空
	Progress func(done, total int)
}

// DefaultOptions 返回默认参数
func DefaultOptions() Options {
	return Options{
		Analysis: types.DefaultAnalysisOptions(),
		Tab:      types.DefaultTabOptions(),
	}
}

// Validate 检查参数
func (o Options) Validate() error {
	if err := o.Analysis.Validate(); err != nil {
		return err
	}
	return o.Tab.Validate()
}

// Analyze 分析一段音频并生成六线谱。
// 参数在处理前校验；ctx 在帧之间检查，取消后返回 ctx.Err()。
// 静音输入返回空音符、无节拍、无调性，六线谱只有填充字符。
func Analyze(ctx context.Context, buf *types.SampleBuffer, tuning instrument.Tuning, opts Options) (*types.Analysis, error) {
	if buf == nil {
		return nil, types.ErrEmptyBuffer
	}
	if buf.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: 采样率无效 (%d)", types.ErrInvalidOptions, buf.SampleRate)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidOptions, err)
	}

	mono := buf.Mono()
	notes, err := DetectNotes(ctx, mono, buf.SampleRate, opts)
	if err != nil {
		return nil, err
	}

	duration := buf.Duration()
	result := types.TablatureResult{
		Instrument: tuning.Key,
		Lines:      tab.Render(notes, tuning, duration, opts.Tab),
	}
	if bpm, ok := dsp.EstimateTempo(mono, buf.SampleRate); ok {
		result.TempoBPM = &bpm
	}
	if key, ok := dsp.EstimateKey(notes); ok {
		result.Key = &key
	}

	return &types.Analysis{
		DurationSec: duration,
		SampleRate:  buf.SampleRate,
		Notes:       notes,
		Tablature:   result,
	}, nil
}

// DetectNotes 对每一帧做音高检测，按时间顺序返回有效帧。
// RMS 低于阈值或未检测到音高的帧不产生记录。
// 帧被划分为连续的块并发处理，结果按原始顺序合并。
func DetectNotes(ctx context.Context, mono []float32, sampleRate int, opts Options) ([]types.FrameAnalysis, error) {
	a := opts.Analysis
	if err := dsp.ValidateFraming(a.FrameSize, a.HopSize); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidOptions, err)
	}

	var starts []int
	for start := range dsp.Frames(mono, a.FrameSize, a.HopSize) {
		starts = append(starts, start)
	}
	total := len(starts)
	if total == 0 {
		return nil, ctx.Err()
	}

	workers := opts.Concurrency
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := max(minChunk, (total+workers*4-1)/(workers*4))

	found := make([]types.FrameAnalysis, total)
	voiced := make([]bool, total)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < total; lo += chunk {
		hi := min(lo+chunk, total)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				start := starts[i]
				fa, ok := analyzeFrame(mono[start:start+a.FrameSize], start, sampleRate, a)
				found[i], voiced[i] = fa, ok
			}
			n := done.Add(int64(hi - lo))
			if opts.Progress != nil {
				opts.Progress(int(n), total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	notes := make([]types.FrameAnalysis, 0, total)
	for i := range found {
		if voiced[i] {
			notes = append(notes, found[i])
		}
	}
	return notes, nil
}

func analyzeFrame(frame []float32, start, sampleRate int, a types.AnalysisOptions) (types.FrameAnalysis, bool) {
	amp := dsp.RMS(frame)
	if amp < a.AmplitudeThreshold {
		return types.FrameAnalysis{}, false
	}
	freq, ok := dsp.DetectPitch(frame, float64(sampleRate), a.MinFreq, a.MaxFreq)
	if !ok {
		return types.FrameAnalysis{}, false
	}
	midi := dsp.FrequencyToMIDI(freq)
	return types.FrameAnalysis{
		TimeSec:     float64(start) / float64(sampleRate),
		FrequencyHz: freq,
		Amplitude:   amp,
		MIDI:        midi,
		Note:        dsp.MIDIToNoteName(midi),
	}, true
}
