// Package stems 用经典滤波器和启发式规则在时域上近似分离人声、鼓、贝斯和其他声部。
//
// 这不是训练好的声源分离模型：输出只是频段和瞬态特征的粗略强调，
// 分离度有限，达不到音乐制作的质量。每一步组合之后都会把采样限制在 [-1, 1]。
package stems

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"tabcraft/internal/dsp"
	"tabcraft/internal/types"
)

// minDifference 分轨与原始信号的相对差异低于此值时记录警告
const minDifference = 0.01

// Options 分离选项
type Options struct {
	// Progress 以百分比 (0..100) 报告进度，可为空
	Progress func(percent int)
}

func (o Options) report(p int) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

// Separate 生成单个分轨
func Separate(buf *types.SampleBuffer, kind types.StemKind, opts Options) (*types.StemBuffer, error) {
	if err := checkBuffer(buf); err != nil {
		return nil, err
	}
	sr := float64(buf.SampleRate)

	opts.report(10)
	var out []float32
	switch kind {
	case types.StemVocals:
		out = vocals(buf, sr, opts)
	case types.StemDrums:
		out = drums(buf.Mono(), sr, opts)
	case types.StemBass:
		out = bass(buf.Mono(), sr, opts)
	case types.StemOther:
		mono := buf.Mono()
		opts.report(25)
		v := vocals(buf, sr, Options{})
		opts.report(50)
		d := drums(mono, sr, Options{})
		opts.report(75)
		b := bass(mono, sr, Options{})
		out = other(mono, v, d, b)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownStem, kind)
	}
	opts.report(100)

	stem := &types.StemBuffer{Kind: kind, Samples: out, SampleRate: buf.SampleRate}
	checkDifference(buf.Mono(), stem)
	return stem, nil
}

// SeparateAll 并行生成人声、鼓和贝斯，"other" 由前三者从原始信号中减去得到。
// 返回顺序与 kinds 一致。
func SeparateAll(ctx context.Context, buf *types.SampleBuffer, kinds []types.StemKind, opts Options) ([]*types.StemBuffer, error) {
	if err := checkBuffer(buf); err != nil {
		return nil, err
	}
	want := make(map[types.StemKind]bool, len(kinds))
	for _, k := range kinds {
		if _, err := types.ParseStemKind(string(k)); err != nil {
			return nil, err
		}
		want[k] = true
	}

	sr := float64(buf.SampleRate)
	mono := buf.Mono()
	needAll := want[types.StemOther]
	results := make(map[types.StemKind][]float32, 4)
	recipes := map[types.StemKind]func() []float32{
		types.StemVocals: func() []float32 { return vocals(buf, sr, Options{}) },
		types.StemDrums:  func() []float32 { return drums(mono, sr, Options{}) },
		types.StemBass:   func() []float32 { return bass(mono, sr, Options{}) },
	}

	opts.report(10)
	var (
		outs [3][]float32
		done int
	)
	order := []types.StemKind{types.StemVocals, types.StemDrums, types.StemBass}
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range order {
		if !needAll && !want[k] {
			continue
		}
		recipe := recipes[k]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outs[i] = recipe()
			return nil
		})
		done++
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, k := range order {
		if outs[i] != nil {
			results[k] = outs[i]
		}
	}
	opts.report(80)

	if needAll {
		results[types.StemOther] = other(mono, results[types.StemVocals], results[types.StemDrums], results[types.StemBass])
	}
	opts.report(100)

	stems := make([]*types.StemBuffer, 0, len(kinds))
	for _, k := range kinds {
		stem := &types.StemBuffer{Kind: k, Samples: results[k], SampleRate: buf.SampleRate}
		checkDifference(mono, stem)
		stems = append(stems, stem)
	}
	slog.Debug("分轨完成", "stems", len(stems), "parallel", done)
	return stems, nil
}

func checkBuffer(buf *types.SampleBuffer) error {
	if buf == nil || buf.Len() == 0 {
		return types.ErrEmptyBuffer
	}
	if buf.SampleRate <= 0 {
		return fmt.Errorf("%w: 采样率无效 (%d)", types.ErrInvalidOptions, buf.SampleRate)
	}
	return nil
}

// checkDifference 分轨几乎等于原始信号时说明启发式规则没有起作用
func checkDifference(original []float32, stem *types.StemBuffer) {
	diff := dsp.Difference(original, stem.Samples)
	if diff < minDifference {
		slog.Warn("分轨与原始音频几乎相同，分离可能没有生效",
			"stem", stem.Kind,
			"difference", fmt.Sprintf("%.2f%%", diff*100),
		)
		return
	}
	slog.Debug("分轨差异", "stem", stem.Kind, "difference", fmt.Sprintf("%.2f%%", diff*100))
}
