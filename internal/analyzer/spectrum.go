package analyzer

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"tabcraft/internal/types"
)

const (
	// maxWindows 参与平均的最大窗口数
	maxWindows = 8

	lowBandHz  = 250
	highBandHz = 4000
)

// SpectrumAnalyzer 频谱分析器
type SpectrumAnalyzer struct {
	sampleRate int
	windowSize int
}

// NewSpectrumAnalyzer 创建频谱分析器
func NewSpectrumAnalyzer(sampleRate int) *SpectrumAnalyzer {
	// 8K窗口，提供良好的频率分辨率
	return &SpectrumAnalyzer{
		sampleRate: sampleRate,
		windowSize: 8192,
	}
}

// Profile 在整段信号上均匀取若干个窗口，平均功率谱后计算频谱概况
func (s *SpectrumAnalyzer) Profile(samples []float32) (*types.SpectralProfile, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("音频采样数据为空")
	}
	if s.sampleRate <= 0 {
		return nil, fmt.Errorf("采样率无效: %d", s.sampleRate)
	}

	size := s.windowSize
	if len(samples) < size {
		size = floorPowerOf2(len(samples))
	}
	if size < 2 {
		return nil, fmt.Errorf("音频太短，无法进行频谱分析")
	}

	count := min(maxWindows, len(samples)/size)
	stride := size
	if count > 1 {
		stride = (len(samples) - size) / (count - 1)
	}

	power := make([]float64, size/2)
	buf := make([]float64, size)
	for w := 0; w < count; w++ {
		start := w * stride
		for i := range buf {
			buf[i] = float64(samples[start+i])
		}
		// 汉明窗减少频谱泄漏
		window.Apply(buf, window.Hamming)
		spectrum := fft.FFTReal(buf)
		for i := range power {
			a := cmplx.Abs(spectrum[i])
			power[i] += a * a
		}
	}
	for i := range power {
		power[i] /= float64(count)
	}

	return s.analyzePower(power), nil
}

func (s *SpectrumAnalyzer) analyzePower(power []float64) *types.SpectralProfile {
	// 频率分辨率
	resolution := float64(s.sampleRate) / float64(len(power)*2)

	var (
		total, weighted float64
		low, mid, high  float64
		peak            float64
		peakBin         int
	)
	// 跳过直流分量
	for i := 1; i < len(power); i++ {
		p := power[i]
		f := float64(i) * resolution
		total += p
		weighted += p * f
		switch {
		case f < lowBandHz:
			low += p
		case f < highBandHz:
			mid += p
		default:
			high += p
		}
		if p > peak {
			peak, peakBin = p, i
		}
	}

	profile := &types.SpectralProfile{
		MaxFrequency: s.findMaxEffectiveFrequency(power, resolution),
	}
	if total == 0 {
		return profile
	}
	profile.DominantHz = float64(peakBin) * resolution
	profile.CentroidHz = weighted / total
	profile.Low = low / total
	profile.Mid = mid / total
	profile.High = high / total
	return profile
}

// findMaxEffectiveFrequency 从高频往低频搜索，找到最后一个显著高于噪声基底的频率
func (s *SpectrumAnalyzer) findMaxEffectiveFrequency(power []float64, resolution float64) float64 {
	// 阈值设为噪声基底的10倍
	threshold := s.calculateNoiseFloor(power) * 10

	for i := len(power) - 1; i > 0; i-- {
		if power[i] > threshold {
			return float64(i) * resolution
		}
	}
	return 0
}

// calculateNoiseFloor 取功率谱的最后10%作为噪声基底的估计
func (s *SpectrumAnalyzer) calculateNoiseFloor(power []float64) float64 {
	startIdx := len(power) * 9 / 10

	sum := 0.0
	count := 0
	for i := startIdx; i < len(power); i++ {
		sum += power[i]
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// floorPowerOf2 不大于 n 的最大2的幂
func floorPowerOf2(n int) int {
	power := 1
	for power*2 <= n {
		power <<= 1
	}
	return power
}
