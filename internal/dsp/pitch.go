package dsp

import "math"

const (
	// correlationEpsilon 最佳自相关值低于此值视为无音高
	correlationEpsilon = 1e-3

	// MinPlausibleHz 和 MaxPlausibleHz 是检测结果的合理范围
	MinPlausibleHz = 20.0
	MaxPlausibleHz = 5000.0
)

// DetectPitch 使用自相关估计一帧的基频。
//
// 帧先被复制并去除直流分量，在 [round(sr/maxHz), min(round(sr/minHz), n-1)]
// 范围内寻找使 Σx[i]·x[i+lag] 最大的延迟，再用抛物线插值得到亚采样精度。
// 任何拒绝条件都返回 (0, false)，调用方应跳过该帧。
func DetectPitch(frame []float32, sampleRate, minHz, maxHz float64) (float64, bool) {
	n := len(frame)
	if n < 2 || sampleRate <= 0 || minHz <= 0 || maxHz <= minHz {
		return 0, false
	}

	work := make([]float64, n)
	var mean float64
	for i, v := range frame {
		work[i] = float64(v)
		mean += work[i]
	}
	mean /= float64(n)
	for i := range work {
		work[i] -= mean
	}

	minLag := int(math.Round(sampleRate / maxHz))
	maxLag := min(int(math.Round(sampleRate/minHz)), n-1)
	if minLag < 1 {
		minLag = 1
	}

	bestLag := -1
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		corr := correlationAtLag(work, lag)
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag <= 0 || bestCorr < correlationEpsilon {
		return 0, false
	}

	y0 := bestCorr
	if bestLag > 1 {
		y0 = correlationAtLag(work, bestLag-1)
	}
	y1 := bestCorr
	y2 := correlationAtLag(work, bestLag+1)
	delta := 0.0
	if denom := 2 * (2*y1 - y0 - y2); denom != 0 {
		delta = (y0 - y2) / denom
	}

	freq := sampleRate / (float64(bestLag) + delta)
	if math.IsNaN(freq) || math.IsInf(freq, 0) || freq < MinPlausibleHz || freq > MaxPlausibleHz {
		return 0, false
	}
	return freq, true
}

func correlationAtLag(x []float64, lag int) float64 {
	var sum float64
	for i := 0; i+lag < len(x); i++ {
		sum += x[i] * x[i+lag]
	}
	return sum
}
