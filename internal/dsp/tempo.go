package dsp

import "math"

const (
	envelopeWindow = 1024
	envelopeHop    = 256
	minEnvelopeLen = 8

	searchMinBPM = 60.0
	searchMaxBPM = 180.0

	// MinTempoBPM 和 MaxTempoBPM 之外的结果一律丢弃
	MinTempoBPM = 40
	MaxTempoBPM = 240
)

// EnergyEnvelope 以滑动窗口计算整段音频的 RMS 包络
func EnergyEnvelope(samples []float32, window, hop int) []float64 {
	if window <= 0 || hop <= 0 {
		return nil
	}
	var env []float64
	for i := 0; i+window < len(samples); i += hop {
		env = append(env, RMS(samples[i:i+window]))
	}
	return env
}

// EstimateTempo 对能量包络（而非波形）做自相关来寻找节拍周期。
// 包络过短、找不到正相关的延迟或结果超出 [40, 240] BPM 时返回 (0, false)。
func EstimateTempo(samples []float32, sampleRate int) (int, bool) {
	if sampleRate <= 0 {
		return 0, false
	}
	env := EnergyEnvelope(samples, envelopeWindow, envelopeHop)
	if len(env) < minEnvelopeLen {
		return 0, false
	}

	var mean float64
	for _, e := range env {
		mean += e
	}
	mean /= float64(len(env))
	for i := range env {
		env[i] -= mean
	}

	fps := float64(sampleRate) / envelopeHop
	minLag := int(math.Round(fps * 60 / searchMaxBPM))
	maxLag := int(math.Round(fps * 60 / searchMinBPM))

	bestLag := -1
	best := 0.0
	for lag := max(minLag, 1); lag <= maxLag; lag++ {
		var sum float64
		for i := 0; i+lag < len(env); i++ {
			sum += env[i] * env[i+lag]
		}
		if sum > best {
			best = sum
			bestLag = lag
		}
	}
	if bestLag <= 0 {
		return 0, false
	}

	bpm := math.Round(60 / (float64(bestLag) / fps))
	if math.IsNaN(bpm) || bpm < MinTempoBPM || bpm > MaxTempoBPM {
		return 0, false
	}
	return int(bpm), true
}
