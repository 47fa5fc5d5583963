package dsp

import "math"

// LowPass 一阶 IIR 低通: y[i] = y[i-1] + α·(x[i]-y[i-1])，α = dt/(rc+dt)。
// 参数非法时返回输入的副本。
func LowPass(x []float32, sampleRate, cutoff float64) []float32 {
	y := make([]float32, len(x))
	if len(x) == 0 {
		return y
	}
	if sampleRate <= 0 || cutoff <= 0 {
		copy(y, x)
		return y
	}
	rc := 1 / (2 * math.Pi * cutoff)
	dt := 1 / sampleRate
	alpha := dt / (rc + dt)

	prev := float64(x[0])
	y[0] = x[0]
	for i := 1; i < len(x); i++ {
		prev += alpha * (float64(x[i]) - prev)
		y[i] = float32(prev)
	}
	return y
}

// HighPass 一阶 IIR 高通: y[i] = α·(y[i-1] + x[i]-x[i-1])，α = rc/(rc+dt)
func HighPass(x []float32, sampleRate, cutoff float64) []float32 {
	y := make([]float32, len(x))
	if len(x) == 0 {
		return y
	}
	if sampleRate <= 0 || cutoff <= 0 {
		copy(y, x)
		return y
	}
	rc := 1 / (2 * math.Pi * cutoff)
	dt := 1 / sampleRate
	alpha := rc / (rc + dt)

	prev := float64(x[0])
	y[0] = x[0]
	for i := 1; i < len(x); i++ {
		prev = alpha * (prev + float64(x[i]) - float64(x[i-1]))
		y[i] = float32(prev)
	}
	return y
}

// BandPass 先高通再低通，中间结果限制在 [-1, 1]
func BandPass(x []float32, sampleRate, low, high float64) []float32 {
	return LowPass(Clamp(HighPass(x, sampleRate, low)), sampleRate, high)
}

// MidSide 立体声中置/侧向分解: mid=(L+R)/2, side=(L-R)/2
func MidSide(left, right []float32) (mid, side []float32) {
	n := min(len(left), len(right))
	mid = make([]float32, n)
	side = make([]float32, n)
	for i := 0; i < n; i++ {
		mid[i] = (left[i] + right[i]) * 0.5
		side[i] = (left[i] - right[i]) * 0.5
	}
	return mid, side
}
