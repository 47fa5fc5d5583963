package dsp

import "math"

// TransientParams 瞬态增强参数
type TransientParams struct {
	Window            int     // 前后能量窗口长度（采样）
	Threshold         float64 // 当前幅度需超过前窗 RMS 的倍数
	TrailingThreshold float64 // 当前幅度需超过后窗 RMS 的倍数
	Boost             float64 // 瞬态增益
	Cut               float64 // 非瞬态增益
}

// EmphasizeTransients 当采样幅度同时超过前后窗口 RMS 的指定倍数时放大，否则衰减。
// 两端不足一个窗口的部分按 Cut 衰减。窗口能量用前缀和计算，复杂度 O(n)。
func EmphasizeTransients(x []float32, p TransientParams) []float32 {
	n := len(x)
	out := make([]float32, n)
	w := p.Window
	if w <= 0 || n <= 2*w {
		for i, v := range x {
			out[i] = float32(float64(v) * p.Cut)
		}
		return out
	}

	// prefix[i] = Σ x[0..i-1]²
	prefix := make([]float64, n+1)
	for i, v := range x {
		prefix[i+1] = prefix[i] + float64(v)*float64(v)
	}
	windowRMS := func(from, to int) float64 {
		e := (prefix[to] - prefix[from]) / float64(to-from)
		if e < 0 {
			// 浮点累加误差
			e = 0
		}
		return math.Sqrt(e)
	}

	for i := 0; i < n; i++ {
		v := float64(x[i])
		if i < w || i >= n-w {
			out[i] = float32(v * p.Cut)
			continue
		}
		current := math.Abs(v)
		before := windowRMS(i-w, i)
		after := windowRMS(i, i+w)
		if current > before*p.Threshold && current > after*p.TrailingThreshold {
			out[i] = float32(v * p.Boost)
		} else {
			out[i] = float32(v * p.Cut)
		}
	}
	return out
}

// Compress 超过阈值的幅度部分按比例压缩，无软拐点
func Compress(x []float32, threshold, ratio float64) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		a := math.Abs(float64(v))
		if a <= threshold {
			out[i] = v
			continue
		}
		c := threshold + (a-threshold)*ratio
		if v < 0 {
			c = -c
		}
		out[i] = float32(c)
	}
	return out
}

// NoiseGate 低于阈值的采样置零，高于阈值的采样按 (|x|-t)/(1-t) 线性爬升
func NoiseGate(x []float32, threshold float64) []float32 {
	out := make([]float32, len(x))
	if threshold >= 1 {
		return out
	}
	for i, v := range x {
		a := math.Abs(float64(v))
		if a < threshold {
			continue
		}
		out[i] = float32(float64(v) * (a - threshold) / (1 - threshold))
	}
	return out
}

// Clamp 将采样限制在 [-1, 1]，NaN 置零
func Clamp(x []float32) []float32 {
	for i, v := range x {
		switch {
		case v != v:
			x[i] = 0
		case v > 1:
			x[i] = 1
		case v < -1:
			x[i] = -1
		}
	}
	return x
}

// FormantBoost 以 ±offset 处的采样叠加少量能量，粗略提升人声清晰度
func FormantBoost(x []float32, offset int, gain float64) []float32 {
	out := make([]float32, len(x))
	copy(out, x)
	margin := 2 * offset
	for i := margin + 1; i < len(x)-margin; i++ {
		out[i] += float32((float64(x[i-offset]) + float64(x[i+offset])) * gain)
	}
	return Clamp(out)
}

// BassDefinition 叠加延迟 offset 的微弱副本以增强低音轮廓
func BassDefinition(x []float32, offset int, gain float64) []float32 {
	out := make([]float32, len(x))
	copy(out, x)
	margin := 2 * offset
	for i := margin + 1; i < len(x)-margin; i++ {
		out[i] += float32(float64(x[i-offset]) * gain)
	}
	return Clamp(out)
}

// Difference 返回两段信号的相对差异 Σ|a-b| / Σ|a|
func Difference(a, b []float32) float64 {
	n := min(len(a), len(b))
	var diff, base float64
	for i := 0; i < n; i++ {
		diff += math.Abs(float64(a[i]) - float64(b[i]))
		base += math.Abs(float64(a[i]))
	}
	if base == 0 {
		return 0
	}
	return diff / base
}
