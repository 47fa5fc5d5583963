package stems

import (
	"tabcraft/internal/dsp"
	"tabcraft/internal/types"
)

// 人声：中置强调、85Hz-8kHz 带通、共振峰增强、压缩
const (
	vocalMidGain    = 1.2
	vocalSideGain   = 0.7
	vocalLowHz      = 85
	vocalHighHz     = 8000
	formantOffset   = 50
	formantGain     = 0.1
	vocalCompThresh = 0.5
	vocalCompRatio  = 0.3
)

// 鼓：瞬态增强后按底鼓、军鼓、镲片三个频段加权，再做噪声门
var drumTransients = dsp.TransientParams{
	Window:            128,
	Threshold:         1.8,
	TrailingThreshold: 1.5,
	Boost:             4,
	Cut:               0.1,
}

const (
	kickLowHz   = 40
	kickHighHz  = 120
	snareLowHz  = 150
	snareHighHz = 5000
	hatLowHz    = 8000
	kickWeight  = 1.5
	snareWeight = 1.2
	hatWeight   = 0.8
	drumGate    = 0.1
)

// 贝斯：低通基音加带通谐波，压缩后加一点轮廓
const (
	bassCutoffHz       = 120
	bassHarmonicHighHz = 300
	bassFundWeight     = 2.0
	bassHarmWeight     = 0.8
	bassCompThresh     = 0.5
	bassCompRatio      = 0.5
	bassDefOffset      = 25
	bassDefGain        = 0.05
)

// 其他：原始信号减去其余三轨的加权和
const (
	otherVocalWeight = 0.7
	otherDrumWeight  = 0.5
	otherBassWeight  = 0.6
)

func vocals(buf *types.SampleBuffer, sr float64, opts Options) []float32 {
	left := buf.Channels[0]
	right := left
	if len(buf.Channels) > 1 {
		right = buf.Channels[1]
	}
	opts.report(20)

	mid, side := dsp.MidSide(left, right)
	center := make([]float32, len(mid))
	for i := range mid {
		center[i] = mid[i]*vocalMidGain - side[i]*vocalSideGain
	}
	dsp.Clamp(center)
	opts.report(50)

	filtered := dsp.Clamp(dsp.BandPass(center, sr, vocalLowHz, vocalHighHz))
	opts.report(70)

	enhanced := dsp.Clamp(dsp.FormantBoost(filtered, formantOffset, formantGain))
	opts.report(90)

	return dsp.Clamp(dsp.Compress(enhanced, vocalCompThresh, vocalCompRatio))
}

func drums(mono []float32, sr float64, opts Options) []float32 {
	opts.report(20)
	track := dsp.Clamp(dsp.EmphasizeTransients(mono, drumTransients))
	opts.report(40)

	kick := dsp.Clamp(dsp.BandPass(track, sr, kickLowHz, kickHighHz))
	snare := dsp.Clamp(dsp.BandPass(track, sr, snareLowHz, snareHighHz))
	hats := dsp.Clamp(dsp.HighPass(track, sr, hatLowHz))
	opts.report(60)

	combined := make([]float32, len(track))
	for i := range combined {
		combined[i] = kick[i]*kickWeight + snare[i]*snareWeight + hats[i]*hatWeight
	}
	dsp.Clamp(combined)
	opts.report(80)

	return dsp.Clamp(dsp.NoiseGate(combined, drumGate))
}

func bass(mono []float32, sr float64, opts Options) []float32 {
	opts.report(20)
	low := dsp.Clamp(dsp.LowPass(mono, sr, bassCutoffHz))
	opts.report(40)
	harmonics := dsp.Clamp(dsp.BandPass(mono, sr, bassCutoffHz, bassHarmonicHighHz))
	opts.report(60)

	combined := make([]float32, len(mono))
	for i := range combined {
		combined[i] = low[i]*bassFundWeight + harmonics[i]*bassHarmWeight
	}
	dsp.Clamp(combined)
	opts.report(80)

	compressed := dsp.Clamp(dsp.Compress(combined, bassCompThresh, bassCompRatio))
	return dsp.Clamp(dsp.BassDefinition(compressed, bassDefOffset, bassDefGain))
}

func other(mono, vocals, drums, bass []float32) []float32 {
	out := make([]float32, len(mono))
	for i := range out {
		out[i] = mono[i] -
			at(vocals, i)*otherVocalWeight -
			at(drums, i)*otherDrumWeight -
			at(bass, i)*otherBassWeight
	}
	return dsp.Clamp(out)
}

func at(x []float32, i int) float32 {
	if i < len(x) {
		return x[i]
	}
	return 0
}
