package dsp_test

import (
	"math"
	"testing"

	"tabcraft/internal/dsp"
)

func TestLowPassAttenuatesHighFrequency(t *testing.T) {
	const sampleRate = 44100
	low := sine(50, 0.8, sampleRate, sampleRate)
	high := sine(5000, 0.8, sampleRate, sampleRate)

	lowOut := dsp.RMS(dsp.LowPass(low, sampleRate, 200))
	highOut := dsp.RMS(dsp.LowPass(high, sampleRate, 200))
	if lowOut < 0.8*dsp.RMS(low) {
		t.Errorf("50Hz through 200Hz low-pass: rms %v, want mostly preserved", lowOut)
	}
	if highOut > 0.1*dsp.RMS(high) {
		t.Errorf("5kHz through 200Hz low-pass: rms %v, want heavily attenuated", highOut)
	}
}

func TestHighPassAttenuatesLowFrequency(t *testing.T) {
	const sampleRate = 44100
	low := sine(30, 0.8, sampleRate, sampleRate)
	high := sine(5000, 0.8, sampleRate, sampleRate)

	if got := dsp.RMS(dsp.HighPass(low, sampleRate, 2000)); got > 0.1*dsp.RMS(low) {
		t.Errorf("30Hz through 2kHz high-pass: rms %v, want heavily attenuated", got)
	}
	if got := dsp.RMS(dsp.HighPass(high, sampleRate, 2000)); got < 0.7*dsp.RMS(high) {
		t.Errorf("5kHz through 2kHz high-pass: rms %v, want mostly preserved", got)
	}
}

func TestFiltersHandleDegenerateInput(t *testing.T) {
	if got := dsp.LowPass(nil, 44100, 100); len(got) != 0 {
		t.Errorf("LowPass(nil) length = %d", len(got))
	}
	if got := dsp.HighPass(nil, 44100, 100); len(got) != 0 {
		t.Errorf("HighPass(nil) length = %d", len(got))
	}
	in := []float32{0.1, 0.2, 0.3}
	out := dsp.LowPass(in, 0, 100)
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("LowPass with zero sample rate changed sample %d", i)
		}
	}
	out[0] = 9
	if in[0] == 9 {
		t.Error("LowPass returned the input slice instead of a copy")
	}
}

func TestMidSide(t *testing.T) {
	mid, side := dsp.MidSide([]float32{1, 0.5}, []float32{1, -0.5})
	if mid[0] != 1 || side[0] != 0 {
		t.Errorf("identical channels: mid=%v side=%v", mid[0], side[0])
	}
	if mid[1] != 0 || side[1] != 0.5 {
		t.Errorf("opposite channels: mid=%v side=%v", mid[1], side[1])
	}
}

func TestCompress(t *testing.T) {
	out := dsp.Compress([]float32{0.2, 0.9, -0.9}, 0.5, 0.5)
	want := []float32{0.2, 0.7, -0.7}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestNoiseGate(t *testing.T) {
	out := dsp.NoiseGate([]float32{0.05, -0.05, 1, -0.55}, 0.1)
	want := []float32{0, 0, 1, -0.55 * 0.5}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, out[i], want[i])
		}
	}
	for i, v := range dsp.NoiseGate([]float32{1, -1}, 1) {
		if v != 0 {
			t.Errorf("threshold 1: sample %d = %v, want 0", i, v)
		}
	}
}

func TestEmphasizeTransients(t *testing.T) {
	x := make([]float32, 1000)
	x[500] = 0.5
	for i := range x {
		if i != 500 {
			x[i] = 0.01
		}
	}
	out := dsp.EmphasizeTransients(x, dsp.TransientParams{
		Window: 128, Threshold: 1.8, TrailingThreshold: 1.5, Boost: 4, Cut: 0.1,
	})
	if math.Abs(float64(out[500])-2) > 1e-6 {
		t.Errorf("transient = %v, want 2", out[500])
	}
	if math.Abs(float64(out[300])-0.001) > 1e-6 {
		t.Errorf("steady sample = %v, want 0.001", out[300])
	}
	if math.Abs(float64(out[10])-0.001) > 1e-6 {
		t.Errorf("edge sample = %v, want 0.001", out[10])
	}
}

func TestClamp(t *testing.T) {
	nan := float32(math.NaN())
	out := dsp.Clamp([]float32{2, -3, 0.5, nan})
	want := []float32{1, -1, 0.5, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestDifference(t *testing.T) {
	a := []float32{1, -1, 1, -1}
	if got := dsp.Difference(a, a); got != 0 {
		t.Errorf("Difference(a, a) = %v, want 0", got)
	}
	if got := dsp.Difference(a, make([]float32, 4)); got != 1 {
		t.Errorf("Difference(a, 0) = %v, want 1", got)
	}
	if got := dsp.Difference(make([]float32, 4), a); got != 0 {
		t.Errorf("Difference(0, a) = %v, want 0", got)
	}
}

func TestBandPassBoundsStepResponse(t *testing.T) {
	step := make([]float32, 4096)
	for i := range step {
		step[i] = -1
		if i >= len(step)/2 {
			step[i] = 1
		}
	}

	// 一阶高通对满幅阶跃的响应接近 2
	peak := 0.0
	for _, v := range dsp.HighPass(step, 44100, 20) {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if peak < 1.5 {
		t.Fatalf("high-pass peak = %v, want overshoot above 1.5", peak)
	}

	for i, v := range dsp.BandPass(step, 44100, 20, 20000) {
		if v > 1 || v < -1 {
			t.Fatalf("band-pass sample %d = %v, want within [-1, 1]", i, v)
		}
	}
}
