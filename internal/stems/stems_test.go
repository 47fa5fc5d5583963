package stems_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"tabcraft/internal/stems"
	"tabcraft/internal/types"
)

const sampleRate = 44100

func sine(freq, amp float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return out
}

func square(freq float64, n int) []float32 {
	out := make([]float32, n)
	period := int(sampleRate / freq)
	for i := range out {
		if (i/(period/2))%2 == 0 {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}

func noise(n int, seed int64) []float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(r.Float64()*2 - 1)
	}
	return out
}

func assertBounded(t *testing.T, s *types.StemBuffer) {
	t.Helper()
	for i, v := range s.Samples {
		if v != v || v > 1 || v < -1 {
			t.Fatalf("%s sample %d = %v, want within [-1, 1]", s.Kind, i, v)
		}
	}
}

func TestSeparateBoundedOutput(t *testing.T) {
	inputs := map[string]*types.SampleBuffer{
		"noise":  {Channels: [][]float32{noise(sampleRate, 1), noise(sampleRate, 2)}, SampleRate: sampleRate},
		"square": {Channels: [][]float32{square(110, sampleRate)}, SampleRate: sampleRate},
	}
	for name, buf := range inputs {
		for _, kind := range types.AllStems {
			t.Run(name+"/"+string(kind), func(t *testing.T) {
				stem, err := stems.Separate(buf, kind, stems.Options{})
				if err != nil {
					t.Fatal(err)
				}
				if stem.Kind != kind || stem.SampleRate != sampleRate {
					t.Errorf("stem = %s@%d, want %s@%d", stem.Kind, stem.SampleRate, kind, sampleRate)
				}
				if len(stem.Samples) != buf.Len() {
					t.Errorf("len = %d, want %d", len(stem.Samples), buf.Len())
				}
				assertBounded(t, stem)
			})
		}
	}
}

func TestSeparateDoesNotMutateInput(t *testing.T) {
	left := sine(220, 0.8, 4096)
	orig := append([]float32(nil), left...)
	buf := &types.SampleBuffer{Channels: [][]float32{left}, SampleRate: sampleRate}
	for _, kind := range types.AllStems {
		if _, err := stems.Separate(buf, kind, stems.Options{}); err != nil {
			t.Fatal(err)
		}
	}
	for i := range orig {
		if left[i] != orig[i] {
			t.Fatalf("input sample %d changed", i)
		}
	}
}

func TestBassFavoursLowFrequencies(t *testing.T) {
	n := sampleRate
	low := &types.SampleBuffer{Channels: [][]float32{sine(60, 0.4, n)}, SampleRate: sampleRate}
	high := &types.SampleBuffer{Channels: [][]float32{sine(4000, 0.4, n)}, SampleRate: sampleRate}

	lowStem, err := stems.Separate(low, types.StemBass, stems.Options{})
	if err != nil {
		t.Fatal(err)
	}
	highStem, err := stems.Separate(high, types.StemBass, stems.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if lo, hi := energy(lowStem.Samples), energy(highStem.Samples); lo <= hi*10 {
		t.Errorf("bass energy for 60Hz = %f, for 4kHz = %f; want low to dominate", lo, hi)
	}
}

func energy(x []float32) float64 {
	var e float64
	for _, v := range x {
		e += float64(v) * float64(v)
	}
	return e
}

func TestSeparateProgress(t *testing.T) {
	buf := &types.SampleBuffer{Channels: [][]float32{sine(220, 0.5, 8192)}, SampleRate: sampleRate}
	var seen []int
	_, err := stems.Separate(buf, types.StemDrums, stems.Options{Progress: func(p int) { seen = append(seen, p) }})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) == 0 || seen[len(seen)-1] != 100 {
		t.Fatalf("progress = %v, want to end at 100", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Errorf("progress went backwards: %v", seen)
		}
	}
}

func TestSeparateErrors(t *testing.T) {
	buf := &types.SampleBuffer{Channels: [][]float32{sine(220, 0.5, 1024)}, SampleRate: sampleRate}
	if _, err := stems.Separate(buf, "all", stems.Options{}); !errors.Is(err, types.ErrUnknownStem) {
		t.Errorf("unknown stem err = %v, want ErrUnknownStem", err)
	}
	if _, err := stems.Separate(&types.SampleBuffer{SampleRate: sampleRate}, types.StemBass, stems.Options{}); !errors.Is(err, types.ErrEmptyBuffer) {
		t.Errorf("empty buffer err = %v, want ErrEmptyBuffer", err)
	}
	if _, err := stems.Separate(&types.SampleBuffer{Channels: [][]float32{{0.1}}}, types.StemBass, stems.Options{}); !errors.Is(err, types.ErrInvalidOptions) {
		t.Errorf("zero sample rate err = %v, want ErrInvalidOptions", err)
	}
}

func TestSeparateAllMatchesSingle(t *testing.T) {
	buf := &types.SampleBuffer{Channels: [][]float32{noise(8192, 3), noise(8192, 4)}, SampleRate: sampleRate}
	all, err := stems.SeparateAll(context.Background(), buf, types.AllStems, stems.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(types.AllStems) {
		t.Fatalf("got %d stems, want %d", len(all), len(types.AllStems))
	}
	for i, stem := range all {
		if stem.Kind != types.AllStems[i] {
			t.Errorf("stem %d kind = %s, want %s", i, stem.Kind, types.AllStems[i])
		}
		single, err := stems.Separate(buf, stem.Kind, stems.Options{})
		if err != nil {
			t.Fatal(err)
		}
		for j := range single.Samples {
			if single.Samples[j] != stem.Samples[j] {
				t.Fatalf("%s sample %d = %v, want %v", stem.Kind, j, stem.Samples[j], single.Samples[j])
			}
		}
		assertBounded(t, stem)
	}
}

func TestSeparateAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	buf := &types.SampleBuffer{Channels: [][]float32{noise(4096, 5)}, SampleRate: sampleRate}
	if _, err := stems.SeparateAll(ctx, buf, []types.StemKind{types.StemVocals}, stems.Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
