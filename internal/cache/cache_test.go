package cache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tabcraft/internal/cache"
	"tabcraft/internal/instrument"
	"tabcraft/internal/types"
)

func newCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(cache.Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func fingerprint() cache.Fingerprint {
	guitar, _ := instrument.Default().Lookup("guitar")
	guitar.OpenFrequencies = append([]float64(nil), guitar.OpenFrequencies...)
	return cache.Fingerprint{
		Instrument: "guitar",
		Tuning:     guitar,
		Analysis:   types.DefaultAnalysisOptions(),
		Tab:        types.DefaultTabOptions(),
	}
}

func sampleAnalysis() *types.Analysis {
	bpm := 120
	key := "A Major"
	return &types.Analysis{
		DurationSec: 2,
		SampleRate:  44100,
		Notes: []types.FrameAnalysis{
			{TimeSec: 0.5, FrequencyHz: 220.1, Amplitude: 0.35, MIDI: 57, Note: "A3"},
		},
		Tablature: types.TablatureResult{
			Instrument: "guitar",
			Lines:      []string{"E|----|", "A|12--|"},
			TempoBPM:   &bpm,
			Key:        &key,
		},
	}
}

func TestCacheGetPut(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)
	key, err := cache.Key("abc", fingerprint())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(ctx, key); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("Get before Put = %v, want ErrMiss", err)
	}

	want := sampleAnalysis()
	if err := c.Put(ctx, key, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DurationSec != want.DurationSec || len(got.Notes) != 1 || got.Notes[0] != want.Notes[0] {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
	if got.Tablature.TempoBPM == nil || *got.Tablature.TempoBPM != 120 {
		t.Errorf("tempo = %v, want 120", got.Tablature.TempoBPM)
	}
	if got.Tablature.Key == nil || *got.Tablature.Key != "A Major" {
		t.Errorf("key = %v, want A Major", got.Tablature.Key)
	}
	if strings.Join(got.Tablature.Lines, "\n") != strings.Join(want.Tablature.Lines, "\n") {
		t.Errorf("lines = %q, want %q", got.Tablature.Lines, want.Tablature.Lines)
	}

	if n, err := c.Len(); err != nil || n != 1 {
		t.Errorf("Len = %d, %v; want 1", n, err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := c.Get(ctx, key); !errors.Is(err, cache.ErrMiss) {
		t.Errorf("Get after Clear = %v, want ErrMiss", err)
	}
}

func TestCachePreservesNilTempoAndKey(t *testing.T) {
	ctx := context.Background()
	c := newCache(t)
	key, _ := cache.Key("silence", fingerprint())
	a := &types.Analysis{DurationSec: 1, SampleRate: 8000, Tablature: types.TablatureResult{Instrument: "guitar"}}
	if err := c.Put(ctx, key, a); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tablature.TempoBPM != nil || got.Tablature.Key != nil {
		t.Errorf("tempo/key = %v/%v, want nil", got.Tablature.TempoBPM, got.Tablature.Key)
	}
}

func TestKeyDependsOnFingerprint(t *testing.T) {
	base := fingerprint()
	k1, _ := cache.Key("abc", base)
	k2, _ := cache.Key("abc", base)
	if string(k1) != string(k2) {
		t.Fatalf("same input produced %q and %q", k1, k2)
	}

	variants := map[string]func(*cache.Fingerprint){
		"instrument": func(f *cache.Fingerprint) { f.Instrument = "bass" },
		"tuning":     func(f *cache.Fingerprint) { f.Tuning.OpenFrequencies[0] = 73.42 },
		"frets":      func(f *cache.Fingerprint) { f.Tuning.FretCount = 22 },
		"stem":       func(f *cache.Fingerprint) { f.Stem = types.StemVocals },
		"threshold":  func(f *cache.Fingerprint) { f.Analysis.AmplitudeThreshold = 0.02 },
		"layout":     func(f *cache.Fingerprint) { f.Tab.Layout = types.LayoutSegments },
	}
	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			fp := fingerprint()
			mutate(&fp)
			k, err := cache.Key("abc", fp)
			if err != nil {
				t.Fatal(err)
			}
			if string(k) == string(k1) {
				t.Errorf("changing %s did not change the key", name)
			}
		})
	}

	other, _ := cache.Key("def", base)
	if string(other) == string(k1) {
		t.Error("different content produced the same key")
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	if err := os.WriteFile(a, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	ha, err := cache.HashFile(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, _ := cache.HashFile(b)
	if ha != hb || len(ha) != 64 {
		t.Errorf("hashes = %q, %q; want equal 64-char hex", ha, hb)
	}
	if _, err := cache.HashFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("HashFile(missing) succeeded")
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := cache.Open(cache.Options{}); err == nil {
		t.Error("Open without dir succeeded")
	}
}

func TestOnDiskPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key, _ := cache.Key("abc", fingerprint())

	c, err := cache.Open(cache.Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, key, sampleAnalysis()); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = cache.Open(cache.Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.Get(ctx, key); err != nil {
		t.Errorf("Get after reopen = %v", err)
	}
}
