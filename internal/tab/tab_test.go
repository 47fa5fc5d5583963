package tab_test

import (
	"math"
	"strings"
	"testing"

	"tabcraft/internal/instrument"
	"tabcraft/internal/tab"
	"tabcraft/internal/types"
)

func guitar(t *testing.T) instrument.Tuning {
	t.Helper()
	g, err := instrument.Default().Lookup("guitar")
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func assertShape(t *testing.T, lines []string, tuning instrument.Tuning) {
	t.Helper()
	if len(lines) != tuning.Strings() {
		t.Fatalf("got %d lines, want %d", len(lines), tuning.Strings())
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, tuning.StringNames[i]) {
			t.Errorf("line %d %q does not start with %q", i, line, tuning.StringNames[i])
		}
		if len(line) == 0 || len(line) != len(lines[0]) {
			t.Errorf("line %d has length %d, want %d", i, len(line), len(lines[0]))
		}
	}
}

func TestRenderShapeForEveryInstrument(t *testing.T) {
	r := instrument.Default()
	notes := []types.FrameAnalysis{
		{TimeSec: 0.1, FrequencyHz: 220, Amplitude: 0.5},
		{TimeSec: 0.9, FrequencyHz: 659.25, Amplitude: 0.4},
		{TimeSec: 1.95, FrequencyHz: 98, Amplitude: 0.3},
	}
	for _, key := range r.Keys() {
		tuning, _ := r.Lookup(key)
		for _, opts := range []types.TabOptions{
			{Layout: types.LayoutNotes, Columns: 32},
			{Layout: types.LayoutSegments, SegmentDuration: 0.125},
		} {
			t.Run(key+"/"+string(opts.Layout), func(t *testing.T) {
				assertShape(t, tab.Render(notes, tuning, 2, opts), tuning)
				assertShape(t, tab.Render(nil, tuning, 2, opts), tuning)
			})
		}
	}
}

func TestRenderNotesPlacesFret(t *testing.T) {
	g := guitar(t)
	notes := []types.FrameAnalysis{{TimeSec: 1, FrequencyHz: 220, Amplitude: 0.5}}
	lines := tab.RenderNotes(notes, g, 2, 16)
	want := "A|--------12------|"
	if lines[1] != want {
		t.Errorf("A line = %q, want %q", lines[1], want)
	}
	for i, line := range lines {
		if i != 1 && strings.Trim(line[2:len(line)-1], "-") != "" {
			t.Errorf("line %d = %q, want only filler", i, line)
		}
	}
}

func TestRenderNotesClampsLastColumn(t *testing.T) {
	g := guitar(t)
	notes := []types.FrameAnalysis{{TimeSec: 5, FrequencyHz: 220, Amplitude: 0.5}}
	lines := tab.RenderNotes(notes, g, 2, 8)
	if want := "A|------12|"; lines[1] != want {
		t.Errorf("A line = %q, want %q", lines[1], want)
	}
}

func TestRenderNotesWritesSustainedFrames(t *testing.T) {
	g := guitar(t)
	var notes []types.FrameAnalysis
	for i := 0; i < 100; i++ {
		notes = append(notes, types.FrameAnalysis{TimeSec: float64(i) * 0.0116, FrequencyHz: 220, Amplitude: 0.5})
	}
	lines := tab.RenderNotes(notes, g, 2, 64)
	assertShape(t, lines, g)

	// 最后一帧 1.1484s 落在第 36 列，"12" 占据第 36、37 列
	body := lines[1][2 : len(lines[1])-1]
	held, rest := body[:38], body[38:]
	if strings.Trim(held, "12") != "" {
		t.Errorf("sustained span %q contains filler, want every column written", held)
	}
	if strings.Trim(rest, "-") != "" {
		t.Errorf("tail %q, want only filler after the note ends", rest)
	}
	for i, line := range lines {
		if i != 1 && strings.Trim(line[2:len(line)-1], "-") != "" {
			t.Errorf("line %d = %q, want only filler", i, line)
		}
	}
}

func TestRenderNotesSkipsNonFiniteInput(t *testing.T) {
	g := guitar(t)
	notes := []types.FrameAnalysis{
		{TimeSec: math.NaN(), FrequencyHz: 220},
		{TimeSec: math.Inf(1), FrequencyHz: 220},
		{TimeSec: 0.5, FrequencyHz: math.Inf(1)},
	}
	lines := tab.RenderNotes(notes, g, 2, 8)
	assertShape(t, lines, g)
	// +Inf 时间戳被限制到最后一列
	if want := "A|------12|"; lines[1] != want {
		t.Errorf("A line = %q, want %q", lines[1], want)
	}
	for _, line := range tab.RenderNotes(notes, g, math.Inf(1), 8) {
		if strings.Contains(line, "12") {
			t.Errorf("line %q, want no notes for infinite duration", line)
		}
	}
}

func TestRenderNotesZeroDuration(t *testing.T) {
	g := guitar(t)
	lines := tab.RenderNotes([]types.FrameAnalysis{{TimeSec: 0, FrequencyHz: 220}}, g, 0, 8)
	for i, line := range lines {
		if strings.Contains(line, "12") {
			t.Errorf("line %d = %q, want no notes for zero duration", i, line)
		}
	}
}

func TestRenderSegments(t *testing.T) {
	g := guitar(t)
	notes := []types.FrameAnalysis{
		{TimeSec: 0.00, FrequencyHz: 110, Amplitude: 0.2},
		{TimeSec: 0.05, FrequencyHz: 220, Amplitude: 0.6}, // 本段振幅最大
		// 0.125-0.25 静音
		{TimeSec: 0.30, FrequencyHz: 82.41, Amplitude: 0.3},
		{TimeSec: 0.40, FrequencyHz: 30, Amplitude: 0.9}, // 无法映射
	}
	lines := tab.RenderSegments(notes, g, 0.5, 0.125)
	want := []string{
		"E|---------0-----|",
		"A|--12-----------|",
		"D|---------------|",
		"G|---------------|",
		"B|---------------|",
		"E|---------------|",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestPaddedStringNames(t *testing.T) {
	tuning := instrument.Tuning{
		Key:             "drop",
		StringNames:     []string{"Eb", "A"},
		OpenFrequencies: []float64{77.78, 110},
		FretCount:       20,
	}
	lines := tab.RenderNotes(nil, tuning, 1, 4)
	if lines[0] != "Eb|----|" || lines[1] != "A |----|" {
		t.Errorf("lines = %q", lines)
	}
}

func TestRenderSegmentsBoundsTimestamps(t *testing.T) {
	g := guitar(t)
	notes := []types.FrameAnalysis{
		{TimeSec: math.Inf(1), FrequencyHz: 220, Amplitude: 0.9},
		{TimeSec: math.Inf(-1), FrequencyHz: 220, Amplitude: 0.9},
		{TimeSec: math.NaN(), FrequencyHz: 220, Amplitude: 0.9},
		{TimeSec: 1e300, FrequencyHz: 220, Amplitude: 0.9},
		{TimeSec: 0.1, FrequencyHz: 82.41, Amplitude: 0.5},
		{TimeSec: 0.2, FrequencyHz: 30, Amplitude: 0.1},
	}

	// 时长已知：超出时长的帧被丢弃，只剩 2 段
	lines := tab.RenderSegments(notes, g, 0.25, 0.125)
	assertShape(t, lines, g)
	if want := "E|--0----|"; lines[0] != want {
		t.Errorf("E line = %q, want %q", lines[0], want)
	}
	if strings.Contains(lines[1], "12") {
		t.Errorf("A line = %q, want out-of-range frames dropped", lines[1])
	}

	// 时长未知：段数有上限
	lines = tab.RenderSegments(notes, g, 0, 0.125)
	assertShape(t, lines, g)
	if want := "E|--0----|"; lines[0] != want {
		t.Errorf("E line = %q, want %q", lines[0], want)
	}

	// 极大的时长不会溢出段数上限
	assertShape(t, tab.RenderSegments(notes, g, 1e300, 0.125), g)
	assertShape(t, tab.RenderSegments(notes, g, math.Inf(1), 0.125), g)
}

func TestRenderSegmentsFrameAtEnd(t *testing.T) {
	g := guitar(t)
	notes := []types.FrameAnalysis{{TimeSec: 0.25, FrequencyHz: 220, Amplitude: 0.5}}
	lines := tab.RenderSegments(notes, g, 0.25, 0.125)
	if want := "A|-----12--|"; lines[1] != want {
		t.Errorf("A line = %q, want %q", lines[1], want)
	}
}
