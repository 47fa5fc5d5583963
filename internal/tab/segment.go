package tab

import (
	"math"
	"strconv"
	"strings"

	"tabcraft/internal/instrument"
	"tabcraft/internal/types"
)

const (
	columnSeparator = "--"

	// maxSegments 时长未知时允许的最大段数
	maxSegments = 1 << 16
)

// RenderSegments 按固定时长分段：每段取振幅最大的帧作为代表音，
// 映射到 (弦, 品) 后为每根弦追加一列，未选中的弦和空段写 '-'。
// 每列宽度取该列最长的文字，列之间以 "--" 连接，整行形如 "E|--0--3--|"。
//
// 时间戳为负数或非有限值的帧被忽略。durationSec > 0 时超出音频时长的帧被忽略，
// 否则最多输出 maxSegments 段。
func RenderSegments(notes []types.FrameAnalysis, t instrument.Tuning, durationSec, segmentSec float64) []string {
	if segmentSec <= 0 || math.IsNaN(segmentSec) || math.IsInf(segmentSec, 0) {
		segmentSec = types.DefaultTabOptions().SegmentDuration
	}
	limit := maxSegments
	if durationSec > 0 {
		if n := math.Ceil(durationSec / segmentSec); n < float64(limit) {
			limit = int(n)
		}
	}

	var segments []*types.FrameAnalysis
	for i := range notes {
		n := &notes[i]
		if n.TimeSec < 0 || math.IsNaN(n.TimeSec) || math.IsInf(n.TimeSec, 0) {
			continue
		}
		if durationSec > 0 && n.TimeSec > durationSec {
			continue
		}
		pos := n.TimeSec / segmentSec
		if pos >= float64(limit) {
			if durationSec <= 0 {
				continue
			}
			// 恰好落在结尾的帧归入最后一段
			pos = float64(limit - 1)
		}
		idx := int(pos)
		for len(segments) <= idx {
			segments = append(segments, nil)
		}
		if segments[idx] == nil || n.Amplitude > segments[idx].Amplitude {
			segments[idx] = n
		}
	}

	cells := make([][]string, t.Strings())
	for _, seg := range segments {
		var (
			pos    instrument.Position
			mapped bool
		)
		if seg != nil {
			pos, mapped = instrument.MapFrequency(seg.FrequencyHz, t)
		}
		text := ""
		if mapped {
			text = strconv.Itoa(pos.Fret)
		}
		width := max(1, len(text))
		for s := range cells {
			cell := strings.Repeat(string(filler), width)
			if mapped && s == pos.String {
				cell = text
			}
			cells[s] = append(cells[s], cell)
		}
	}

	names := paddedNames(t)
	lines := make([]string, len(cells))
	for i, row := range cells {
		lines[i] = names[i] + "|" + columnSeparator + strings.Join(row, columnSeparator) + columnSeparator + "|"
	}
	return lines
}
