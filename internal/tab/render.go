// Package tab 将音符序列渲染为定宽 ASCII 六线谱。
//
// 每根弦输出一行，顺序与定弦表一致；所有行等长，静音或无法映射的位置用 '-' 填充。
package tab

import (
	"math"
	"strconv"
	"strings"

	"tabcraft/internal/instrument"
	"tabcraft/internal/types"
)

const filler = '-'

// Render 按 opts.Layout 选择排版方式
func Render(notes []types.FrameAnalysis, t instrument.Tuning, durationSec float64, opts types.TabOptions) []string {
	if opts.Layout == types.LayoutSegments {
		return RenderSegments(notes, t, durationSec, opts.SegmentDuration)
	}
	return RenderNotes(notes, t, durationSec, opts.Columns)
}

// RenderNotes 逐音符放置：每根弦预先填充 columns 个 '-'，
// 每个检测到的帧都写入列 floor(t/duration·columns)，列号被限制在品位文字能完整放下的范围内。
// 持续发声的音因此占据它覆盖的所有列，后写入的帧覆盖先前的文字。
func RenderNotes(notes []types.FrameAnalysis, t instrument.Tuning, durationSec float64, columns int) []string {
	if columns <= 0 {
		columns = types.DefaultTabOptions().Columns
	}
	grid := make([][]byte, t.Strings())
	for i := range grid {
		grid[i] = []byte(strings.Repeat(string(filler), columns))
	}

	if durationSec > 0 && !math.IsInf(durationSec, 0) {
		for _, n := range notes {
			if math.IsNaN(n.TimeSec) {
				continue
			}
			pos, ok := instrument.MapFrequency(n.FrequencyHz, t)
			if !ok {
				continue
			}

			text := strconv.Itoa(pos.Fret)
			ratio := math.Min(math.Max(n.TimeSec/durationSec, 0), 0.999)
			col := int(math.Floor(ratio * float64(columns)))
			if col+len(text) > columns {
				col = columns - len(text)
			}
			if col < 0 {
				continue
			}
			copy(grid[pos.String][col:], text)
		}
	}

	names := paddedNames(t)
	lines := make([]string, len(grid))
	for i, row := range grid {
		lines[i] = names[i] + "|" + string(row) + "|"
	}
	return lines
}

// paddedNames 将弦名右侧补空格到相同宽度，保证各行等长
func paddedNames(t instrument.Tuning) []string {
	width := 0
	for _, name := range t.StringNames {
		width = max(width, len(name))
	}
	out := make([]string, len(t.StringNames))
	for i, name := range t.StringNames {
		out[i] = name + strings.Repeat(" ", width-len(name))
	}
	return out
}
