package dsp

import (
	"fmt"
	"math"

	"tabcraft/internal/types"
)

// NoteNames 升号音名，按音级 0..11 排列
var NoteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// FrequencyToMIDI 将频率四舍五入到最近的 MIDI 音符号 (A4 = 440Hz = 69)
func FrequencyToMIDI(freq float64) int {
	return int(math.Round(69 + 12*math.Log2(freq/440)))
}

// PitchClass 返回 MIDI 音符的音级 (0..11)
func PitchClass(midi int) int {
	return ((midi % 12) + 12) % 12
}

// MIDIToNoteName 例如 57 -> "A3"
func MIDIToNoteName(midi int) string {
	octave := int(math.Floor(float64(midi)/12)) - 1
	return fmt.Sprintf("%s%d", NoteNames[PitchClass(midi)], octave)
}

// EstimateKey 统计所有检测到的音符的音级，出现最多的音级作为大调主音。
// 音级由 FrequencyHz 计算，频率为 0 或非有限值的记录视为未检测到并跳过。
// 不推断小调。没有有效音符时返回 ("", false)。
func EstimateKey(notes []types.FrameAnalysis) (string, bool) {
	var (
		counts [12]int
		total  int
	)
	for _, n := range notes {
		f := n.FrequencyHz
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		counts[PitchClass(FrequencyToMIDI(f))]++
		total++
	}
	if total == 0 {
		return "", false
	}
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return NoteNames[best] + " Major", true
}
