package instrument

import "math"

const (
	// tieCents 误差相差不超过此值的候选视为同一音高。
	// 定弦表中的空弦频率只保留两位小数，同一音在不同弦上的误差最多相差约 0.25 音分。
	tieCents = 0.3

	// firstOctave 优先使用的最高品位
	firstOctave = 12
)

// Position 指板位置
type Position struct {
	String int     // 弦序号，与定弦表顺序一致
	Fret   int     // 品位，0 表示空弦
	Cents  float64 // 与该品位标准音高的偏差（音分）
}

// MapFrequency 将频率映射到调音误差最小的 (弦, 品)。
//
// 每根弦计算 fret = round(12·log2(f/f0))，只接受 [0, FretCount] 内的品位。
// 误差相差在 tieCents 内的候选按可演奏性排序：空弦优先，其次是 12 品以内，
// 再其次是序号较小的弦，最后是较低的品位。没有合法候选时返回 false。
func MapFrequency(freq float64, t Tuning) (Position, bool) {
	if freq <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return Position{}, false
	}

	var candidates []Position
	bestErr := math.Inf(1)
	for s, open := range t.OpenFrequencies {
		if open <= 0 {
			continue
		}
		fret := int(math.Round(12 * math.Log2(freq/open)))
		if fret < 0 || fret > t.FretCount {
			continue
		}
		expected := open * math.Pow(2, float64(fret)/12)
		cents := 1200 * math.Log2(freq/expected)
		candidates = append(candidates, Position{String: s, Fret: fret, Cents: cents})
		bestErr = min(bestErr, math.Abs(cents))
	}
	if len(candidates) == 0 {
		return Position{}, false
	}

	var best Position
	found := false
	for _, c := range candidates {
		if math.Abs(c.Cents)-bestErr > tieCents {
			continue
		}
		if !found || morePlayable(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func morePlayable(a, b Position) bool {
	if (a.Fret == 0) != (b.Fret == 0) {
		return a.Fret == 0
	}
	aLow, bLow := a.Fret <= firstOctave, b.Fret <= firstOctave
	if aLow != bLow {
		return aLow
	}
	if a.String != b.String {
		return a.String < b.String
	}
	return a.Fret < b.Fret
}
