// Package dsp 实现纯函数形式的信号处理算法：分帧、RMS、自相关音高检测、
// 能量包络节拍估计、调性估计，以及分轨近似所需的一阶滤波器和动态处理。
//
// 所有函数只读输入切片，需要修改时在内部复制。
package dsp

import (
	"fmt"
	"iter"
	"math"
)

// ValidateFraming 检查分帧参数，保证循环能够终止且帧之间有意义地重叠
func ValidateFraming(frameSize, hopSize int) error {
	if frameSize <= 0 {
		return fmt.Errorf("帧长必须大于 0 (当前 %d)", frameSize)
	}
	if hopSize <= 0 || hopSize > frameSize {
		return fmt.Errorf("帧移必须在 (0, %d] 范围内 (当前 %d)", frameSize, hopSize)
	}
	return nil
}

// Frames 依次产出起始位置为 0, hop, 2*hop... 的帧视图，
// 条件为 offset+frameSize < len(samples)。产出的切片与 samples 共享底层数组。
// 参数非法时不产出任何帧，调用方应先调用 ValidateFraming。
func Frames(samples []float32, frameSize, hopSize int) iter.Seq2[int, []float32] {
	return func(yield func(int, []float32) bool) {
		if ValidateFraming(frameSize, hopSize) != nil {
			return
		}
		for start := 0; start+frameSize < len(samples); start += hopSize {
			if !yield(start, samples[start:start+frameSize:start+frameSize]) {
				return
			}
		}
	}
}

// FrameCount 返回 Frames 将产出的帧数
func FrameCount(length, frameSize, hopSize int) int {
	if ValidateFraming(frameSize, hopSize) != nil || length <= frameSize {
		return 0
	}
	return (length-frameSize-1)/hopSize + 1
}

// RMS 计算均方根能量，空输入返回 0
func RMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		x := float64(v)
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(frame)))
}
