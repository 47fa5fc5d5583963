// Package decoder 把音频文件解码为按声道分离的浮点采样，并负责写出分轨 WAV。
package decoder

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"tabcraft/internal/types"
)

// ErrUnsupportedFormat 不支持的音频格式
var ErrUnsupportedFormat = errors.New("不支持的音频格式")

// AudioDecoder 音频解码器接口
type AudioDecoder interface {
	Decode(filePath string) (types.AudioFile, error)
	SupportedFormats() []string
}

// DecoderRegistry 解码器注册表
type DecoderRegistry struct {
	decoders map[string]AudioDecoder
}

// NewDecoderRegistry 创建新的解码器注册表
func NewDecoderRegistry() *DecoderRegistry {
	registry := &DecoderRegistry{
		decoders: make(map[string]AudioDecoder),
	}

	registry.Register(&WAVDecoder{})
	registry.Register(&FLACDecoder{})

	return registry
}

// Register 注册解码器
func (r *DecoderRegistry) Register(decoder AudioDecoder) {
	for _, format := range decoder.SupportedFormats() {
		r.decoders[strings.ToLower(format)] = decoder
	}
}

// Formats 返回已注册的扩展名（不含点号），按字母排序
func (r *DecoderRegistry) Formats() []string {
	formats := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		formats = append(formats, ext)
	}
	slices.Sort(formats)
	return formats
}

// Supports 判断文件扩展名是否有对应的解码器
func (r *DecoderRegistry) Supports(filePath string) bool {
	_, err := r.GetDecoder(filePath)
	return err == nil
}

// GetDecoder 根据文件扩展名获取解码器
func (r *DecoderRegistry) GetDecoder(filePath string) (AudioDecoder, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		return nil, fmt.Errorf("%w: 无法确定文件格式: %s", ErrUnsupportedFormat, filePath)
	}

	// 移除点号
	ext = ext[1:]

	decoder, exists := r.decoders[ext]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	return decoder, nil
}

// DecodeFile 解码音频文件
func (r *DecoderRegistry) DecodeFile(filePath string) (types.AudioFile, error) {
	decoder, err := r.GetDecoder(filePath)
	if err != nil {
		return nil, err
	}

	return decoder.Decode(filePath)
}

// deinterleave 将交错的整数采样拆分为各声道的 [-1, 1) 浮点采样
func deinterleave(data []int, channels, bitDepth int) [][]float32 {
	if channels <= 0 {
		return nil
	}
	frames := len(data) / channels
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}

	// 8 位 PCM 为无符号
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	scale := 1 / float32(int64(1)<<uint(bitDepth-1))

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out[ch][i] = float32(data[i*channels+ch]-offset) * scale
		}
	}
	return out
}
