package decoder

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"tabcraft/internal/types"
)

// WAVDecoder WAV格式解码器
type WAVDecoder struct{}

// WAVFile WAV文件实现
type WAVFile struct {
	decoder    *wav.Decoder
	file       *os.File
	sampleRate int
	bitDepth   int
	channels   int
	duration   time.Duration
	buffer     *types.SampleBuffer
	metadata   types.AudioMetadata
}

// SupportedFormats 返回支持的格式
func (d *WAVDecoder) SupportedFormats() []string {
	return []string{"wav", "wave"}
}

// Decode 解码WAV文件
func (d *WAVDecoder) Decode(filePath string) (types.AudioFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("打开WAV文件失败: %w", err)
	}

	metadata := readWAVMetadata(file)
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("读取WAV文件失败: %w", err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("无效的WAV文件: %s", filePath)
	}

	duration, err := decoder.Duration()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("读取WAV时长失败: %w", err)
	}
	metadata.Duration = duration.String()

	return &WAVFile{
		decoder:    decoder,
		file:       file,
		sampleRate: int(decoder.SampleRate),
		bitDepth:   int(decoder.BitDepth),
		channels:   int(decoder.NumChans),
		duration:   duration,
		metadata:   metadata,
	}, nil
}

// readWAVMetadata 读取 LIST/INFO 块，没有元数据时返回空值
func readWAVMetadata(r io.ReadSeeker) types.AudioMetadata {
	d := wav.NewDecoder(r)
	d.ReadMetadata()
	if d.Metadata == nil {
		return types.AudioMetadata{}
	}
	return types.AudioMetadata{
		Title:  d.Metadata.Title,
		Artist: d.Metadata.Artist,
		Album:  d.Metadata.Product,
		Year:   d.Metadata.CreationDate,
		Genre:  d.Metadata.Genre,
	}
}

// GetFormat 获取格式名称
func (w *WAVFile) GetFormat() string {
	return "WAV"
}

// GetSampleRate 获取采样率
func (w *WAVFile) GetSampleRate() int {
	return w.sampleRate
}

// GetBitDepth 获取位深度
func (w *WAVFile) GetBitDepth() int {
	return w.bitDepth
}

// GetChannels 获取声道数
func (w *WAVFile) GetChannels() int {
	return w.channels
}

// GetDuration 获取时长
func (w *WAVFile) GetDuration() time.Duration {
	return w.duration
}

// GetBuffer 读取全部 PCM 数据并按声道拆分，结果被缓存
func (w *WAVFile) GetBuffer() (*types.SampleBuffer, error) {
	if w.buffer != nil {
		return w.buffer, nil
	}

	buf, err := w.decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("读取WAV采样失败: %w", err)
	}
	if w.bitDepth <= 0 {
		return nil, fmt.Errorf("无效的WAV位深度: %d", w.bitDepth)
	}

	w.buffer = &types.SampleBuffer{
		Channels:   deinterleave(buf.Data, w.channels, w.bitDepth),
		SampleRate: w.sampleRate,
	}
	return w.buffer, nil
}

// GetMetadata 获取元数据
func (w *WAVFile) GetMetadata() types.AudioMetadata {
	return w.metadata
}

// Close 关闭文件
func (w *WAVFile) Close() error {
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// EncodeWAV 将单声道浮点采样写为 16 位 PCM WAV，超出 [-1, 1] 的采样被截断
func EncodeWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: 采样率无效 (%d)", types.ErrInvalidOptions, sampleRate)
	}

	const bitDepth = 16
	enc := wav.NewEncoder(w, sampleRate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	for i, v := range samples {
		switch {
		case v != v:
			v = 0
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		buf.Data[i] = int(v * 32767)
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("写入WAV数据失败: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("写入WAV文件头失败: %w", err)
	}
	return nil
}

// WriteWAVFile 创建文件并写入分轨
func WriteWAVFile(path string, stem *types.StemBuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建WAV文件失败: %w", err)
	}
	if err := EncodeWAV(f, stem.Samples, stem.SampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
