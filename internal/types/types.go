package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidOptions 分析参数无效
	ErrInvalidOptions = errors.New("分析参数无效")
	// ErrUnknownStem 不支持的分轨类型
	ErrUnknownStem = errors.New("不支持的分轨类型")
	// ErrEmptyBuffer 音频缓冲区为空
	ErrEmptyBuffer = errors.New("音频缓冲区为空")
)

// AnalyzerConfig 分析器配置
type AnalyzerConfig struct {
	Instrument  string          // 乐器键名
	Stem        StemKind        // 先分离出的分轨，为空表示直接分析原始音频
	Concurrency int             // 并发数
	Quiet       bool            // 静默模式
	JSONOutput  bool            // JSON输出格式
	CacheDir    string          // 结果缓存目录，为空表示禁用缓存
	Analysis    AnalysisOptions // 音高检测参数
	Tab         TabOptions      // 六线谱渲染参数
}

// AnalysisOptions 音高检测参数
type AnalysisOptions struct {
	MinFreq            float64 `yaml:"min_freq" json:"minFreq" msgpack:"min_freq"`
	MaxFreq            float64 `yaml:"max_freq" json:"maxFreq" msgpack:"max_freq"`
	AmplitudeThreshold float64 `yaml:"amplitude_threshold" json:"amplitudeThreshold" msgpack:"amplitude_threshold"`
	FrameSize          int     `yaml:"frame_size" json:"frameSize" msgpack:"frame_size"`
	HopSize            int     `yaml:"hop_size" json:"hopSize" msgpack:"hop_size"`
}

// DefaultAnalysisOptions 返回默认的音高检测参数
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		MinFreq:            70,
		MaxFreq:            1500,
		AmplitudeThreshold: 0.01,
		FrameSize:          2048,
		HopSize:            512,
	}
}

// Validate 在处理开始前检查参数，所有问题合并返回
func (o AnalysisOptions) Validate() error {
	var errs []error
	if o.MinFreq <= 0 {
		errs = append(errs, fmt.Errorf("min_freq 必须大于 0 (当前 %g)", o.MinFreq))
	}
	if o.MaxFreq <= o.MinFreq {
		errs = append(errs, fmt.Errorf("max_freq (%g) 必须大于 min_freq (%g)", o.MaxFreq, o.MinFreq))
	}
	if o.AmplitudeThreshold < 0 {
		errs = append(errs, fmt.Errorf("amplitude_threshold 不能为负数 (当前 %g)", o.AmplitudeThreshold))
	}
	if o.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("frame_size 必须大于 0 (当前 %d)", o.FrameSize))
	}
	if o.HopSize <= 0 || o.HopSize > o.FrameSize {
		errs = append(errs, fmt.Errorf("hop_size 必须在 (0, frame_size] 范围内 (当前 %d)", o.HopSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
	}
	return nil
}

// TabLayout 六线谱排版方式
type TabLayout string

const (
	// LayoutNotes 按音符时间戳放置到固定列
	LayoutNotes TabLayout = "notes"
	// LayoutSegments 按固定时长分段，每段一列
	LayoutSegments TabLayout = "segments"
)

// TabOptions 六线谱渲染参数
type TabOptions struct {
	Layout          TabLayout `yaml:"layout" json:"layout" msgpack:"layout"`
	Columns         int       `yaml:"columns" json:"columns" msgpack:"columns"`
	SegmentDuration float64   `yaml:"segment_duration" json:"segmentDuration" msgpack:"segment_duration"`
}

// DefaultTabOptions 返回默认的渲染参数
func DefaultTabOptions() TabOptions {
	return TabOptions{
		Layout:          LayoutNotes,
		Columns:         64,
		SegmentDuration: 0.125,
	}
}

// Validate 检查渲染参数
func (o TabOptions) Validate() error {
	var errs []error
	switch o.Layout {
	case LayoutNotes:
		if o.Columns <= 0 {
			errs = append(errs, fmt.Errorf("columns 必须大于 0 (当前 %d)", o.Columns))
		}
	case LayoutSegments:
		if o.SegmentDuration <= 0 {
			errs = append(errs, fmt.Errorf("segment_duration 必须大于 0 (当前 %g)", o.SegmentDuration))
		}
	default:
		errs = append(errs, fmt.Errorf("未知的排版方式 %q，可选: notes, segments", o.Layout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
	}
	return nil
}

// SampleBuffer 解码后的多声道浮点采样
// 核心流程只读取 Channels，不会修改原始数据
type SampleBuffer struct {
	Channels   [][]float32
	SampleRate int
}

// Len 返回每个声道的采样数
func (b *SampleBuffer) Len() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration 返回时长（秒）
func (b *SampleBuffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Len()) / float64(b.SampleRate)
}

// Mono 将所有声道平均混合为单声道
// 单声道缓冲区直接返回原声道切片，调用方不得修改
func (b *SampleBuffer) Mono() []float32 {
	switch len(b.Channels) {
	case 0:
		return nil
	case 1:
		return b.Channels[0]
	}
	n := b.Len()
	mixed := make([]float32, n)
	scale := 1 / float32(len(b.Channels))
	for _, ch := range b.Channels {
		for i := 0; i < n && i < len(ch); i++ {
			mixed[i] += ch[i] * scale
		}
	}
	return mixed
}

// FrameAnalysis 单帧音高检测结果
type FrameAnalysis struct {
	TimeSec     float64 `json:"timeSec" msgpack:"t"`
	FrequencyHz float64 `json:"frequencyHz" msgpack:"f"`
	Amplitude   float64 `json:"amplitude" msgpack:"a"`
	MIDI        int     `json:"midi" msgpack:"m"`
	Note        string  `json:"note" msgpack:"n"`
}

// TablatureResult 六线谱结果
type TablatureResult struct {
	Instrument string   `json:"instrument" msgpack:"instrument"`
	Lines      []string `json:"lines" msgpack:"lines"`
	TempoBPM   *int     `json:"tempoBpm" msgpack:"tempo_bpm"`
	Key        *string  `json:"key" msgpack:"key"`
}

// StemKind 分轨类型
type StemKind string

const (
	StemVocals StemKind = "vocals"
	StemDrums  StemKind = "drums"
	StemBass   StemKind = "bass"
	StemOther  StemKind = "other"
)

// AllStems 按固定顺序列出所有分轨
var AllStems = []StemKind{StemVocals, StemDrums, StemBass, StemOther}

// ParseStemKind 解析分轨名称
func ParseStemKind(s string) (StemKind, error) {
	for _, k := range AllStems {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStem, s)
}

// StemBuffer 启发式分轨输出（单声道）
type StemBuffer struct {
	Kind       StemKind
	Samples    []float32
	SampleRate int
}

// Buffer 将分轨包装为 SampleBuffer，以便重新送入分析流程
func (s *StemBuffer) Buffer() *SampleBuffer {
	return &SampleBuffer{Channels: [][]float32{s.Samples}, SampleRate: s.SampleRate}
}

// Analysis 单个音频的完整分析输出
type Analysis struct {
	DurationSec float64         `json:"durationSec" msgpack:"duration_sec"`
	SampleRate  int             `json:"sampleRate" msgpack:"sample_rate"`
	Notes       []FrameAnalysis `json:"notes" msgpack:"notes"`
	Tablature   TablatureResult `json:"tablature" msgpack:"tablature"`
}

// AudioMetadata 音频元数据
type AudioMetadata struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Year     string `json:"year,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// SpectralProfile 频谱概况
type SpectralProfile struct {
	DominantHz   float64 `json:"dominantHz"`   // 能量最大的频率
	CentroidHz   float64 `json:"centroidHz"`   // 频谱质心
	MaxFrequency float64 `json:"maxFrequency"` // 最高有效频率
	Low          float64 `json:"low"`          // 250Hz 以下能量占比
	Mid          float64 `json:"mid"`          // 250Hz-4kHz 能量占比
	High         float64 `json:"high"`         // 4kHz 以上能量占比
}

// AnalysisResult 单个文件的分析结果
type AnalysisResult struct {
	FilePath string           `json:"filePath"`
	Format   string           `json:"format"`
	Metadata AudioMetadata    `json:"metadata"`
	Status   string           `json:"status"` // "OK", "SILENT", "ERROR"
	Stem     StemKind         `json:"stem,omitempty"`
	Cached   bool             `json:"cached"`
	Spectrum *SpectralProfile `json:"spectrum,omitempty"`
	Analysis *Analysis        `json:"analysis,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// StemReport 分轨导出结果
type StemReport struct {
	Kind     StemKind         `json:"kind"`
	Path     string           `json:"path"`
	Spectrum *SpectralProfile `json:"spectrum,omitempty"`
}

// AudioFile 音频文件接口
type AudioFile interface {
	GetFormat() string
	GetSampleRate() int
	GetBitDepth() int
	GetChannels() int
	GetDuration() time.Duration
	GetBuffer() (*SampleBuffer, error)
	GetMetadata() AudioMetadata
	Close() error
}
