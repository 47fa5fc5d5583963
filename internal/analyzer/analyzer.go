package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"

	"tabcraft/internal/cache"
	"tabcraft/internal/decoder"
	"tabcraft/internal/engine"
	"tabcraft/internal/types"
)

// 结果状态
const (
	StatusOK     = "OK"
	StatusSilent = "SILENT"
	StatusError  = "ERROR"
)

// Analyzer 音频分析器
type Analyzer struct {
	config          *types.AnalyzerConfig
	decoderRegistry *decoder.DecoderRegistry
	engine          *engine.Engine
	cache           *cache.Cache
	out             io.Writer
	mu              sync.Mutex
}

// NewAnalyzer 创建新的分析器，cache 为空表示不使用缓存。
// 只做分轨导出时 eng 可以为空。
func NewAnalyzer(config *types.AnalyzerConfig, eng *engine.Engine, c *cache.Cache) *Analyzer {
	return &Analyzer{
		config:          config,
		decoderRegistry: decoder.NewDecoderRegistry(),
		engine:          eng,
		cache:           c,
		out:             os.Stdout,
	}
}

// WithOutput 设置报告输出位置
func (a *Analyzer) WithOutput(w io.Writer) *Analyzer {
	a.out = w
	return a
}

// CollectAudioFiles 递归收集路径下所有可解码的音频文件
func (a *Analyzer) CollectAudioFiles(path string) ([]string, error) {
	var files []string
	err := filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if a.decoderRegistry.Supports(filePath) {
			files = append(files, filePath)
		}
		return nil
	})
	return files, err
}

// AnalyzeFiles 分析多个音频文件，单个文件失败不会中断其他文件
func (a *Analyzer) AnalyzeFiles(ctx context.Context, filePaths []string) ([]*types.AnalysisResult, error) {
	// 创建进度条
	var bar *progressbar.ProgressBar
	if !a.config.Quiet && !a.config.JSONOutput {
		bar = progressbar.NewOptions(len(filePaths),
			progressbar.OptionSetDescription("分析音频文件"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(50),
			progressbar.OptionShowIts(),
		)
	}

	concurrency := max(1, a.config.Concurrency)
	jobs := make(chan string, len(filePaths))
	results := make(chan *types.AnalysisResult, len(filePaths))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for filePath := range jobs {
				results <- a.analyzeFile(ctx, filePath)
				if bar != nil {
					bar.Add(1)
				}
			}
		}()
	}

	go func() {
		for _, filePath := range filePaths {
			jobs <- filePath
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var allResults []*types.AnalysisResult
	for result := range results {
		allResults = append(allResults, result)
		a.outputResult(result)
	}

	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	if !a.config.Quiet && !a.config.JSONOutput {
		a.printSummary(allResults)
	}

	return allResults, ctx.Err()
}

// analyzeFile 分析单个音频文件
func (a *Analyzer) analyzeFile(ctx context.Context, filePath string) *types.AnalysisResult {
	result := &types.AnalysisResult{
		FilePath: filePath,
		Status:   StatusError,
		Stem:     a.config.Stem,
	}

	audioFile, err := a.decoderRegistry.DecodeFile(filePath)
	if err != nil {
		result.Error = fmt.Sprintf("解码失败: %v", err)
		return result
	}
	defer audioFile.Close()

	result.Format = audioFile.GetFormat()
	result.Metadata = audioFile.GetMetadata()

	key := a.cacheKey(filePath)
	if key != nil {
		cached, err := a.cache.Get(ctx, key)
		if err == nil {
			result.Analysis = cached
			result.Cached = true
			result.Status = statusOf(cached)
			return result
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("读取缓存失败", "file", filePath, "error", err)
		}
	}

	buf, err := audioFile.GetBuffer()
	if err != nil {
		result.Error = fmt.Sprintf("读取音频数据失败: %v", err)
		return result
	}

	if profile, err := NewSpectrumAnalyzer(buf.SampleRate).Profile(buf.Mono()); err == nil {
		result.Spectrum = profile
	} else {
		slog.Debug("跳过频谱分析", "file", filePath, "error", err)
	}

	res, err := a.engine.Analyze(ctx, engine.Request{
		Name:       filePath,
		Buffer:     buf,
		Instrument: a.config.Instrument,
		Stem:       a.config.Stem,
		Options:    a.config.Analysis,
		Tab:        a.config.Tab,
	})
	if err != nil {
		result.Error = fmt.Sprintf("分析失败: %v", err)
		return result
	}

	result.Analysis = res.Analysis
	result.Status = statusOf(res.Analysis)

	if key != nil {
		if err := a.cache.Put(ctx, key, res.Analysis); err != nil {
			slog.Warn("写入缓存失败", "file", filePath, "error", err)
		}
	}
	return result
}

// cacheKey 缓存未启用、乐器无法解析或无法计算哈希时返回 nil
func (a *Analyzer) cacheKey(filePath string) []byte {
	if a.cache == nil {
		return nil
	}
	tuning, err := a.engine.Tuning(a.config.Instrument)
	if err != nil {
		return nil
	}
	hash, err := cache.HashFile(filePath)
	if err != nil {
		slog.Warn("计算文件哈希失败", "file", filePath, "error", err)
		return nil
	}
	key, err := cache.Key(hash, cache.Fingerprint{
		Instrument: a.config.Instrument,
		Tuning:     tuning,
		Stem:       a.config.Stem,
		Analysis:   a.config.Analysis,
		Tab:        a.config.Tab,
	})
	if err != nil {
		slog.Warn("生成缓存键失败", "file", filePath, "error", err)
		return nil
	}
	return key
}

func statusOf(a *types.Analysis) string {
	if len(a.Notes) == 0 {
		return StatusSilent
	}
	return StatusOK
}

// outputResult 输出单个分析结果
func (a *Analyzer) outputResult(result *types.AnalysisResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// 静默模式只输出六线谱
	if a.config.Quiet {
		if result.Analysis != nil {
			for _, line := range result.Analysis.Tablature.Lines {
				fmt.Fprintln(a.out, line)
			}
		}
		return
	}

	// JSON输出格式
	if a.config.JSONOutput {
		jsonData, err := json.Marshal(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON序列化失败: %v\n", err)
			return
		}
		fmt.Fprintln(a.out, string(jsonData))
		return
	}

	a.printDetailedResult(result)
}

// printDetailedResult 打印详细结果
func (a *Analyzer) printDetailedResult(result *types.AnalysisResult) {
	w := a.out
	fmt.Fprintf(w, "\n=== %s ===\n", filepath.Base(result.FilePath))
	fmt.Fprintf(w, "路径: %s\n", result.FilePath)
	fmt.Fprintf(w, "格式: %s\n", result.Format)
	fmt.Fprintf(w, "状态: %s\n", result.Status)

	if result.Error != "" {
		fmt.Fprintf(w, "错误: %s\n", result.Error)
		return
	}

	if result.Metadata.Title != "" {
		fmt.Fprintf(w, "标题: %s\n", result.Metadata.Title)
	}
	if result.Metadata.Artist != "" {
		fmt.Fprintf(w, "艺术家: %s\n", result.Metadata.Artist)
	}
	if result.Metadata.Album != "" {
		fmt.Fprintf(w, "专辑: %s\n", result.Metadata.Album)
	}
	if result.Stem != "" {
		fmt.Fprintf(w, "分轨: %s\n", result.Stem)
	}
	if result.Cached {
		fmt.Fprintln(w, "来源: 缓存")
	}

	an := result.Analysis
	tabResult := an.Tablature
	fmt.Fprintf(w, "采样率: %d Hz\n", an.SampleRate)
	fmt.Fprintf(w, "时长: %.2f 秒\n", an.DurationSec)
	fmt.Fprintf(w, "乐器: %s\n", tabResult.Instrument)
	fmt.Fprintf(w, "音符帧数: %d\n", len(an.Notes))
	if tabResult.TempoBPM != nil {
		fmt.Fprintf(w, "速度: %d BPM\n", *tabResult.TempoBPM)
	} else {
		fmt.Fprintln(w, "速度: 未检测到")
	}
	if tabResult.Key != nil {
		fmt.Fprintf(w, "调性: %s\n", *tabResult.Key)
	} else {
		fmt.Fprintln(w, "调性: 未检测到")
	}
	if p := result.Spectrum; p != nil {
		printProfile(w, p)
	}

	fmt.Fprintln(w)
	for _, line := range tabResult.Lines {
		fmt.Fprintln(w, line)
	}
}

func printProfile(w io.Writer, p *types.SpectralProfile) {
	fmt.Fprintf(w, "主频: %.0f Hz, 质心: %.0f Hz, 最高有效频率: %.0f Hz\n",
		p.DominantHz, p.CentroidHz, p.MaxFrequency)
	fmt.Fprintf(w, "频段能量: 低 %.1f%% / 中 %.1f%% / 高 %.1f%%\n",
		p.Low*100, p.Mid*100, p.High*100)
}

// printSummary 打印统计摘要
func (a *Analyzer) printSummary(results []*types.AnalysisResult) {
	total := len(results)
	ok, silent, failed, cached := 0, 0, 0, 0

	for _, result := range results {
		switch result.Status {
		case StatusOK:
			ok++
		case StatusSilent:
			silent++
		case StatusError:
			failed++
		}
		if result.Cached {
			cached++
		}
	}

	w := a.out
	fmt.Fprintf(w, "\n=== 分析统计 ===\n")
	fmt.Fprintf(w, "总文件数: %d\n", total)
	fmt.Fprintf(w, "已生成六线谱: %d\n", ok)
	fmt.Fprintf(w, "未检测到音符: %d\n", silent)
	if cached > 0 {
		fmt.Fprintf(w, "命中缓存: %d\n", cached)
	}
	if failed > 0 {
		fmt.Fprintf(w, "错误文件: %d\n", failed)
	}
}
