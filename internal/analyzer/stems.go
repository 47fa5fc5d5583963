package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"

	"tabcraft/internal/decoder"
	"tabcraft/internal/stems"
	"tabcraft/internal/types"
)

// SeparateFile 生成分轨并写入 outDir/<文件名>.<分轨>.wav，同时输出每个分轨的频谱概况。
// 分轨是滤波器启发式近似，不是模型分离的结果。
func (a *Analyzer) SeparateFile(ctx context.Context, filePath, outDir string, kinds []types.StemKind) ([]types.StemReport, error) {
	audioFile, err := a.decoderRegistry.DecodeFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("解码失败: %w", err)
	}
	defer audioFile.Close()

	buf, err := audioFile.GetBuffer()
	if err != nil {
		return nil, fmt.Errorf("读取音频数据失败: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	var bar *progressbar.ProgressBar
	opts := stems.Options{}
	if !a.config.Quiet && !a.config.JSONOutput {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription("分离分轨"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(50),
		)
		opts.Progress = func(p int) { bar.Set(p) }
	}

	separated, err := stems.SeparateAll(ctx, buf, kinds, opts)
	if err != nil {
		return nil, err
	}
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	reports := make([]types.StemReport, 0, len(separated))
	for _, stem := range separated {
		path := filepath.Join(outDir, fmt.Sprintf("%s.%s.wav", base, stem.Kind))
		if err := decoder.WriteWAVFile(path, stem); err != nil {
			return reports, fmt.Errorf("写入 %s 分轨失败: %w", stem.Kind, err)
		}
		report := types.StemReport{Kind: stem.Kind, Path: path}
		if profile, err := NewSpectrumAnalyzer(stem.SampleRate).Profile(stem.Samples); err == nil {
			report.Spectrum = profile
		}
		reports = append(reports, report)
	}

	a.outputStemReports(filePath, reports)
	return reports, nil
}

func (a *Analyzer) outputStemReports(filePath string, reports []types.StemReport) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.config.Quiet:
		for _, r := range reports {
			fmt.Fprintln(a.out, r.Path)
		}
	case a.config.JSONOutput:
		jsonData, err := json.Marshal(reports)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON序列化失败: %v\n", err)
			return
		}
		fmt.Fprintln(a.out, string(jsonData))
	default:
		fmt.Fprintf(a.out, "\n=== %s ===\n", filepath.Base(filePath))
		for _, r := range reports {
			fmt.Fprintf(a.out, "[%s] %s\n", r.Kind, r.Path)
			if r.Spectrum != nil {
				printProfile(a.out, r.Spectrum)
			}
		}
	}
}
