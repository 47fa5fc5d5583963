package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"tabcraft/internal/analyzer"
	"tabcraft/internal/cache"
	"tabcraft/internal/config"
	"tabcraft/internal/engine"
	"tabcraft/internal/types"
)

var (
	configPath  string
	instrument  string
	stemName    string
	quiet       bool
	jsonOutput  bool
	verbose     bool
	noCache     bool
	cacheDir    string
	concurrency int
	minFreq     float64
	maxFreq     float64
	threshold   float64
	frameSize   int
	hopSize     int
	columns     int
	layout      string
	segment     float64
	version     = "0.3.0"
)

var rootCmd = &cobra.Command{
	Use:   "tabcraft [path]",
	Short: "把音频转换为吉他等弦乐器的六线谱",
	Long: `TabCraft 是一个CLI工具，对 WAV / FLAC 音频逐帧检测音高，
估计速度和调性，并把音符映射到所选乐器的指板上，输出 ASCII 六线谱。

可以先用 --stem 以滤波器启发式近似分离出人声、鼓、贝斯或其他声部，再分析该分轨。
分轨只是粗略近似，不是模型分离的结果。`,
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: setup,
	RunE:              runAnalysis,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute 执行根命令
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML 配置文件路径")
	pf.BoolVarP(&quiet, "quiet", "q", false, "静默模式，仅输出六线谱")
	pf.BoolVar(&jsonOutput, "json", false, "以JSON格式输出结果")
	pf.BoolVar(&verbose, "verbose", false, "输出调试日志")
	pf.StringVar(&cacheDir, "cache-dir", config.DefaultCacheDir(), "结果缓存目录")
	pf.IntVarP(&concurrency, "concurrency", "j", runtime.NumCPU(), "并发处理文件数量")

	f := rootCmd.Flags()
	f.StringVarP(&instrument, "instrument", "i", "guitar", "乐器 (guitar, bass, ukulele ...)")
	f.StringVar(&stemName, "stem", "", "先分离该分轨再分析 (vocals, drums, bass, other)")
	f.BoolVar(&noCache, "no-cache", false, "不读写结果缓存")
	f.Float64Var(&minFreq, "min-freq", 70, "检测的最低频率 (Hz)")
	f.Float64Var(&maxFreq, "max-freq", 1500, "检测的最高频率 (Hz)")
	f.Float64Var(&threshold, "threshold", 0.01, "帧 RMS 低于此值时跳过")
	f.IntVar(&frameSize, "frame-size", 2048, "分析帧长（采样）")
	f.IntVar(&hopSize, "hop-size", 512, "帧移（采样）")
	f.IntVar(&columns, "columns", 64, "六线谱列数 (layout=notes)")
	f.StringVar(&layout, "layout", "notes", "排版方式 (notes, segments)")
	f.Float64Var(&segment, "segment", 0.125, "每段时长，秒 (layout=segments)")

	rootCmd.SetVersionTemplate("tabcraft version {{.Version}}\n")
	rootCmd.Version = version

	rootCmd.AddCommand(stemsCmd, instrumentsCmd, cacheCmd)
}

// settings 合并配置文件后的运行参数
var settings *config.Config

// setup 读取配置文件并初始化日志，命令行显式设置的参数覆盖文件中的值
func setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	override := func(name string, apply func()) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			apply()
		}
	}
	override("instrument", func() { cfg.Instrument = instrument })
	override("cache-dir", func() { cfg.Cache.Dir = cacheDir })
	override("no-cache", func() { cfg.Cache.Enabled = !noCache })
	override("min-freq", func() { cfg.Analysis.MinFreq = minFreq })
	override("max-freq", func() { cfg.Analysis.MaxFreq = maxFreq })
	override("threshold", func() { cfg.Analysis.AmplitudeThreshold = threshold })
	override("frame-size", func() { cfg.Analysis.FrameSize = frameSize })
	override("hop-size", func() { cfg.Analysis.HopSize = hopSize })
	override("columns", func() { cfg.Tab.Columns = columns })
	override("layout", func() { cfg.Tab.Layout = types.TabLayout(layout) })
	override("segment", func() { cfg.Tab.SegmentDuration = segment })
	override("verbose", func() { cfg.LogLevel = "debug" })
	if cfg.Workers == 0 || flags.Changed("concurrency") {
		cfg.Workers = concurrency
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	settings = cfg
	return nil
}

// analyzerConfig 由合并后的配置生成分析器配置
func analyzerConfig(stem types.StemKind) *types.AnalyzerConfig {
	ac := &types.AnalyzerConfig{
		Instrument:  settings.Instrument,
		Stem:        stem,
		Concurrency: settings.Workers,
		Quiet:       quiet,
		JSONOutput:  jsonOutput,
		Analysis:    settings.Analysis,
		Tab:         settings.Tab,
	}
	if settings.Cache.Enabled {
		ac.CacheDir = settings.Cache.Dir
	}
	return ac
}

// newEngine 创建与配置一致的引擎
func newEngine() (*engine.Engine, error) {
	registry, err := settings.Registry()
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{
		Workers:  settings.Workers,
		Registry: registry,
	})
}

// openCache 缓存目录不可用时只记录警告，分析照常进行
func openCache(dir string) *cache.Cache {
	if dir == "" {
		return nil
	}
	c, err := cache.Open(cache.Options{Dir: dir, TTL: settings.Cache.TTL})
	if err != nil {
		slog.Warn("结果缓存不可用", "dir", dir, "error", err)
		return nil
	}
	return c
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	targetPath := args[0]

	if _, err := os.Stat(targetPath); os.IsNotExist(err) {
		return fmt.Errorf("路径不存在: %s", targetPath)
	}

	var stem types.StemKind
	if stemName != "" {
		kind, err := types.ParseStemKind(stemName)
		if err != nil {
			return err
		}
		stem = kind
	}

	ac := analyzerConfig(stem)
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	resultCache := openCache(ac.CacheDir)
	if resultCache != nil {
		defer resultCache.Close()
	}

	audioAnalyzer := analyzer.NewAnalyzer(ac, eng, resultCache)

	files, err := audioAnalyzer.CollectAudioFiles(targetPath)
	if err != nil {
		return fmt.Errorf("收集音频文件失败: %w", err)
	}

	if len(files) == 0 {
		fmt.Println("未找到支持的音频文件")
		return nil
	}

	_, err = audioAnalyzer.AnalyzeFiles(cmd.Context(), files)
	return err
}
