package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tabcraft/internal/analyzer"
	"tabcraft/internal/types"
)

var (
	stemsOutDir string
	stemsKinds  []string
)

var stemsCmd = &cobra.Command{
	Use:   "stems [file]",
	Short: "用滤波器启发式近似分离人声、鼓、贝斯和其他声部",
	Long: `把音频近似分离为人声、鼓、贝斯和其他声部，写出 16 位单声道 WAV。

分离基于经典滤波器和瞬态检测，分离度有限，适合粗略听辨或再送入六线谱分析，
不能替代模型分离。`,
	Args: cobra.ExactArgs(1),
	RunE: runStems,
}

func init() {
	stemsCmd.Flags().StringVarP(&stemsOutDir, "out", "o", "stems", "分轨输出目录")
	stemsCmd.Flags().StringSliceVar(&stemsKinds, "kind", []string{"vocals", "drums", "bass", "other"}, "要生成的分轨")
}

func runStems(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("文件不可用: %w", err)
	}

	kinds := make([]types.StemKind, 0, len(stemsKinds))
	for _, name := range stemsKinds {
		kind, err := types.ParseStemKind(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}

	a := analyzer.NewAnalyzer(analyzerConfig(""), nil, nil)
	_, err := a.SeparateFile(cmd.Context(), filePath, stemsOutDir, kinds)
	return err
}
