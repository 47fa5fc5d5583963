package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tabcraft/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "管理分析结果缓存",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "清空分析结果缓存",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(func(c *cache.Cache) error {
			n, err := c.Len()
			if err != nil {
				return fmt.Errorf("统计缓存条目失败: %w", err)
			}
			if err := c.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已删除 %d 条缓存 (%s)\n", n, settings.Cache.Dir)
			return nil
		})
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "显示缓存条目数",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCache(func(c *cache.Cache) error {
			n, err := c.Len()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "缓存目录: %s\n条目数: %d\n", settings.Cache.Dir, n)
			return nil
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cacheStatsCmd)
}

func withCache(fn func(*cache.Cache) error) error {
	if settings.Cache.Dir == "" {
		return fmt.Errorf("未配置缓存目录")
	}
	c, err := cache.Open(cache.Options{Dir: settings.Cache.Dir})
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}
