package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iabetor/dailynews/internal/logger"
)

// 全局命令行参数
var (
	configPath string
	manualFlag bool
)

func main() {
	root := &cobra.Command{
		Use:           "dailynews",
		Short:         "dailynews — 每日新闻摘要与预测市场报告推播",
		Long:          "抓取 RSS/Atom 订阅源，过滤当日且未推播过的新闻，交给模型整理后推送到 Telegram。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/dailynews.yaml", "配置文件路径")
	root.PersistentFlags().BoolVar(&manualFlag, "manual", false, "手动触发：不去重，也不记录已推播标题")

	root.AddCommand(
		digestCmd(),
		reportCmd(),
		seenCmd(),
		historyCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dailynews: %v\n", err)
		os.Exit(1)
	}
}
