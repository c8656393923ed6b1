package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"place-boundaries/internal/config"
	"place-boundaries/internal/logger"

	"github.com/spf13/cobra"
)

// 文档注释：海岸线切割命令行
// 背景：run 执行完整切割；fetch 只物化海岸线缓存；sanitize 对已有数据集做输出清理；import 把 GeoJSON 文件载入工作存储。
// 约束：任一子命令失败时记录 *_error 事件并以 1 退出；运行日志无论成败都会写出。
func main() {
	config.LoadEnvFiles()
	l := logger.Setup()
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := rootCmd(&cfg)
	err := root.ExecuteContext(ctx)
	stop()
	if werr := logger.R().WriteFile(cfg.RunLogPath); werr != nil {
		l.Warn("run_log_write_error", "path", cfg.RunLogPath, "err", werr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func rootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "coastal-cut",
		Short:         "Clip jurisdiction boundaries against the coastline layer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.StoreKind, "store", cfg.StoreKind, "feature store: memory, geojson or postgres")
	root.PersistentFlags().StringVar(&cfg.StoreDir, "store-dir", cfg.StoreDir, "directory for the geojson store")
	root.PersistentFlags().StringVar(&cfg.Namespace, "namespace", cfg.Namespace, "prefix for intermediate datasets")
	root.AddCommand(runCmd(cfg), fetchCmd(cfg), sanitizeCmd(cfg), importCmd(cfg))
	return root
}
