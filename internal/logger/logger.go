// 包 logger：统一初始化与获取日志器，避免各模块重复配置；通过环境变量控制日志级别与输出格式
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// 默认日志器：在进程级复用，避免多处初始化导致输出不一致
var defaultLogger *slog.Logger

// 运行记录器：与默认日志器同时初始化，保存本次运行的全部日志
var defaultRecorder *Recorder

// Setup：初始化默认日志器
// 背景：集中化日志配置，便于按环境统一调整级别与格式；同时挂载内存记录器，供运行结束时落盘运行日志
// 约束：输出目标固定为标准错误；不在此处管理文件句柄或外部聚合通道
func Setup() *slog.Logger {
	return SetupWriter(os.Stderr)
}

// SetupWriter：与 Setup 相同，但允许指定输出目标（测试中使用）
func SetupWriter(w io.Writer) *slog.Logger {
	lvl := ParseLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(os.Getenv("LOG_FORMAT"))
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	defaultRecorder = NewRecorder(h)
	defaultLogger = slog.New(defaultRecorder)
	return defaultLogger
}

// ParseLevel：解析日志级别文本，未知值回退到 info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// L：获取默认日志器
// 背景：为业务代码提供快捷访问；若未初始化则回退到 Setup
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup()
	}
	return defaultLogger
}

// R：获取默认运行记录器；未初始化时同 L 一样回退到 Setup
func R() *Recorder {
	if defaultRecorder == nil {
		Setup()
	}
	return defaultRecorder
}
