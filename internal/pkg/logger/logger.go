package logger

import (
	"log/slog"
	"os"
	"strings"
)

// NewDefault 创建默认的结构化日志记录器。
//
// 参数:
//
//	level: 日志级别字符串 (debug / info / warn / error)，无效值按 info 处理
//
// 返回值:
//
//	*slog.Logger: 输出到标准输出的文本格式日志器
func NewDefault(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l})
	return slog.New(handler)
}
