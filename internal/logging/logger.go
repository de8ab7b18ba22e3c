package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New 创建 JSON 结构化日志器并设置为全局默认。
// level 支持 debug、info、warn、error，未知取值按 info 处理。
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter 与 New 相同，但输出到指定 writer。
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	})
	logger := slog.New(handler).With("service", "fileshelf")
	slog.SetDefault(logger)
	return logger
}

// Discard 返回丢弃所有输出的日志器，供测试和未注入日志器的组件使用。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
