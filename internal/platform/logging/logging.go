package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config captures logging configuration options.
type Config struct {
	Level string
}

// Logger 提供 printf 风格的分级日志，底层基于 log/slog。
type Logger struct {
	slogger *slog.Logger
}

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m" // 时间：灰色
	colorDebug = "\x1b[36m" // DEBUG：青色
	colorInfo  = "\x1b[32m" // INFO：绿色
	colorWarn  = "\x1b[33m" // WARN：黄色
	colorError = "\x1b[31m" // ERROR：红色
)

// 各模块标签的颜色，对齐终端里按模块扫日志的习惯
var tagColors = map[string]string{
	"引导":   "\x1b[96m",
	"HTTP": "\x1b[95m",
	"认证":   "\x1b[94m",
	"代理":   "\x1b[34m",
	"媒体":   "\x1b[35m",
	"熔断":   "\x1b[92m",
}

// textHandler 自定义文本处理器，支持彩色输出和模块标签
type textHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var levelStr, levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelStr, levelColor = "调试", colorDebug
	case slog.LevelInfo:
		levelStr, levelColor = "信息", colorInfo
	case slog.LevelWarn:
		levelStr, levelColor = "警告", colorWarn
	case slog.LevelError:
		levelStr, levelColor = "错误", colorError
	default:
		levelStr, levelColor = "信息", colorReset
	}

	msg := r.Message
	msgColor := colorReset
	if strings.HasPrefix(msg, "[") {
		if end := strings.Index(msg, "]"); end > 1 {
			if c, ok := tagColors[msg[1:end]]; ok {
				msgColor = c
			}
		}
	}

	_, err := fmt.Fprintf(
		h.writer,
		"%s%s%s %s[%s]%s %s%s%s\n",
		colorTime, timeStr, colorReset,
		levelColor, levelStr, colorReset,
		msgColor, msg, colorReset,
	)
	return err
}

func (h *textHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *textHandler) WithGroup(string) slog.Handler      { return h }

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

// New creates a Logger writing colored lines to stdout.
func New(cfg Config) (*Logger, error) {
	handler := &textHandler{
		writer: os.Stdout,
		level:  parseLevel(cfg.Level),
	}
	return &Logger{slogger: slog.New(handler)}, nil
}

// Slog exposes the structured logger for new integrations.
func (l *Logger) Slog() *slog.Logger {
	return l.slogger
}

func (l *Logger) Debug(format string, args ...any) {
	l.slogger.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.slogger.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.slogger.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.slogger.Error(fmt.Sprintf(format, args...))
}

// Tag 变体在消息前加模块标签，例如 [认证]。
func (l *Logger) DebugTag(tag, format string, args ...any) {
	l.Debug("["+tag+"] "+format, args...)
}

func (l *Logger) InfoTag(tag, format string, args ...any) {
	l.Info("["+tag+"] "+format, args...)
}

func (l *Logger) WarnTag(tag, format string, args ...any) {
	l.Warn("["+tag+"] "+format, args...)
}

func (l *Logger) ErrorTag(tag, format string, args ...any) {
	l.Error("["+tag+"] "+format, args...)
}
