package logger

import (
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Init настраивает глобальный логгер. Текстовый формат для разработки,
// json для прода, где логи собирает коллектор.
func Init(level string, json bool) {
	lvl, ok := levels[strings.ToLower(level)]
	if !ok {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
		// на debug-уровне полезно видеть, откуда пришла запись
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// Get возвращает глобальный логгер, при необходимости инициализируя
// его настройками по умолчанию
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init("info", false)
	}
	return defaultLogger
}

// With возвращает логгер с постоянными атрибутами
func With(args ...any) *slog.Logger {
	return Get().With(args...)
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

// Fatal пишет ошибку и завершает процесс; для ошибок, после которых
// продолжать нечего (нет базы, нет конфигурации)
func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}
