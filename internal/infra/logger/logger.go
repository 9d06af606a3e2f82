// Package logger - централизованная обёртка над zap для всего бота.
// Консольный вывод (stdout/stderr можно переназначить на лету, например на readline)
// и необязательная копия в файл с ротацией через lumberjack. Уровень меняется атомарно,
// пересборка ядра защищена mutex'ом.

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions описывает файловый приёмник логов. Пустой Path отключает запись в файл.
type FileOptions struct {
	Path       string // путь к файлу лога
	MaxSizeMB  int    // размер файла до ротации
	MaxBackups int    // сколько старых файлов хранить
	MaxAgeDays int    // сколько дней хранить старые файлы
	Compress   bool   // gzip для ротированных файлов
}

var (
	mu       sync.Mutex
	log      *zap.Logger
	logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

	stdoutWriter = zapcore.Lock(zapcore.AddSync(os.Stdout))
	stderrWriter = zapcore.Lock(zapcore.AddSync(os.Stderr))

	// fileSink - активный lumberjack-приёмник; nil, если запись в файл выключена.
	fileSink *lumberjack.Logger
)

// consoleEncoderConfig - цветной консольный формат с коротким caller.
func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// fileEncoderConfig - тот же набор ключей, но без ANSI-цветов и с ISO-временем: файл читают grep'ом.
func fileEncoderConfig() zapcore.EncoderConfig {
	cfg := consoleEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

// rebuildLoggerLocked пересоздаёт глобальный логгер. Вызывающий держит mu.
// AddCallerSkip(1) скрывает обёртки logger.* в caller.
func rebuildLoggerLocked() {
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig()), stdoutWriter, logLevel),
	}
	if fileSink != nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(fileEncoderConfig()),
			zapcore.AddSync(fileSink),
			logLevel,
		))
	}
	if log != nil {
		_ = log.Sync()
	}
	log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1), zap.ErrorOutput(stderrWriter))
}

// ParseLevel переводит строку конфигурации в уровень zap. Неизвестное значение - info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Init инициализирует глобальный логгер с заданным уровнем (debug, info, warn, error).
func Init(level string) {
	mu.Lock()
	defer mu.Unlock()

	logLevel.SetLevel(ParseLevel(level))
	rebuildLoggerLocked()
}

// SetFile включает (или при пустом Path выключает) копию логов в файл с ротацией.
func SetFile(opts FileOptions) {
	mu.Lock()
	defer mu.Unlock()

	if fileSink != nil {
		_ = fileSink.Close()
		fileSink = nil
	}
	if strings.TrimSpace(opts.Path) != "" {
		fileSink = &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
	}
	rebuildLoggerLocked()
}

// SetWriters переназначает консольные потоки. Nil - os.Stdout/os.Stderr.
func SetWriters(stdout, stderr io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	stdoutWriter = zapcore.Lock(zapcore.AddSync(stdout))
	stderrWriter = zapcore.Lock(zapcore.AddSync(stderr))

	rebuildLoggerLocked()
}

// Logger возвращает текущий zap.Logger, лениво создавая его при первом обращении.
func Logger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	if log == nil {
		rebuildLoggerLocked()
	}
	return log
}

// Named возвращает дочерний логгер без caller-skip обёрток. Его отдают во внешние
// библиотеки (gotd), которые сами пишут в *zap.Logger.
func Named(name string) *zap.Logger {
	return Logger().WithOptions(zap.AddCallerSkip(-1)).Named(name)
}

// IsDebugEnabled сообщает, включён ли debug-уровень.
func IsDebugEnabled() bool {
	return logLevel.Enabled(zap.DebugLevel)
}

// Sync сбрасывает буферы всех приёмников. Вызывается при завершении.
func Sync() {
	_ = Logger().Sync()
}

func Debug(msg string, fields ...zap.Field) { Logger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Logger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Logger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Logger().Error(msg, fields...) }

// Fatal пишет сообщение уровня Fatal; zap сам завершает процесс после записи.
func Fatal(msg string, fields ...zap.Field) {
	Logger().Fatal(msg, fields...)
}

// Debugf и соседи форматируют через fmt.Sprintf. Для горячих путей лучше поля zap.
func Debugf(msg string, a ...any) { Logger().Debug(fmt.Sprintf(msg, a...)) }
func Infof(msg string, a ...any)  { Logger().Info(fmt.Sprintf(msg, a...)) }
func Warnf(msg string, a ...any)  { Logger().Warn(fmt.Sprintf(msg, a...)) }
func Errorf(msg string, a ...any) { Logger().Error(fmt.Sprintf(msg, a...)) }
