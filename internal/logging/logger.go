package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из конфигурации. Неизвестное значение даёт INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// zapLevel отображает наш уровень на уровень zap. TRACE в zap отсутствует и пишется как DEBUG.
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case TRACE, DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Options настройки логгера компонента
type Options struct {
	ConsoleLevel LogLevel
	FileLevel    LogLevel
	Format       string // "console" или "json"
	Dir          string // каталог файлов логов; пусто - только консоль
}

// DefaultOptions настройки по умолчанию: INFO в консоль, без файла
func DefaultOptions() Options {
	return Options{ConsoleLevel: INFO, FileLevel: DEBUG, Format: "console"}
}

// Logger логгер отдельного компонента
type Logger struct {
	component       string
	sugar           *zap.SugaredLogger
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
	file            *os.File
}

var defaultLogger = NewNopLogger()

// NewLogger создаёт логгер для компонента с настройками по умолчанию
func NewLogger(component string) (*Logger, error) {
	return NewLoggerWithOptions(component, DefaultOptions())
}

// NewLoggerWithOptions создаёт логгер компонента. Если указан Dir, все уровни
// начиная с FileLevel дополнительно пишутся в файл <component>_<время>.log.
func NewLoggerWithOptions(component string, opts Options) (*Logger, error) {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	var enc zapcore.Encoder
	if opts.Format == "json" {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), opts.ConsoleLevel.zapLevel()),
	}

	l := &Logger{
		component:       component,
		minConsoleLevel: opts.ConsoleLevel,
		minFileLevel:    opts.FileLevel,
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("ошибка создания директории логов: %w", err)
		}
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		filename := filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", component, timestamp))
		file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
		}
		l.file = file
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(file), opts.FileLevel.zapLevel()))
	}

	l.sugar = zap.New(zapcore.NewTee(cores...)).Sugar().Named(component)
	return l, nil
}

// NewNopLogger логгер, который ничего не пишет
func NewNopLogger() *Logger {
	return &Logger{component: "nop", sugar: zap.NewNop().Sugar(), minConsoleLevel: ERROR, minFileLevel: ERROR}
}

// NewObservedLogger логгер, записи которого можно проверить в тестах
func NewObservedLogger(component string, level LogLevel) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level.zapLevel())
	return &Logger{
		component:       component,
		sugar:           zap.New(core).Sugar().Named(component),
		minConsoleLevel: level,
		minFileLevel:    level,
	}, logs
}

// OrNop возвращает l либо no-op логгер, если l == nil
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

// Component имя компонента
func (l *Logger) Component() string { return l.component }

// Trace логирует сообщение уровня TRACE
func (l *Logger) Trace(format string, args ...interface{}) {
	if l.minConsoleLevel > TRACE && l.minFileLevel > TRACE {
		return
	}
	l.sugar.Debugf("[TRACE] "+format, args...)
}

// Debug логирует сообщение уровня DEBUG
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info логирует сообщение уровня INFO
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn логирует сообщение уровня WARN
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error логирует сообщение уровня ERROR
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Close сбрасывает буферы и закрывает файл логов
func (l *Logger) Close() error {
	_ = l.sugar.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// InitDefaultLogger инициализирует глобальный логгер для функций уровня пакета
func InitDefaultLogger(component string, opts Options) error {
	l, err := NewLoggerWithOptions(component, opts)
	if err != nil {
		return err
	}
	defaultLogger = l
	return nil
}

// CloseDefaultLogger закрывает глобальный логгер
func CloseDefaultLogger() {
	if defaultLogger != nil {
		_ = defaultLogger.Close()
	}
}

// Default возвращает глобальный логгер
func Default() *Logger { return defaultLogger }

// Trace логирует сообщение уровня TRACE в глобальный логгер
func Trace(format string, args ...interface{}) { defaultLogger.Trace(format, args...) }

// Debug логирует сообщение уровня DEBUG в глобальный логгер
func Debug(format string, args ...interface{}) { defaultLogger.Debug(format, args...) }

// Info логирует сообщение уровня INFO в глобальный логгер
func Info(format string, args ...interface{}) { defaultLogger.Info(format, args...) }

// Warn логирует сообщение уровня WARN в глобальный логгер
func Warn(format string, args ...interface{}) { defaultLogger.Warn(format, args...) }

// Error логирует сообщение уровня ERROR в глобальный логгер
func Error(format string, args ...interface{}) { defaultLogger.Error(format, args...) }

// HexDump создает hex дамп данных, не больше 256 байт
func HexDump(data []byte) string {
	if len(data) == 0 {
		return "No data"
	}

	size := len(data)
	if size > 256 {
		size = 256
	}

	return hex.Dump(data[:size])
}

// LogDecodeError логирует ошибку разбора сохранённых данных вместе с началом буфера
func LogDecodeError(l *Logger, source string, err error, data []byte) {
	l = OrNop(l)
	l.Error("Ошибка разбора %s: %v", source, err)
	if len(data) > 0 {
		l.Debug("Raw data (%d bytes):\n%s", len(data), HexDump(data))
	}
}
