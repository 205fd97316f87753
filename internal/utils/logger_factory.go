package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel enumerates supported diagnostic levels.
type LogLevel string

// LogFormat enumerates supported log encodings.
type LogFormat string

// Supported log levels.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Supported log formats.
const (
	LogFormatStructured LogFormat = "structured"
	LogFormatConsole    LogFormat = "console"
)

const (
	unsupportedLogLevelErrorTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatErrorTemplateConstant = "unsupported log format %q"
	timestampFieldNameConstant                = "timestamp"
	consoleTimeLayoutConstant                 = "15:04:05"
	defaultLogFileMaxSizeMegabytesConstant    = 10
	defaultLogFileMaxBackupsConstant          = 3
	defaultLogFileMaxAgeDaysConstant          = 28
	consoleMessageKeyConstant                 = "message"
)

// LoggerOutputs bundles the diagnostic logger with the human-facing console logger.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	ConsoleLogger    *zap.Logger
}

// LogFileOptions configures the optional rotating log file.
type LogFileOptions struct {
	Path           string
	MaxSizeMB      int
	MaxBackups     int
	MaxAgeDays     int
	CompressBackup bool
}

// Enabled reports whether a log file was requested.
func (options LogFileOptions) Enabled() bool {
	return len(strings.TrimSpace(options.Path)) > 0
}

func (options LogFileOptions) rotatingWriter() *lumberjack.Logger {
	maxSize := options.MaxSizeMB
	if maxSize <= 0 {
		maxSize = defaultLogFileMaxSizeMegabytesConstant
	}
	maxBackups := options.MaxBackups
	if maxBackups <= 0 {
		maxBackups = defaultLogFileMaxBackupsConstant
	}
	maxAge := options.MaxAgeDays
	if maxAge <= 0 {
		maxAge = defaultLogFileMaxAgeDaysConstant
	}
	return &lumberjack.Logger{
		Filename:   strings.TrimSpace(options.Path),
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   options.CompressBackup,
	}
}

// LoggerFactory creates zap loggers for the CLI.
type LoggerFactory struct{}

// NewLoggerFactory constructs a LoggerFactory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLoggerOutputs builds loggers writing to standard error.
func (factory *LoggerFactory) CreateLoggerOutputs(logLevel LogLevel, logFormat LogFormat) (LoggerOutputs, error) {
	return factory.CreateLoggerOutputsWithFile(logLevel, logFormat, LogFileOptions{})
}

// CreateLoggerOutputsWithFile builds loggers writing to standard error and, when enabled,
// tees diagnostic entries as JSON into a rotating log file.
func (factory *LoggerFactory) CreateLoggerOutputsWithFile(logLevel LogLevel, logFormat LogFormat, fileOptions LogFileOptions) (LoggerOutputs, error) {
	level, levelError := parseLogLevel(logLevel)
	if levelError != nil {
		return LoggerOutputs{}, levelError
	}

	standardError := zapcore.Lock(zapcore.AddSync(os.Stderr))

	var diagnosticEncoder zapcore.Encoder
	consoleLogger := zap.NewNop()
	switch LogFormat(strings.ToLower(strings.TrimSpace(string(logFormat)))) {
	case LogFormatStructured:
		diagnosticEncoder = zapcore.NewJSONEncoder(structuredEncoderConfig())
	case LogFormatConsole:
		diagnosticEncoder = zapcore.NewConsoleEncoder(consoleEncoderConfig())
		consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(messageOnlyEncoderConfig()), standardError, level)
		consoleLogger = zap.New(consoleCore)
	default:
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogFormatErrorTemplateConstant, logFormat)
	}

	diagnosticCore := zapcore.NewCore(diagnosticEncoder, standardError, level)
	if fileOptions.Enabled() {
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(structuredEncoderConfig()),
			zapcore.AddSync(fileOptions.rotatingWriter()),
			level,
		)
		diagnosticCore = zapcore.NewTee(diagnosticCore, fileCore)
	}

	return LoggerOutputs{
		DiagnosticLogger: zap.New(diagnosticCore),
		ConsoleLogger:    consoleLogger,
	}, nil
}

func parseLogLevel(logLevel LogLevel) (zap.AtomicLevel, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(logLevel)))) {
	case LogLevelDebug:
		return zap.NewAtomicLevelAt(zapcore.DebugLevel), nil
	case LogLevelInfo:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	case LogLevelWarn:
		return zap.NewAtomicLevelAt(zapcore.WarnLevel), nil
	case LogLevelError:
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel), nil
	default:
		return zap.AtomicLevel{}, fmt.Errorf(unsupportedLogLevelErrorTemplateConstant, logLevel)
	}
}

func structuredEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = timestampFieldNameConstant
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderConfig
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(consoleTimeLayoutConstant)
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.CallerKey = zapcore.OmitKey
	encoderConfig.StacktraceKey = zapcore.OmitKey
	return encoderConfig
}

func messageOnlyEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey: consoleMessageKeyConstant,
		LineEnding: zapcore.DefaultLineEnding,
	}
}
