package obslog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger. Console and file output can run side by side.
var (
	globalLogger *zap.Logger = zap.NewNop()
)

// L returns the global logger.
func L() *zap.Logger { return globalLogger }

// Options selects the logger outputs.
type Options struct {
	Level   string // debug, info, warn, error, dpanic, panic, fatal
	Format  string // legacy, console, json
	Console bool
	// Output receives console logs. Nil means stdout.
	Output io.Writer
	ToFile bool
	File   string
	Caller bool
	// Development makes DPanic entries panic.
	Development bool
}

// OptionsFromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_TO_CONSOLE, LOG_TO_FILE,
// LOG_FILE, LOG_CALLER and LOG_DEVELOPMENT.
func OptionsFromEnv() Options {
	return Options{
		Level:       getenvDefault("LOG_LEVEL", "info"),
		Format:      getenvDefault("LOG_FORMAT", "legacy"),
		Console:     strings.EqualFold(getenvDefault("LOG_TO_CONSOLE", "true"), "true"),
		ToFile:      strings.EqualFold(getenvDefault("LOG_TO_FILE", "false"), "true"),
		File:        getenvDefault("LOG_FILE", filepath.Join("logs", "analysis.log")),
		Caller:      strings.EqualFold(getenvDefault("LOG_CALLER", "false"), "true"),
		Development: strings.EqualFold(getenvDefault("LOG_DEVELOPMENT", "false"), "true"),
	}
}

// InitFromEnv builds the global logger from the environment.
func InitFromEnv() error {
	logger, err := New(OptionsFromEnv())
	if err != nil {
		return err
	}
	SetGlobal(logger)
	return nil
}

func SetGlobal(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	globalLogger = logger
}

func New(opt Options) (*zap.Logger, error) {
	level := parseLevel(opt.Level)
	format := strings.ToLower(strings.TrimSpace(opt.Format))
	if format != "legacy" && format != "json" && format != "console" {
		format = "legacy"
	}

	var cores []zapcore.Core
	if opt.Console {
		out := opt.Output
		if out == nil {
			out = os.Stdout
		}
		cores = append(cores, zapcore.NewCore(newEncoder(format), zapcore.AddSync(out), level))
	}

	if opt.ToFile {
		filePath := strings.TrimSpace(opt.File)
		if filePath == "" {
			filePath = filepath.Join("logs", "analysis.log")
		}
		if err := ensureDir(filepath.Dir(filePath)); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(newEncoder(format), zapcore.AddSync(f), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	showCaller := opt.Caller || format == "legacy"
	if showCaller {
		logger = logger.WithOptions(zap.AddCaller())
	}
	if opt.Development {
		logger = logger.WithOptions(zap.Development())
	}
	logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, nil
}

func newEncoder(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig(false))
	default:
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// encoder configs
func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig(color bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
