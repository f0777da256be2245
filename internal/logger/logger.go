package logger

import (
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	once   sync.Once
	logger *zap.Logger
	sugar  *zap.SugaredLogger
)

var (
	AppName = "secregress"
	Env     = "production"
)

// Options controls the process logger. An empty FilePath logs to the console only.
type Options struct {
	Level    string // debug, info, warn, error.
	FilePath string // Rotated JSON log file.
	Env      string
}

// Init builds the process logger once; later calls are no-ops.
func Init(opts Options) error {
	var initErr error
	once.Do(func() {
		level := zapcore.InfoLevel
		if opts.Level != "" {
			if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
				initErr = err
				level = zapcore.InfoLevel
			}
		}
		env := Env
		if opts.Env != "" {
			env = opts.Env
		}

		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "timestamp"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderCfg.CallerKey = "caller"
		encoderCfg.LevelKey = "level"
		encoderCfg.MessageKey = "message"

		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

		cores := []zapcore.Core{
			zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stderr), level),
		}
		if opts.FilePath != "" {
			fileWriter := zapcore.AddSync(&lumberjack.Logger{
				Filename:   opts.FilePath,
				MaxSize:    50,
				MaxBackups: 7,
				MaxAge:     30,
				Compress:   true,
			})
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileWriter, level))
		}

		logger = zap.New(zapcore.NewTee(cores...),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
			zap.Fields(
				zap.String("app", AppName),
				zap.String("env", env),
			),
		)

		sugar = logger.Sugar()
	})
	return initErr
}

func GetLogger() *zap.Logger {
	Init(Options{})
	return logger
}

func GetSugaredLogger() *zap.SugaredLogger {
	Init(Options{})
	return sugar
}

// Sync flushes buffered log entries.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

func Trace(fn string, start time.Time) {
	elapsed := time.Since(start)
	GetSugaredLogger().Debugf("%s executed in %d ms", fn, elapsed.Milliseconds())
}

func TraceAuto() func() {
	start := time.Now()
	pc, _, _, ok := runtime.Caller(1)
	funcName := "unknown"
	if ok {
		fullName := runtime.FuncForPC(pc).Name()
		funcName = trimPackagePath(fullName)
	}
	s := GetSugaredLogger()
	s.Debugw("function start", "function", funcName, "start", start.Format(time.RFC3339Nano))
	return func() {
		s.Debugw("function end", "function", funcName, "duration", time.Since(start).String())
	}
}

func trimPackagePath(fullName string) string {
	if idx := strings.LastIndex(fullName, "/"); idx != -1 {
		fullName = fullName[idx+1:]
	}
	if idx := strings.Index(fullName, "."); idx != -1 {
		return fullName[idx+1:]
	}
	return fullName
}
