package log

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
	mu     sync.RWMutex
)

func init() {
	logger = newLogger("console", nil)
}

func newLogger(format string, extra zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if strings.ToLower(format) == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	ws := zapcore.Lock(os.Stderr)
	if extra != nil {
		ws = zapcore.NewMultiWriteSyncer(ws, extra)
	}
	return zap.New(zapcore.NewCore(enc, ws, level), zap.AddCaller(), zap.AddCallerSkip(1))
}

// 初始化全局日志：lvl为debug/info/warn/error，format为console或json，file非空时同时写入文件
func Init(lvl, format, file string) (err error) {
	if lvl != "" {
		if err = level.UnmarshalText([]byte(strings.ToLower(lvl))); err != nil {
			return
		}
	}
	var extra zapcore.WriteSyncer
	if file != "" {
		var f *os.File
		if f, err = os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
			return
		}
		extra = zapcore.AddSync(f)
	}
	l := newLogger(format, extra)
	mu.Lock()
	old := logger
	logger = l
	mu.Unlock()
	_ = old.Sync()
	return
}

func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

func Sync() error {
	return L().Sync()
}
