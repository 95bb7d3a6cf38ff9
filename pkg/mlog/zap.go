package mlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts *zap.SugaredLogger to the Logger interface.
type ZapLogger struct {
	s *zap.SugaredLogger
}

// New builds a ZapLogger from LOG_LEVEL/JSON_LOG style settings.
func New(levelStr string, jsonOutput bool) (*ZapLogger, error) {
	level, err := ParseLevel(levelStr)
	if err != nil {
		level = InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if jsonOutput {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg2 := zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encCfg2)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), toZapLevel(level))

	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &ZapLogger{s: logger.Sugar()}, nil
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case FatalLevel:
		return zapcore.FatalLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case DebugLevel:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *ZapLogger) Info(args ...any)           { l.s.Info(args...) }
func (l *ZapLogger) Infof(f string, a ...any)   { l.s.Infof(f, a...) }
func (l *ZapLogger) Error(args ...any)          { l.s.Error(args...) }
func (l *ZapLogger) Errorf(f string, a ...any)  { l.s.Errorf(f, a...) }
func (l *ZapLogger) Warn(args ...any)           { l.s.Warn(args...) }
func (l *ZapLogger) Warnf(f string, a ...any)   { l.s.Warnf(f, a...) }
func (l *ZapLogger) Debug(args ...any)          { l.s.Debug(args...) }
func (l *ZapLogger) Debugf(f string, a ...any)  { l.s.Debugf(f, a...) }
func (l *ZapLogger) Fatal(args ...any)          { l.s.Fatal(args...) }
func (l *ZapLogger) Fatalf(f string, a ...any)  { l.s.Fatalf(f, a...) }

// WithFields implements Logger.
//
//nolint:ireturn
func (l *ZapLogger) WithFields(fields ...any) Logger {
	return &ZapLogger{s: l.s.With(fields...)}
}

func (l *ZapLogger) Sync() error { return l.s.Sync() }
