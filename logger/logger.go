package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It is a no-op until Initialize is called.
var Log = zap.NewNop()

// RootName is the logger name every record carries unless a child is named.
const RootName = "loadgen"

// Initialize builds the global logger writing to stdout.
func Initialize(env, level string) error {
	return InitializeWithWriter(env, level, os.Stdout, nil)
}

// InitializeWithWriter builds the global logger with an optional CloudWatch sink.
func InitializeWithWriter(env, level string, out io.Writer, cloudWatchWriter io.Writer) error {
	l, err := New(env, level, out, cloudWatchWriter)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// New returns a logger emitting one JSON object per record with timestamp,
// level, logger, file, line and message keys. In development the console
// encoder is used for out instead.
func New(env, level string, out io.Writer, cloudWatchWriter io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logger: invalid level %q: %w", level, err)
	}
	atomic := zap.NewAtomicLevelAt(lvl)

	jsonEncoder := zapcore.NewJSONEncoder(EncoderConfig())
	var encoder zapcore.Encoder = jsonEncoder
	if env == "development" {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		devCfg.CallerKey = zapcore.OmitKey
		encoder = zapcore.NewConsoleEncoder(devCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), atomic)
	if cloudWatchWriter != nil {
		cwCore := zapcore.NewCore(jsonEncoder, zapcore.AddSync(cloudWatchWriter), atomic)
		core = zapcore.NewTee(core, cwCore)
	}

	return zap.New(
		sourceCore{core},
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	).Named(RootName), nil
}

// EncoderConfig is the JSON layout shared by stdout and CloudWatch.
func EncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.LevelKey = "level"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.NameKey = "logger"
	cfg.MessageKey = "message"
	// file and line are written as separate fields by sourceCore.
	cfg.CallerKey = zapcore.OmitKey
	return cfg
}

// sourceCore splits the entry caller into file and line fields.
type sourceCore struct {
	zapcore.Core
}

func (c sourceCore) With(fields []zapcore.Field) zapcore.Core {
	return sourceCore{c.Core.With(fields)}
}

func (c sourceCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c sourceCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if ent.Caller.Defined {
		withSource := make([]zapcore.Field, 0, len(fields)+2)
		withSource = append(withSource,
			zap.String("file", filepath.Base(ent.Caller.File)),
			zap.Int("line", ent.Caller.Line),
		)
		fields = append(withSource, fields...)
	}
	return c.Core.Write(ent, fields)
}

// RequestLogger returns a gin middleware that logs request details
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", status),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		switch {
		case status >= 500:
			log.Error("http_request", fields...)
		case status >= 400:
			log.Warn("http_request", fields...)
		default:
			log.Debug("http_request", fields...)
		}
	}
}
