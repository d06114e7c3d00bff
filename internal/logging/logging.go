// Package logging configures the process-wide zap logger and hands out
// component loggers that follow it.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var level = zap.NewAtomicLevelAt(zapcore.InfoLevel) // supports runtime changes via SetLevel

// Init configures the global zap logger. Call once at startup.
// levelStr: "debug", "info", "warn", "error" (default: "info").
// format: "console" or "json" (default: "console").
func Init(levelStr, format string) {
	SetLevel(parseLevel(levelStr))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if strings.EqualFold(format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	zap.ReplaceGlobals(zap.New(core))
}

// For returns a logger named after the given component.
// The returned logger delegates to zap.L() on every write, so later calls
// to Init or CaptureForTest take effect even for package-level loggers.
func For(component string) *zap.Logger {
	return zap.New(&dynamicCore{}).Named(component)
}

// SetLevel changes the log level at runtime. Useful in tests.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

func parseLevel(s string) zapcore.Level {
	l, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// dynamicCore resolves the global core at write time.
type dynamicCore struct {
	fields []zapcore.Field
}

func (c *dynamicCore) Enabled(l zapcore.Level) bool {
	return zap.L().Core().Enabled(l)
}

func (c *dynamicCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &dynamicCore{fields: merged}
}

func (c *dynamicCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *dynamicCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	core := zap.L().Core()
	if len(c.fields) > 0 {
		core = core.With(c.fields)
	}
	return core.Write(e, fields)
}

func (c *dynamicCore) Sync() error {
	return zap.L().Core().Sync()
}
