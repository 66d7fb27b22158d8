package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples entries below Error with cfg and passes Error and
// above through untouched.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	unsampled := gatedCore{Core: core, allow: func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel }}
	sampled := zapcore.NewSamplerWithOptions(
		gatedCore{Core: core, allow: func(l zapcore.Level) bool { return l < zapcore.ErrorLevel }},
		cfg.Tick.Duration(), cfg.Initial, cfg.Thereafter,
	)
	return zapcore.NewTee(unsampled, sampled)
}

// gatedCore forwards only entries whose level passes allow.
type gatedCore struct {
	zapcore.Core
	allow func(zapcore.Level) bool
}

func (c gatedCore) Enabled(l zapcore.Level) bool {
	return c.allow(l) && c.Core.Enabled(l)
}

func (c gatedCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.allow(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c gatedCore) With(fields []zapcore.Field) zapcore.Core {
	return gatedCore{Core: c.Core.With(fields), allow: c.allow}
}
