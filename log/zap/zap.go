// Package zap adapts a *zap.Logger to dealscache.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/dealscache"
	"go.uber.org/zap"
)

var _ dealscache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New wraps l under a "dealscache" name.
func New(l *zap.Logger) Logger { return Logger{L: l.Named("dealscache")} }

func (z Logger) Debug(msg string, f dealscache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f dealscache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f dealscache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f dealscache.Fields) { z.L.Error(msg, fields(f)...) }

// fields sorts by key so output is stable across runs.
func fields(f dealscache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]zap.Field, 0, len(f))
	for _, k := range names {
		switch v := f[k].(type) {
		case error:
			out = append(out, zap.NamedError(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
