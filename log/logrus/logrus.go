// Package logrus adapts a *logrus.Entry to dealscache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/dealscache"
)

var _ dealscache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l with a component=dealscache field.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "dealscache")}
}

func (l Logger) Debug(msg string, f dealscache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f dealscache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f dealscache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f dealscache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f dealscache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	return l.E.WithFields(logrus.Fields(f))
}
