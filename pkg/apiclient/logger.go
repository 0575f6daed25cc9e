package apiclient

import (
	"fmt"
	"strings"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// leveledLogger adapts Logger to retryablehttp.LeveledLogger. Failures are
// reported by Client itself, so transport messages all go to debug.
type leveledLogger struct {
	log Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Debugf("%s", formatKV(msg, kv)) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debugf("%s", formatKV(msg, kv)) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debugf("%s", formatKV(msg, kv)) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Debugf("%s", formatKV(msg, kv)) }

func formatKV(msg string, kv []interface{}) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}
