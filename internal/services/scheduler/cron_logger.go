package scheduler

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
)

// cronLogger routes robfig/cron output through arbor
type cronLogger struct {
	logger arbor.ILogger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Str("component", "cron").Msg(formatKeysAndValues(msg, keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Str("component", "cron").Err(err).Msg(formatKeysAndValues(msg, keysAndValues))
}

func formatKeysAndValues(msg string, keysAndValues []interface{}) string {
	if len(keysAndValues) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		b.WriteString(" ")
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, "%v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, "%v", keysAndValues[i])
		}
	}
	return b.String()
}
