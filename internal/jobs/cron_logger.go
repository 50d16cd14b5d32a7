package jobs

import (
	"fmt"

	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	"github.com/robfig/cron/v3"
)

// cronLogger feeds cron's own events into the service logger. Scheduler
// chatter goes to debug; recovered panics go to error.
type cronLogger struct {
	log logger.ILogger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(keysAndValues []interface{}) []logger.Field {
	out := make([]logger.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			out = append(out, logger.Any(key, nil))
			break
		}
		out = append(out, logger.Any(key, keysAndValues[i+1]))
	}
	return out
}
