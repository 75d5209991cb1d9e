package eventlogger

import (
	"context"
	"errors"
)

type tee []EventLogger

// Tee saves every event to all loggers, in order, and joins their errors.
// A failing sink doesn't stop the others.
func Tee(loggers ...EventLogger) EventLogger {
	if len(loggers) == 1 {
		return loggers[0]
	}
	return tee(loggers)
}

func (t tee) Save(ctx context.Context, e Event) error {
	var errs []error
	for _, l := range t {
		if err := l.Save(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
