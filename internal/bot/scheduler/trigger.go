package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// gridSchedule fires on anchor + k*interval. Next is computed from the grid,
// not from when the previous run finished, so lateness never accumulates.
type gridSchedule struct {
	anchor   time.Time
	interval time.Duration
}

// Every returns a cron.Schedule firing at every interval after anchor.
func Every(anchor time.Time, interval time.Duration) cron.Schedule {
	if interval < time.Second {
		interval = time.Second
	}
	return &gridSchedule{anchor: anchor, interval: interval}
}

// Next returns the first grid point strictly after t.
func (s *gridSchedule) Next(t time.Time) time.Time {
	if t.Before(s.anchor) {
		return s.anchor
	}
	k := t.Sub(s.anchor)/s.interval + 1
	return s.anchor.Add(k * s.interval)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func newCronLogger(logger *zap.Logger) cron.Logger {
	return &cronLogger{sugar: logger.Named("cron").Sugar()}
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// newTrigger builds a cron runner that calls job on the grid of interval
// starting at anchor. Panics in job are recovered and logged.
func newTrigger(anchor time.Time, interval time.Duration, job func(), logger *zap.Logger) *cron.Cron {
	log := newCronLogger(logger)
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log)),
		cron.WithLocation(anchor.Location()),
	)
	c.Schedule(Every(anchor, interval), cron.FuncJob(job))
	return c
}
