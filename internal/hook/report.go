package hook

import (
	"sync/atomic"

	"golang.org/x/time/rate"

	logx "cororun/pkg/logx"
)

// LogReporter returns a Reporter that logs failures at warn level, at most
// perSec per second (with a burst of the same size). Failures over the limit
// are counted and the count is attached to the next logged failure.
//
// perSec <= 0 disables throttling.
func LogReporter(log logx.Logger, perSec int) Reporter {
	if log.IsZero() {
		log = logx.Nop()
	}
	var lim *rate.Limiter
	if perSec > 0 {
		lim = rate.NewLimiter(rate.Limit(perSec), perSec)
	}
	var suppressed atomic.Uint64

	return func(f Failure) {
		if lim != nil && !lim.Allow() {
			suppressed.Add(1)
			return
		}
		fields := []logx.Field{
			logx.String("hook", f.Hook),
			logx.Int("index", f.Index),
			logx.Bool("default", f.Default),
		}
		if n := suppressed.Swap(0); n > 0 {
			fields = append(fields, logx.Uint64("suppressed", n))
		}
		if f.Panic != nil {
			fields = append(fields, logx.Any("panic", f.Panic), logx.Stack(f.Stack))
			log.Error("hook listener panicked", fields...)
			return
		}
		fields = append(fields, logx.Err(f.Err))
		log.Warn("hook listener failed", fields...)
	}
}
