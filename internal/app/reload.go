package app

import (
	"context"
	"slices"
	"strings"
	"time"

	"cororun/internal/config"
	logx "cororun/pkg/logx"
)

// reloadLoop applies committed configs. Logging, triggers and debug are
// applied live; the other sections only take effect after a restart.
func (a *App) reloadLoop(c context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// coalesce bursts: keep only the latest config in the channel
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.apply(c, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) apply(c context.Context, prev, next *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	if slices.Contains(sections, "logging") {
		a.logs.Apply(mapLogConfig(next))
	}
	if slices.Contains(sections, "triggers") {
		if err := a.applyTriggers(c, next); err != nil {
			a.log.Warn("invalid triggers config; keeping previous", logx.Err(err))
		}
	}
	if slices.Contains(sections, "debug") {
		dc, err := mapDebugConfig(next)
		if err != nil {
			a.log.Warn("invalid debug config; keeping previous", logx.Err(err))
		} else {
			a.debug.Reconfigure(c, dc)
		}
	}
	if len(restart) > 0 {
		a.log.Warn("config sections changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}
	a.log.Info("config reloaded", fields...)
}

// applyTriggers swaps the trigger set in place, or rebuilds the service
// when the timezone changed since cron binds its location at creation.
func (a *App) applyTriggers(c context.Context, cfg *config.Config) error {
	a.trigMu.Lock()
	defer a.trigMu.Unlock()

	if strings.TrimSpace(cfg.TriggerTimezone) == strings.TrimSpace(a.trigTZ) {
		defs, err := triggerDefs(cfg)
		if err != nil {
			return err
		}
		return a.triggers.Replace(defs)
	}

	next, err := a.newTriggers(cfg)
	if err != nil {
		return err
	}
	stopCtx, cancel := context.WithTimeout(c, 2*time.Second)
	a.triggers.Stop(stopCtx)
	cancel()
	next.Start()
	a.triggers = next
	a.trigTZ = cfg.TriggerTimezone
	return nil
}
