package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"cororun/internal/config"
	"cororun/internal/eventbus"
	"cororun/internal/host"
	"cororun/internal/listeners"
	"cororun/internal/routine"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted scenario on a manual clock and print lifecycle events",
	Long: `demo starts a "load" routine that waits two seconds between its steps and a
"fade" routine owned by a scene. It pauses and resumes "load" halfway
through its wait, lets it complete, then releases the scene. Time is simulated,
so the output is the same on every run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var o demoOptions
		o.Compensation, _ = cmd.Flags().GetString("compensation")
		o.Step, _ = cmd.Flags().GetDuration("step")
		return runDemo(cmd.OutOrStdout(), o)
	},
}

func init() {
	demoCmd.Flags().String("compensation", "wait", "pause compensation: wait or uniform")
	demoCmd.Flags().Duration("step", 250*time.Millisecond, "simulated time per tick")
	rootCmd.AddCommand(demoCmd)
}

type demoOptions struct {
	Compensation string
	Step         time.Duration
}

type demoScene struct{ name string }

func (s *demoScene) OwnerName() string { return s.name }

const demoMaxTicks = 1000

func runDemo(w io.Writer, o demoOptions) error {
	if o.Step <= 0 {
		return errors.New("step must be > 0")
	}
	comp, err := routine.ParseCompensation(o.Compensation)
	if err != nil {
		return err
	}

	clock := host.NewManualClock(time.Time{})
	start := clock.Now()
	h := host.New(host.Options{Clock: clock})
	bus := eventbus.New()
	events, unsub := bus.SubscribePrefix("routine.", 256)
	defer unsub()

	all := []string{"event"}
	catalog := &listeners.Catalog{Bus: bus}
	defaults, err := catalog.Defaults(config.HooksConfig{
		OnStart: all, OnPause: all, OnResume: all, OnCancel: all, OnComplete: all, OnDestroy: all,
	})
	if err != nil {
		return err
	}
	env, err := routine.NewEnv(routine.Config{Host: h, DestroyOnEnd: true, Compensation: comp, Defaults: defaults})
	if err != nil {
		return err
	}

	say := func(format string, args ...any) {
		fmt.Fprintf(w, "%7s  "+format+"\n", append([]any{clock.Now().Sub(start)}, args...)...)
	}
	flush := func() {
		for {
			select {
			case e := <-events:
				if p, ok := e.Data.(listeners.Payload); ok {
					say("%-17s %s (%s)", e.Type, p.Name, p.State)
				}
			default:
				return
			}
		}
	}
	tick := func(n int) {
		for i := 0; i < n; i++ {
			clock.Advance(o.Step)
			h.Tick()
			flush()
		}
	}

	load, err := env.New(routine.Steps(
		func() routine.Suspension { say("loading"); return routine.Delay(2 * time.Second) },
		func() routine.Suspension { say("loaded"); return nil },
	), routine.WithName("load"))
	if err != nil {
		return err
	}
	scene := &demoScene{name: "level-1"}
	fade, err := env.New(routine.Func(func(step int) (routine.Suspension, bool) {
		say("fade step %d", step)
		return routine.Delay(time.Second), true
	}), routine.WithName("fade"), routine.WithOwner(scene))
	if err != nil {
		return err
	}

	if err := load.Start(); err != nil {
		return err
	}
	if err := fade.Start(); err != nil {
		return err
	}
	flush()

	perSecond := int(time.Second / o.Step)
	if perSecond < 1 {
		perSecond = 1
	}
	tick(perSecond)
	load.Pause()
	flush()
	tick(perSecond)
	load.Resume()
	say("load resumed with %s pending (%s)", load.PendingDelay(), comp)
	flush()
	for i := 0; !load.Destroyed() && i < demoMaxTicks; i++ {
		tick(1)
	}
	if !load.Destroyed() {
		return errors.New("load did not complete")
	}

	h.ReleaseOwner(scene)
	flush()
	say("live routines: %d", env.Registry().Len())
	env.DestroyAll()
	flush()
	return nil
}
