package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"cororun/internal/config"
	"cororun/internal/registry"
	"cororun/internal/routine"
	"cororun/internal/trigger"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Parse and validate a config file",
	Long:  `Load the config, run every validation the daemon runs at startup and print a summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.OutOrStdout(), configPath(cmd))
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(w io.Writer, path string) error {
	cfg, err := config.NewConfigManager(path).Load()
	if err != nil {
		return err
	}
	strategy, err := registry.ParseStrategy(cfg.Registry.Strategy)
	if err != nil {
		return err
	}
	comp, err := routine.ParseCompensation(cfg.Routines.PauseCompensation)
	if err != nil {
		return err
	}
	triggers, err := trigger.FromConfig(cfg.Triggers)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "config: %s\n", path)
	fmt.Fprintf(w, "registry: %s", strategy)
	if strategy == registry.FixedArray {
		fmt.Fprintf(w, " (capacity %d)", cfg.Registry.Capacity)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "routines: destroy_on_end=%t compensation=%s\n", cfg.Routines.DestroyOnEnd, comp)
	byKind := cfg.Routines.Hooks.ByKind()
	for _, k := range routine.Kinds {
		if names := byKind[k.String()]; len(names) > 0 {
			fmt.Fprintf(w, "  on_%s: %s\n", k, strings.Join(names, ", "))
		}
	}
	driver := "none"
	if cfg.Storage != nil && strings.TrimSpace(cfg.Storage.Driver) != "" {
		driver = cfg.Storage.Driver
	}
	fmt.Fprintf(w, "storage: %s\n", driver)
	fmt.Fprintf(w, "triggers: %d\n", len(triggers))
	for _, t := range triggers {
		spec, _ := trigger.ParseSchedule(t.Schedule)
		fmt.Fprintf(w, "  %s: %s %s (%s)\n", t.Name, t.Action, t.Routine, spec.CronSpec())
	}
	fmt.Fprintf(w, "debug: %t\n", cfg.Debug.Enabled)
	fmt.Fprintln(w, "ok")
	return nil
}
