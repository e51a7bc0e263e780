package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"matchbot/internal/config"
	"matchbot/internal/logging"
	"matchbot/internal/strategy"
)

var validateWatch bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and mission plan",
	Long:  "validate checks the config against its CUE schema and parses the mission plan for both colors.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		planPath, err := validateOnce(out)
		if !validateWatch {
			return err
		}
		if err != nil {
			fmt.Fprintln(out, "invalid:", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchAndValidate(ctx, out, planPath, logging.FromContext(ctx))
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateWatch, "watch", false, "Keep validating whenever a watched file changes")
}

// validateOnce returns the plan path it checked, empty when the config
// itself did not load.
func validateOnce(out io.Writer) (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	counts := map[config.Color]int{}
	for _, c := range []config.Color{config.ColorA, config.ColorOther} {
		p, err := strategy.LoadPlan(cfg.StrategyFile, c)
		if err != nil {
			return cfg.StrategyFile, fmt.Errorf("%s plan: %w", c, err)
		}
		counts[c] = len(p.Objectives)
	}
	fmt.Fprintf(out, "ok: %s, %s (%d objectives %s, %d objectives %s)\n",
		configPath, cfg.StrategyFile, counts[config.ColorA], config.ColorA, counts[config.ColorOther], config.ColorOther)
	return cfg.StrategyFile, nil
}

// watchAndValidate watches the directories holding the config, schema and
// plan so that editors replacing files by rename are seen too.
func watchAndValidate(ctx context.Context, out io.Writer, planPath string, log *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer w.Close()

	files := map[string]bool{}
	dirs := map[string]bool{}
	track := func(path string) error {
		if path == "" {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			return nil
		}
		dirs[dir] = true
		return w.Add(dir)
	}
	for _, p := range []string{configPath, schemaPath, planPath} {
		if err := track(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
	}
	log.Info("watching for changes", "files", len(files))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			abs, _ := filepath.Abs(ev.Name)
			if !files[abs] {
				continue
			}
			log.Debug("fsnotify event", "op", ev.Op.String(), "file", ev.Name)
			plan, err := validateOnce(out)
			if err != nil {
				fmt.Fprintln(out, "invalid:", err)
			}
			if err := track(plan); err != nil {
				log.Warn("cannot watch plan", "path", plan, "err", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("fsnotify error", "err", err)
		}
	}
}
