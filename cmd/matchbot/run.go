package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"matchbot/internal/admin"
	"matchbot/internal/config"
	"matchbot/internal/match"
	"matchbot/internal/panel"
	"matchbot/internal/remote"
	"matchbot/internal/sim"
	"matchbot/internal/telemetry"
	"matchbot/internal/timeutil"
)

var (
	runPrintOnly   bool
	runEventsOnly  bool
	runLogFile     string
	runLogOutput   string
	runAdminAddr   string
	runColor       string
	runTUI         string
	runManualStart bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play a match against simulated hardware",
	Long: "run plays one match with a simulated robot, opponent, sensors and start cord. " +
		"The operator panel is a terminal UI when STDOUT is a terminal, log lines otherwise.",
	RunE: func(cmd *cobra.Command, args []string) error {
		color := config.Color(runColor)
		if color != config.ColorA && color != config.ColorOther {
			return fmt.Errorf("--color must be %s or %s", config.ColorA, config.ColorOther)
		}
		useTUI, err := wantTUI(runTUI)
		if err != nil {
			return err
		}
		if runManualStart && runAdminAddr == "" {
			return errors.New("--manual-start needs --admin-addr")
		}

		logOut, closeLog, err := logOutput(runLogOutput, useTUI)
		if err != nil {
			return err
		}
		defer closeLog()
		log, err := newLogger(logOut)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if runManualStart {
			cfg.Sim.PullDelayMS = 0
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runMatch(ctx, cfg, color == config.ColorA, useTUI, log)
	},
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runPrintOnly, "print-only", false, "Print records to STDOUT instead of writing to DB")
	f.BoolVar(&runEventsOnly, "events-only", false, "Print match events but not poses")
	f.StringVar(&runLogFile, "log-file", "", "Path to record the match log (JSONL)")
	f.StringVar(&runLogOutput, "log-output", "", "Write logs to this file (default STDERR, discarded under the TUI)")
	f.StringVar(&runAdminAddr, "admin-addr", ":8080", "Admin HTTP listen address (empty disables)")
	f.StringVar(&runColor, "color", string(config.ColorA), "Initial color (color0 or colorOther)")
	f.StringVar(&runTUI, "tui", "auto", "Operator panel: auto, on or off")
	f.BoolVar(&runManualStart, "manual-start", false, "Wait for POST /start instead of pulling the cord after the configured delay")
}

func wantTUI(mode string) (bool, error) {
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		return term.IsTerminal(int(os.Stdout.Fd())), nil
	}
	return false, fmt.Errorf("--tui must be auto, on or off, got %q", mode)
}

func logOutput(path string, useTUI bool) (io.Writer, func(), error) {
	switch {
	case path != "":
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { f.Close() }, nil
	case useTUI:
		return io.Discard, func() {}, nil
	}
	return os.Stderr, func() {}, nil
}

func runMatch(ctx context.Context, cfg *config.Config, colorA, useTUI bool, log *slog.Logger) error {
	clock := timeutil.RealClock{}
	world := sim.NewWorld(cfg, clock, log)

	var (
		pnl   match.Panel
		tui   *panel.TUIPanel
		extra []telemetry.Writer
	)
	if useTUI {
		tui = panel.NewTUIPanel(cfg, colorA)
		defer tui.Close()
		pnl = tui
		extra = append(extra, tui)
	} else {
		pnl = panel.NewLogPanel(colorA, log)
	}

	writer, cleanup, err := newWriters(writerOptions{
		printOnly:  runPrintOnly,
		stdout:     !useTUI,
		eventsOnly: runEventsOnly,
		logFile:    runLogFile,
	}, log, extra...)
	if err != nil {
		return err
	}
	defer cleanup()

	deps := match.Deps{
		Controller: world.Robot,
		Sensors:    world.Sensors,
		Scanner:    world.Scanner,
		Actions:    world.Actions,
		Panel:      pnl,
		Start:      world.Start,
		Telemetry:  writer,
		Clock:      clock,
		Logger:     log,
	}
	var link *remote.Link
	if cfg.Remote.Active {
		link = remote.NewLink(cfg.Remote.Addr, log)
		deps.Remote = link
	}
	orch, err := match.New(cfg, deps)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	bg, stopBackground := context.WithCancel(gctx)
	defer stopBackground()

	g.Go(func() error { return world.Run(bg) })
	if link != nil {
		g.Go(func() error { return link.Run(bg) })
	}
	if runAdminAddr != "" {
		srv := admin.NewServer(orch, world.Start, log)
		g.Go(func() error { return srv.Start(bg, runAdminAddr) })
		if tui != nil {
			tui.SetAdminStatus(true)
		}
	}
	g.Go(func() error {
		defer stopBackground()
		err := orch.Play(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	st := orch.Status()
	log.Info("match over", "match_id", st.MatchID, "score", st.Score, "reason", st.EndReason)
	if tui != nil && err == nil {
		// Keep the final score on screen until the operator quits.
		<-ctx.Done()
	}
	return err
}
