package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"stillmind/internal/engine"
	"stillmind/internal/model"
)

var (
	elapsedStyle = lipgloss.NewStyle().Bold(true)
	countsStyle  = lipgloss.NewStyle().Faint(true)
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

var (
	goalMinutes  int
	ambientSound string
)

var sitCmd = &cobra.Command{
	Use:   "sit",
	Short: "Start meditating (Ctrl+C ends the session)",
	RunE:  runSit,
}

func init() {
	sitCmd.Flags().IntVar(&goalMinutes, "goal", 0, "goal in minutes (0 = open-ended; persisted)")
	sitCmd.Flags().StringVar(&ambientSound, "sound", "", "ambient sound preference (persisted)")
}

func runSit(cmd *cobra.Command, args []string) error {
	store, client, ident, err := setup()
	if err != nil {
		return err
	}

	settings, err := store.Settings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("goal") {
		settings.GoalMinutes = goalMinutes
	}
	if cmd.Flags().Changed("sound") {
		settings.AmbientSound = ambientSound
	}
	if err := store.SaveSettings(settings); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Best-effort registration; a dead server degrades, never blocks.
	if _, err := client.InitUser(ctx, ident.UserID, ident.DisplayName); err != nil {
		fmt.Println(countsStyle.Render("server unreachable; counting locally for now"))
	}

	ctrl := engine.New(client, store, ident.UserID)

	resumed, pending := ctrl.ReconcileStartup()
	if pending != nil {
		if err := resolveOrphan(ctx, ctrl, pending); err != nil {
			fmt.Println(countsStyle.Render("could not record the earlier session; will ask again next time"))
		}
	}
	if resumed {
		if elapsed, ok := ctrl.Elapsed(); ok {
			fmt.Printf("Resuming a session in progress (%s so far).\n", formatDuration(elapsed))
		}
	}

	observer := engine.NewSignalObserver()
	defer observer.Close()

	var sched *engine.Scheduler
	sched = engine.NewScheduler(ctrl, forwardEvents(ctrl, observer.C, func() { sched.Stop() }), func(counts engine.Counts) {
		renderTick(ctrl, settings, counts)
	})
	sched.Run(ctx)

	// SIGHUP/SIGTERM is the teardown path: the checkpoint is already
	// written and the session stays open for the next run to reconcile.
	if ctx.Err() == nil {
		fmt.Println("\nSession saved; it will resume next time.")
		return nil
	}

	// Ctrl+C lands here: the session ends explicitly, on a fresh context
	// since the interrupted one is already cancelled.
	elapsed, _ := ctrl.Elapsed()
	endCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ctrl.EndExplicit(endCtx)

	fmt.Printf("\nSession ended after %s.\n", elapsedStyle.Render(formatDuration(elapsed)))
	refreshLocalStats(endCtx, client, store, ident.UserID, true)
	return nil
}

// forwardEvents relays visibility events to the scheduler. A pagehide signal
// (SIGHUP/SIGTERM) is terminal: the checkpoint is written here, synchronously,
// and onPageHide shuts the loop down so the process can exit with the session
// left open.
func forwardEvents(ctrl *engine.Controller, in <-chan engine.Event, onPageHide func()) <-chan engine.Event {
	out := make(chan engine.Event, 4)
	go func() {
		for ev := range in {
			if ev == engine.EventPageHide {
				ctrl.OnPageHide()
				onPageHide()
				return
			}
			out <- ev
		}
	}()
	return out
}

// resolveOrphan asks the user about a long session found from a previous
// run. Only an explicit yes commits it.
func resolveOrphan(ctx context.Context, ctrl *engine.Controller, p *model.PendingOrphanSession) error {
	hours := float64(p.DurationSeconds) / 3600
	fmt.Println(promptStyle.Render(fmt.Sprintf(
		"A previous session from %s appears to have lasted %.1f hours.",
		p.StartedAt.Local().Format("Jan 2 15:04"), hours)))
	fmt.Print(promptStyle.Render("Count it toward your totals? [y/N] "))

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	if strings.EqualFold(strings.TrimSpace(line), "y") {
		if err := ctrl.ConfirmPendingOrphan(ctx); err != nil {
			return err
		}
		fmt.Println("Recorded.")
		return nil
	}
	if err := ctrl.DiscardPendingOrphan(); err != nil {
		return err
	}
	fmt.Println("Discarded.")
	return nil
}

func renderTick(ctrl *engine.Controller, settings *model.Settings, counts engine.Counts) {
	elapsed, ok := ctrl.Elapsed()
	if !ok {
		return
	}

	line := elapsedStyle.Render(formatDuration(elapsed))
	if settings.GoalMinutes > 0 {
		goal := time.Duration(settings.GoalMinutes) * time.Minute
		if elapsed >= goal {
			line += " ✓"
		} else {
			line += countsStyle.Render(fmt.Sprintf(" / %dm", settings.GoalMinutes))
		}
	}

	switch {
	case counts.Placeholder:
		line += countsStyle.Render("  ·  …")
	default:
		line += countsStyle.Render(fmt.Sprintf("  ·  %d meditating now  ·  %d all time", counts.Active, counts.Total))
	}
	fmt.Printf("\r\033[K%s", line)
}

func refreshLocalStats(ctx context.Context, client statsFetcher, store statsSaver, userID string, announce bool) {
	user, err := client.InitUser(ctx, userID, "")
	if err != nil {
		return
	}
	stats := &model.LocalStats{
		TotalSeconds:  user.TotalSeconds,
		SessionsCount: user.SessionsCount,
		UpdatedAt:     time.Now(),
	}
	if rank, err := client.UserRank(ctx, userID); err == nil {
		stats.Rank = rank
	}
	if err := store.SaveLocalStats(stats); err != nil {
		return
	}
	if !announce {
		return
	}
	fmt.Printf("Lifetime: %s across %d sessions", formatDuration(time.Duration(stats.TotalSeconds)*time.Second), stats.SessionsCount)
	if stats.Rank > 0 {
		fmt.Printf("  ·  rank #%d", stats.Rank)
	}
	fmt.Println()
}

// Narrow views of backend.Client and localstore.Store so stats refresh is
// testable without either.
type statsFetcher interface {
	InitUser(ctx context.Context, userID, displayName string) (*model.User, error)
	UserRank(ctx context.Context, userID string) (int, error)
}

type statsSaver interface {
	SaveLocalStats(*model.LocalStats) error
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
