package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/httpapi"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run monitoring cycles on the configured interval",
		Long: `Runs a cycle immediately and then on every interval until interrupted.
With --once a single cycle runs and its report is printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			// A second signal while the last cycle finishes kills the process.
			context.AfterFunc(ctx, stop)

			application, _, err := opts.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			if !once {
				return application.Run(ctx)
			}
			report, err := application.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("cycle failed: %w", err)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show persisted run counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextOf(cmd)
			application, _, err := opts.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Pipeline().Load(ctx); err != nil {
				return err
			}
			stats := application.Pipeline().Stats()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					domain.Stats
					httpapi.Info
				}{stats, application.Info()})
			}
			printStats(cmd.OutOrStdout(), stats, application.Info())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newAlertsCommand(opts *rootOptions) *cobra.Command {
	var (
		hours  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List alerts published within the last hours",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if hours <= 0 {
				return fmt.Errorf("--hours must be positive")
			}
			ctx := contextOf(cmd)
			application, _, err := opts.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Pipeline().Load(ctx); err != nil {
				return err
			}
			alerts := application.Pipeline().RecentAlerts(hours)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), alerts)
			}
			printAlerts(cmd.OutOrStdout(), alerts, hours)
			return nil
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 24, "look-back window in hours")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newTestNotifyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a synthetic alert through every configured channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextOf(cmd)
			application, _, err := opts.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.TestNotify(ctx); err != nil {
				return fmt.Errorf("test notification failed: %w", err)
			}
			cmd.Printf("Test alert sent via %v\n", application.Info().Notifiers)
			return nil
		},
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func printReport(w io.Writer, r domain.CycleReport) {
	fmt.Fprintf(w, "Cycle %d finished in %s\n", r.Number, r.Duration.Round(time.Millisecond))
	for _, kind := range domain.SourceKinds {
		s, ok := r.Sources[kind]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-7s fetched=%d new=%d duplicates=%d stale=%d alerts=%d errors=%d rate_limited=%t\n",
			kind, s.Fetched, s.Processed, s.Duplicates, s.Stale, s.Alerts, s.Errors, s.RateLimited)
	}
	fmt.Fprintf(w, "Alerts: %d  Errors: %d  Notified: %t\n", r.Alerts, r.Errors, r.Notified)
}

func printStats(w io.Writer, s domain.Stats, info httpapi.Info) {
	fmt.Fprintf(w, "Phase:            %s\n", s.Phase)
	fmt.Fprintf(w, "Cycles:           %d\n", s.Cycles)
	fmt.Fprintf(w, "Errors:           %d\n", s.Errors)
	fmt.Fprintf(w, "Items processed:  %d\n", s.ItemsProcessed)

	kinds := make([]string, 0, len(s.AlertsFound))
	for k := range s.AlertsFound {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "Alerts found (%s): %d\n", k, s.AlertsFound[domain.SourceKind(k)])
	}
	fmt.Fprintf(w, "Alerts sent:      %d\n", s.AlertsSent)
	fmt.Fprintf(w, "Recent alerts:    %d\n", s.RecentAlerts)
	if s.LastRunAt != nil {
		fmt.Fprintf(w, "Last run:         %s\n", s.LastRunAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "Last run:         never")
	}
	fmt.Fprintf(w, "Notifiers:        %v\n", info.Notifiers)
	fmt.Fprintf(w, "Social search:    %t\n", info.SocialEnabled)
}

func printAlerts(w io.Writer, alerts []domain.Analysis, hours int) {
	if len(alerts) == 0 {
		fmt.Fprintf(w, "No alerts in the last %d hours\n", hours)
		return
	}
	fmt.Fprintf(w, "%d alert(s) in the last %d hours\n", len(alerts), hours)
	for _, a := range alerts {
		when := "undated"
		if a.Item.HasTimestamp() {
			when = a.Item.Timestamp.Format("2006-01-02 15:04")
		}
		title := a.Item.Title
		if title == "" {
			title = a.Item.Text
		}
		fmt.Fprintf(w, "- [%s] %s  %s (score %.2f)\n  %s\n", a.SourceKind, when, a.PrimaryEntity(), a.RelevanceScore, title)
		if a.Item.Link != "" {
			fmt.Fprintf(w, "  %s\n", a.Item.Link)
		}
	}
}
