package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fiksareport/internal/config"
	"fiksareport/internal/scheduler"
	"fiksareport/internal/stats"
	"fiksareport/internal/storage/sqlite"
)

const dateLayout = "2006-01-02"

func NewRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "fiksareport",
		Short:         "Aggregate call-center fixation logs into period reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("CONFIG_PATH", configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default config.yaml or $CONFIG_PATH)")

	root.AddCommand(newRunCmd(), newServeCmd(), newHistoryCmd(), newCheckConfigCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		offset   int
		from, to string
		notify   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the report for one period (or a custom date range)",
		Example: `  fiksareport run
  fiksareport run --offset -1 --notify
  fiksareport run --from 2025-01-01 --to 2025-01-15`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}
			defer d.Close()

			req := Request{Trigger: TriggerManual, Offset: offset, Notify: notify}
			if req.From, err = parseDate(from, d.cfg.Location); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if req.To, err = parseDate(to, d.cfg.Location); err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			r, err := d.runner()
			if err != nil {
				return err
			}
			out, err := r.Run(cmd.Context(), req)
			if err == nil || out.Load.Sources > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), FormatOutcome(out))
			}
			return err
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "period offset relative to the current one (-1 = previous)")
	cmd.Flags().StringVar(&from, "from", "", "custom window start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "custom window end date, inclusive (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&notify, "notify", false, "send the digest to configured chats")
	cmd.MarkFlagsRequiredTogether("from", "to")
	cmd.MarkFlagsMutuallyExclusive("offset", "from")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Regenerate reports and send digests on the configured schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}
			defer d.Close()
			r, err := d.runner()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := scheduler.New(d.cfg.Location, d.logger)
			s.Add(scheduler.Job{Name: "report", Schedule: d.cfg.ReportSchedule, Fn: runJob(r, d.logger, TriggerScheduled, false)})
			s.Add(scheduler.Job{Name: "digest", Schedule: d.cfg.DigestSchedule, Fn: runJob(r, d.logger, TriggerDigest, true)})
			if s.Len() == 0 {
				return errors.New("no valid schedule configured")
			}

			d.logger.Info("scheduler started", zap.Int("jobs", s.Len()))
			s.Start(ctx)
			<-ctx.Done()
			s.Wait()
			d.logger.Info("scheduler stopped")
			return nil
		},
	}
}

func runJob(r *Runner, logger *zap.Logger, trigger string, notify bool) func(context.Context) {
	return func(ctx context.Context) {
		out, err := r.Run(ctx, Request{Trigger: trigger, Notify: notify})
		if err != nil {
			logger.Error("scheduled run failed", zap.String("trigger", trigger), zap.Error(err))
			return
		}
		logger.Info("scheduled run complete", zap.String("trigger", trigger), zap.String("run_id", out.Run.ID))
	}
}

func newHistoryCmd() *cobra.Command {
	var (
		limit int
		days  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored report runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}
			defer d.Close()

			runs, err := sqlite.ListRuns(d.db, limit)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}
			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs stored yet.")
				return nil
			}
			for _, run := range runs {
				writeRun(w, run, d.cfg.Location)
				if !days {
					continue
				}
				dayStats, err := sqlite.GetRunDays(d.db, run.ID)
				if err != nil {
					return fmt.Errorf("loading days of %s: %w", run.ID, err)
				}
				for _, ds := range dayStats {
					fmt.Fprintf(w, "    %s  touches=%d unique=%d closed=%d open=%d repeats=%d late=%d\n",
						ds.Day, ds.Touches, ds.Entities, ds.Closed, ds.Open, ds.Repeats, ds.LateClosures)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().BoolVar(&days, "days", false, "also print the per-day numbers of each run")
	return cmd
}

func writeRun(w io.Writer, run sqlite.Run, loc *time.Location) {
	notified := ""
	if run.Notified {
		notified = " notified"
	}
	fmt.Fprintf(w, "%s  %-9s %s  period %s..%s  touches=%d unique=%d closed=%d open=%d sources=%d/%d%s\n",
		run.StartedAt.In(loc).Format("2006-01-02 15:04"),
		run.Trigger,
		run.ID,
		run.PeriodStart.In(loc).Format(dateLayout),
		run.PeriodEnd.In(loc).Format(dateLayout),
		run.Touches, run.Entities, run.Closed, run.Open,
		run.SourcesOK, run.SourcesOK+run.SourcesFailed,
		notified,
	)
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the config and taxonomy and print what would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			writeConfigSummary(cmd.OutOrStdout(), cfg, time.Now())
			return nil
		},
	}
}

func writeConfigSummary(w io.Writer, cfg config.Config, now time.Time) {
	source := cfg.Path
	if source == "" {
		source = "(environment only)"
	}
	fmt.Fprintf(w, "Config: %s\n", source)
	fmt.Fprintf(w, "Timezone: %s\n", cfg.Location)
	p := stats.PeriodWindow(now, 0, cfg.PeriodStartDay, cfg.Location)
	fmt.Fprintf(w, "Current period: %s .. %s\n", p.Start.Format(dateLayout), p.End.Format(dateLayout))
	fmt.Fprintf(w, "Closed statuses: %s\n", strings.Join(cfg.Taxonomy.Labels(), " | "))

	active := cfg.ActiveSources()
	fmt.Fprintf(w, "Sources: %d active of %d\n", len(active), len(cfg.Sources))
	for _, s := range active {
		where := s.Path
		if s.Kind != config.SourceCSV {
			where = s.Table
		}
		fmt.Fprintf(w, "  - %s (%s %s, operator %s)\n", s.ID, s.Kind, where, s.Operator)
	}

	for _, job := range []struct{ name, spec string }{
		{"report", cfg.ReportSchedule},
		{"digest", cfg.DigestSchedule},
	} {
		switch sched, err := scheduler.Parse(job.spec); {
		case strings.TrimSpace(job.spec) == "":
			fmt.Fprintf(w, "Schedule %s: disabled\n", job.name)
		case err != nil:
			fmt.Fprintf(w, "Schedule %s: invalid (%v)\n", job.name, err)
		default:
			next := sched.Next(now.In(cfg.Location))
			fmt.Fprintf(w, "Schedule %s: %s, next %s\n", job.name, job.spec, next.Format("2006-01-02 15:04"))
		}
	}

	fmt.Fprintf(w, "Slack: %s\n", configured(cfg.SlackConfigured()))
	fmt.Fprintf(w, "Telegram: %s\n", configured(cfg.TelegramConfigured()))
	fmt.Fprintf(w, "LLM narrative: %s\n", configured(cfg.LLMDigestEnabled))
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s, loc)
}
