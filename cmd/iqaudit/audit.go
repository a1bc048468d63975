package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"iqaudit/internal/config"
	"iqaudit/internal/coordinate"
	"iqaudit/internal/history"
	"iqaudit/internal/iq"
	"iqaudit/internal/manifest"
	"iqaudit/internal/notify"
	"iqaudit/internal/telemetry"
	"iqaudit/internal/ui"
)

// errPolicy is returned when the evaluation's policy action fails the build.
var errPolicy = errors.New("policy evaluation failed")

type auditOptions struct {
	files       []string
	coordinates []string
	dev         bool
	quiet       bool
	failOnWarn  bool
	metricsFile string
	noHistory   bool
}

func newAuditCmd(a *app) *cobra.Command {
	opts := &auditOptions{}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Submit dependencies for policy evaluation and wait for the verdict",
		Long: `Reads dependency coordinates from manifests (go.mod, package.json, or
coordinate lists) and --coordinate flags, submits them to the IQ server and
polls until the policy report is ready.

Without --file or --coordinate, go.mod and package.json in the current
directory are used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAudit(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.files, "file", "f", nil, "manifest or coordinate list to audit (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.coordinates, "coordinate", "c", nil, "extra coordinate as [group:]name:version (repeatable)")
	cmd.Flags().BoolVar(&opts.dev, "dev", false, "include devDependencies from package.json")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "only print the verdict")
	cmd.Flags().BoolVar(&opts.failOnWarn, "fail-on-warn", false, "also exit non-zero when the policy action is Warn")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics of this run to a textfile")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "do not record this run")
	return cmd
}

func (a *app) runAudit(cmd *cobra.Command, opts *auditOptions) error {
	if err := config.Validate(a.v); err != nil {
		return err
	}

	coords, err := collectCoordinates(opts, a.logger)
	if err != nil {
		return err
	}

	out := ui.NewRenderer(cmd.OutOrStdout(), opts.quiet)
	out.Coordinates(coords)

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewAuditMetrics(reg)

	orch, err := iq.New(config.IQConfig(a.v), a.logger, iq.WithMetrics(metrics))
	if err != nil {
		return err
	}
	cfg := orch.Config()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := history.NewRun(cfg.PublicAppID, cfg.Stage, len(coords))
	report, auditErr := a.audit(ctx, orch, out, coords, &run)
	finishRun(ctx, &run, report, auditErr)

	// History and notifications still go out after an interrupt.
	bg := context.WithoutCancel(ctx)
	if !opts.noHistory {
		a.recordRun(bg, run)
	}
	a.notifyRun(bg, run)
	if opts.metricsFile != "" {
		if err := telemetry.WriteTextfile(reg, opts.metricsFile); err != nil {
			a.logger.Warn("failed to write metrics file", "path", opts.metricsFile, "error", err)
		}
	}

	if auditErr != nil {
		out.Failure(auditErr)
		return &reportedError{err: auditErr}
	}

	out.Verdict(report)
	if report.PolicyFailed() || (opts.failOnWarn && report.PolicyWarned()) {
		return fmt.Errorf("%w: policy action %s", errPolicy, report.PolicyAction)
	}
	return nil
}

func (a *app) audit(ctx context.Context, orch *iq.Orchestrator, out *ui.Renderer, coords []coordinate.Coordinate, run *history.Run) (iq.Report, error) {
	statusURL, err := orch.Submit(ctx, coords)
	if err != nil {
		return iq.Report{}, err
	}
	run.StatusURL = statusURL
	out.Submitted(statusURL)

	var report iq.Report
	err = orch.Poll(ctx, statusURL, iq.ReportPending, func(r iq.Report) {
		report = r
	})
	return report, err
}

func collectCoordinates(opts *auditOptions, logger *slog.Logger) ([]coordinate.Coordinate, error) {
	files := opts.files
	if len(files) == 0 && len(opts.coordinates) == 0 {
		files = manifest.Detect(".")
		if len(files) == 0 {
			return nil, errors.New("no manifest found: pass --file or --coordinate")
		}
	}

	coords, err := manifest.Load(files, opts.dev, logger)
	if err != nil {
		return nil, err
	}
	for _, raw := range opts.coordinates {
		c, err := coordinate.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --coordinate %q: %w", raw, err)
		}
		coords = append(coords, c)
	}
	return coordinate.Dedupe(coords), nil
}

func finishRun(ctx context.Context, run *history.Run, report iq.Report, err error) {
	run.FinishedAt = time.Now().UTC()
	switch {
	case err == nil:
		run.Outcome = history.OutcomeDone
		run.PolicyAction = report.PolicyAction
		run.ReportURL = report.ReportHTMLURL
		return
	case ctx.Err() != nil:
		run.Outcome = history.OutcomeCanceled
	default:
		run.Outcome = iq.KindOf(err).String()
	}
	run.Error = err.Error()
}

func (a *app) recordRun(ctx context.Context, run history.Run) {
	sc, ok := config.HistoryConfig(a.v)
	if !ok {
		return
	}
	store, err := history.NewStore(sc)
	if err != nil {
		a.logger.Warn("run history unavailable", "error", err)
		return
	}
	defer store.Close()

	if err := store.SaveRun(ctx, run); err != nil {
		a.logger.Warn("failed to record run", "run_id", run.ID, "error", err)
	}
}

func (a *app) notifyRun(ctx context.Context, run history.Run) {
	sc := config.SlackConfig(a.v)
	if !sc.Enabled() {
		return
	}

	var notifiers notify.Multi
	if sc.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(sc.WebhookURL))
	}
	if sc.Token != "" {
		notifiers = append(notifiers, notify.NewSlackBotNotifier(sc.Token, sc.Channel, slack.OptionHTTPClient(&http.Client{Timeout: 10 * time.Second})))
	}

	if err := notifiers.Notify(ctx, run); err != nil {
		a.logger.Warn("failed to send notification", "run_id", run.ID, "error", err)
	}
}
