// Package monitor runs one fetch, compare, notify, persist and log cycle.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagewatch/internal/change"
	"github.com/JakeFAU/pagewatch/internal/config"
	"github.com/JakeFAU/pagewatch/internal/metrics"
	"github.com/JakeFAU/pagewatch/internal/notify"
	"github.com/JakeFAU/pagewatch/internal/publisher"
	"github.com/JakeFAU/pagewatch/internal/runlog"
)

// Dependencies are the collaborators of a Runner. Publisher and Metrics are
// optional.
type Dependencies struct {
	Fetcher   TextGetter
	Mailer    Mailer
	Snapshots SnapshotStore
	RunLog    RunLog
	Clock     Clock
	IDs       IDGenerator
	Hasher    Hasher
	Publisher publisher.Publisher
	Metrics   MetricsRecorder
}

// Result summarizes a successful run.
type Result struct {
	RunID         string
	URL           string
	Changed       bool
	EmailStatus   runlog.EmailStatus
	Length        int
	ContentSHA256 string
	Diff          string
	Entry         runlog.Entry
}

// Runner executes runs against one configured target.
type Runner struct {
	cfg  config.Config
	deps Dependencies
	log  *zap.Logger
}

// New constructs a Runner.
func New(cfg config.Config, deps Dependencies, logger *zap.Logger) (*Runner, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("monitor: fetcher is required")
	case deps.Mailer == nil:
		return nil, errors.New("monitor: mailer is required")
	case deps.Snapshots == nil:
		return nil, errors.New("monitor: snapshot store is required")
	case deps.RunLog == nil:
		return nil, errors.New("monitor: run log is required")
	case deps.Clock == nil:
		return nil, errors.New("monitor: clock is required")
	case deps.IDs == nil:
		return nil, errors.New("monitor: id generator is required")
	case deps.Hasher == nil:
		return nil, errors.New("monitor: hasher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps, log: logger}, nil
}

// Run executes the cycle once. Fetch and send failures are recorded in the
// run log before being returned; a missing recipient list fails before any
// side effect.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if err := r.cfg.RequireRecipients(); err != nil {
		return Result{}, err
	}

	url := r.cfg.Target.URL
	runID, err := r.deps.IDs.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := r.log.With(zap.String("run_id", runID), zap.String("url", url))
	logger.Info("Starting run", zap.String("selector", r.cfg.Target.Selector))

	started := r.deps.Clock.Now()
	text, err := r.deps.Fetcher.GetText(ctx, url, r.cfg.Target.Selector)
	fetchDuration := r.deps.Clock.Now().Sub(started)
	if err != nil {
		logger.Error("Fetch failed", zap.Error(err))
		r.fail(ctx, runID, runlog.StatusScrapeError, err, fetchDuration)
		return Result{}, err
	}

	previous, err := r.deps.Snapshots.Previous()
	if err != nil {
		return Result{}, err
	}
	cmp, err := change.Compare(previous, text)
	if err != nil {
		return Result{}, fmt.Errorf("diff snapshots: %w", err)
	}
	length := utf8.RuneCountInString(cmp.Current)
	logger.Info("Compared snapshots",
		zap.Bool("changed", cmp.Changed),
		zap.Int("length", length),
	)

	emailStatus := runlog.EmailNoChange
	if cmp.Changed {
		if err := r.sendReport(ctx, cmp); err != nil {
			logger.Error("Email failed", zap.Error(err))
			r.fail(ctx, runID, runlog.StatusEmailError, err, fetchDuration)
			return Result{}, err
		}
		emailStatus = runlog.EmailSent
	}

	if err := r.deps.Snapshots.Save(ctx, cmp.Current); err != nil {
		return Result{}, fmt.Errorf("persist snapshot: %w", err)
	}

	digest := r.deps.Hasher.HashString(cmp.Current)
	entry := runlog.Success(url, cmp.Changed, emailStatus, length, digest)
	entry.RunID = runID
	entry, err = r.deps.RunLog.AppendRun(ctx, entry)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		RunID:         runID,
		URL:           url,
		Changed:       cmp.Changed,
		EmailStatus:   emailStatus,
		Length:        length,
		ContentSHA256: digest,
		Diff:          cmp.Diff,
		Entry:         entry,
	}
	if cmp.Changed {
		r.publish(ctx, logger, res)
	}
	r.observe(logger, metrics.Run{
		URL:     url,
		Status:  string(runlog.StatusOK),
		Changed: cmp.Changed,
		Length:  length,
		Fetch:   fetchDuration,
		At:      started,
	})
	logger.Info("Run complete", zap.String("email_status", string(emailStatus)))
	return res, nil
}

// sendReport renders and sends the report for a changed page.
func (r *Runner) sendReport(ctx context.Context, cmp change.Result) error {
	now := r.deps.Clock.Now()
	url := r.cfg.Target.URL
	html, err := notify.RenderReport(notify.Report{
		URL:         url,
		Text:        cmp.Current,
		Diff:        cmp.Diff,
		Changed:     cmp.Changed,
		GeneratedAt: now,
	})
	if err != nil {
		return err
	}
	return r.deps.Mailer.Send(ctx, notify.Message{
		Subject: notify.RenderSubject(r.cfg.Email.Subject, url, now),
		HTML:    html,
		To:      r.cfg.Email.To,
		From:    r.cfg.Email.From,
	})
}

// fail appends an error entry. The caller returns cause, so a log write
// failure here is only reported.
func (r *Runner) fail(ctx context.Context, runID string, status runlog.Status, cause error, fetch time.Duration) {
	entry := runlog.Failure(r.cfg.Target.URL, status, cause)
	entry.RunID = runID
	if _, err := r.deps.RunLog.AppendRun(ctx, entry); err != nil {
		r.log.Error("Failed to record run failure",
			zap.String("run_id", runID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
	r.observe(r.log, metrics.Run{
		URL:    r.cfg.Target.URL,
		Status: string(status),
		Fetch:  fetch,
		At:     r.deps.Clock.Now(),
	})
}

func (r *Runner) publish(ctx context.Context, logger *zap.Logger, res Result) {
	if r.deps.Publisher == nil {
		return
	}
	id, err := r.deps.Publisher.PublishChange(ctx, publisher.ChangeEvent{
		Type:          publisher.EventPageChanged,
		RunID:         res.RunID,
		URL:           res.URL,
		DetectedAt:    res.Entry.Timestamp,
		Length:        res.Length,
		ContentSHA256: res.ContentSHA256,
		EmailStatus:   string(res.EmailStatus),
	})
	if err != nil {
		logger.Warn("Change event publish failed", zap.Error(err))
		return
	}
	logger.Debug("Change event published", zap.String("message_id", id))
}

func (r *Runner) observe(logger *zap.Logger, run metrics.Run) {
	if r.deps.Metrics == nil {
		return
	}
	r.deps.Metrics.ObserveRun(run)
	path := r.cfg.Metrics.TextfilePath
	if path == "" {
		return
	}
	if err := r.deps.Metrics.WriteTextfile(path); err != nil {
		logger.Warn("Metrics textfile write failed", zap.String("path", path), zap.Error(err))
	}
}

// Preview fetches the page and compares it with the stored baseline without
// emailing, persisting or logging anything.
func (r *Runner) Preview(ctx context.Context) (change.Result, error) {
	text, err := r.deps.Fetcher.GetText(ctx, r.cfg.Target.URL, r.cfg.Target.Selector)
	if err != nil {
		return change.Result{}, err
	}
	previous, err := r.deps.Snapshots.Previous()
	if err != nil {
		return change.Result{}, err
	}
	res, err := change.Compare(previous, text)
	if err != nil {
		return change.Result{}, fmt.Errorf("diff snapshots: %w", err)
	}
	return res, nil
}
