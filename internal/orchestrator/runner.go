// Package orchestrator drives a batch of work items through the backend one
// at a time, isolating each item's failure from the rest of the batch.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/vrsandeep/seo-batch/internal/batch"
	"github.com/vrsandeep/seo-batch/internal/metrics"
	"github.com/vrsandeep/seo-batch/internal/models"
	"github.com/vrsandeep/seo-batch/internal/progress"
	"go.uber.org/zap"
)

// DefaultDelay is the pause between two consecutive submissions.
const DefaultDelay = 2 * time.Second

// ErrCancelled is recorded for items that were never submitted because the
// batch context ended first.
var ErrCancelled = errors.New("cancelled")

// ErrItemPanic wraps a panic recovered while processing an item.
var ErrItemPanic = errors.New("internal error while processing item")

// Submitter sends one work item to the backend.
type Submitter interface {
	Submit(ctx context.Context, item models.WorkItem, sessionID string) (*models.ResultPayload, error)
}

// OpenFunc opens the progress channel for one submission.
type OpenFunc func(ctx context.Context, sessionID string, consumer progress.Consumer) io.Closer

// DialerOpener opens real WebSocket progress channels through d.
func DialerOpener(d *progress.Dialer) OpenFunc {
	return func(ctx context.Context, sessionID string, consumer progress.Consumer) io.Closer {
		return d.Open(ctx, sessionID, consumer)
	}
}

// Runner processes batches sequentially. The zero value is not usable; set
// at least Submitter.
type Runner struct {
	Submitter Submitter
	Open      OpenFunc
	Reporter  Reporter
	Delay     time.Duration
	Logger    *zap.Logger

	// RunID names the next run. Empty generates a fresh uuid.
	RunID string

	// Hooks replaced in tests.
	sleep        func(ctx context.Context, d time.Duration) error
	newSessionID func() string
	newRunID     func() string
}

// itemState is the mutable state of one item while it moves through the steps.
type itemState struct {
	index     int
	total     int
	item      models.WorkItem
	sessionID string
	channel   io.Closer
	payload   *models.ResultPayload
	err       error
	started   time.Time
	recorded  bool
}

type step struct {
	name string
	run  func(ctx context.Context, run *models.BatchRun, st *itemState)
}

// Run processes items in order and returns the finished run. It returns
// batch.ErrNoItems without starting when items is empty. When ctx ends
// mid-batch the remaining items are recorded as cancelled and ctx.Err() is
// returned alongside the complete run.
func (r *Runner) Run(ctx context.Context, items []models.WorkItem) (*models.BatchRun, error) {
	if err := batch.Validate(items); err != nil {
		return nil, err
	}
	r.defaults()

	id := r.RunID
	if id == "" {
		id = r.newRunID()
	}
	run := models.NewBatchRun(id, items, r.Delay)
	run.StartedAt = time.Now()
	logger := r.Logger.With(zap.String("run_id", run.ID))
	logger.Info("batch started", zap.Int("items", len(items)), zap.Duration("delay", r.Delay))

	metrics.BatchesRunning.Inc()
	defer metrics.BatchesRunning.Dec()

	steps := r.steps()
	for i, item := range run.Items {
		if ctx.Err() != nil {
			r.cancelRemaining(run, i)
			break
		}
		st := &itemState{index: i, total: len(run.Items), item: item}
		r.processItem(ctx, run, st, steps, logger)
	}

	run.FinishedAt = time.Now()
	r.summarize(run, logger)
	r.Reporter.Done(run)
	return run, ctx.Err()
}

func (r *Runner) defaults() {
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}
	if r.Reporter == nil {
		r.Reporter = NopReporter{}
	}
	if _, ok := r.Reporter.(guardedReporter); !ok {
		r.Reporter = guardedReporter{inner: r.Reporter, logger: r.Logger}
	}
	if r.Open == nil {
		r.Open = func(context.Context, string, progress.Consumer) io.Closer { return nopCloser{} }
	}
	if r.sleep == nil {
		r.sleep = sleepContext
	}
	if r.newSessionID == nil {
		r.newSessionID = progress.NewSessionID
	}
	if r.newRunID == nil {
		r.newRunID = uuid.NewString
	}
}

func (r *Runner) steps() []step {
	return []step{
		{"announce", r.announce},
		{"open", r.open},
		{"submit", r.submit},
		{"record", r.record},
		{"close", r.closeChannel},
		{"wait", r.wait},
	}
}

// processItem runs every step for one item. A panic in any step is turned
// into a failed outcome so the batch keeps going.
func (r *Runner) processItem(ctx context.Context, run *models.BatchRun, st *itemState, steps []step, logger *zap.Logger) {
	for _, s := range steps {
		p := safely(func() { s.run(ctx, run, st) })
		if p == nil {
			continue
		}
		logger.Error("recovered panic while processing item",
			zap.String("step", s.name),
			zap.String("url", st.item.URL),
			zap.Any("panic", p))
		r.abandon(ctx, run, st, s.name, p, logger)
		return
	}
}

// abandon records a panicked item as failed, then closes its channel and
// waits out the delay. Every call here runs under its own recover.
func (r *Runner) abandon(ctx context.Context, run *models.BatchRun, st *itemState, failedStep string, p any, logger *zap.Logger) {
	st.payload = nil
	st.err = fmt.Errorf("%w: %v", ErrItemPanic, p)
	if !st.recorded {
		outcome := models.ItemOutcome{URL: st.item.URL, Error: st.err.Error()}
		if !st.started.IsZero() {
			outcome.Duration = time.Since(st.started)
		}
		if err := run.Record(outcome); err != nil {
			logger.Error("dropping outcome", zap.String("url", st.item.URL), zap.Error(err))
		} else {
			st.recorded = true
			metrics.ItemsProcessed.WithLabelValues("failed").Inc()
			r.Reporter.Log(entry(models.LevelError, fmt.Sprintf("Failed %s: %s", st.item.URL, outcome.Error)))
			r.Reporter.Item(st.index, st.total, outcome)
		}
	}
	if p := safely(func() { r.closeChannel(ctx, run, st) }); p != nil {
		logger.Error("recovered panic while closing progress channel", zap.Any("panic", p))
	}
	if failedStep != "wait" {
		safely(func() { r.wait(ctx, run, st) })
	}
}

// safely runs fn and returns the value of any panic it raised.
func safely(fn func()) (p any) {
	defer func() { p = recover() }()
	fn()
	return nil
}

func (r *Runner) announce(_ context.Context, _ *models.BatchRun, st *itemState) {
	r.Reporter.Log(entry(models.LevelInfo, fmt.Sprintf("Processing %d/%d: %s", st.index+1, st.total, st.item.URL)))
}

func (r *Runner) open(ctx context.Context, _ *models.BatchRun, st *itemState) {
	st.sessionID = r.newSessionID()
	st.channel = r.Open(ctx, st.sessionID, progress.ConsumerFunc(r.Reporter.Event))
}

func (r *Runner) submit(ctx context.Context, _ *models.BatchRun, st *itemState) {
	st.started = time.Now()
	st.payload, st.err = r.Submitter.Submit(ctx, st.item, st.sessionID)
	if st.err == nil && st.payload == nil {
		st.err = errors.New("backend returned an empty result")
	}
}

func (r *Runner) record(_ context.Context, run *models.BatchRun, st *itemState) {
	outcome := models.ItemOutcome{URL: st.item.URL}
	if !st.started.IsZero() {
		outcome.Duration = time.Since(st.started)
	}
	if st.err != nil {
		outcome.Error = st.err.Error()
		r.Reporter.Log(entry(models.LevelError, fmt.Sprintf("Failed %s: %s", st.item.URL, outcome.Error)))
		metrics.ItemsProcessed.WithLabelValues("failed").Inc()
	} else {
		outcome.Succeeded = true
		outcome.Payload = st.payload
		r.Reporter.Log(entry(models.LevelSuccess, fmt.Sprintf("Completed %s", st.item.URL)))
		metrics.ItemsProcessed.WithLabelValues("succeeded").Inc()
	}
	metrics.ItemDuration.Observe(outcome.Duration.Seconds())

	if err := run.Record(outcome); err != nil {
		r.Logger.Error("dropping outcome", zap.String("url", st.item.URL), zap.Error(err))
		return
	}
	st.recorded = true
	r.Reporter.Item(st.index, st.total, outcome)
}

func (r *Runner) closeChannel(_ context.Context, _ *models.BatchRun, st *itemState) {
	if st.channel == nil {
		return
	}
	ch := st.channel
	st.channel = nil
	if err := ch.Close(); err != nil {
		r.Logger.Debug("progress channel close failed", zap.String("session_id", st.sessionID), zap.Error(err))
	}
}

func (r *Runner) wait(ctx context.Context, _ *models.BatchRun, st *itemState) {
	if st.index == st.total-1 || r.Delay <= 0 {
		return
	}
	_ = r.sleep(ctx, r.Delay)
}

func (r *Runner) cancelRemaining(run *models.BatchRun, from int) {
	r.Reporter.Log(entry(models.LevelWarning, fmt.Sprintf("Batch cancelled, skipping %d remaining items", len(run.Items)-from)))
	for i := from; i < len(run.Items); i++ {
		outcome := models.ItemOutcome{URL: run.Items[i].URL, Error: ErrCancelled.Error()}
		if err := run.Record(outcome); err != nil {
			return
		}
		metrics.ItemsProcessed.WithLabelValues("failed").Inc()
		r.Reporter.Item(i, len(run.Items), outcome)
	}
}

func (r *Runner) summarize(run *models.BatchRun, logger *zap.Logger) {
	t := run.Totals()
	msg := fmt.Sprintf("Batch finished: %d of %d succeeded, %d failed (%.1f%% success)", t.Succeeded, t.Total, t.Failed, t.SuccessRate)
	level := models.LevelSuccess
	if t.Failed > 0 {
		level = models.LevelWarning
	}
	r.Reporter.Log(entry(level, msg))
	logger.Info("batch finished",
		zap.Int("succeeded", t.Succeeded),
		zap.Int("failed", t.Failed),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
