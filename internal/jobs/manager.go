package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vrsandeep/seo-batch/internal/config"
	"github.com/vrsandeep/seo-batch/internal/store"
	"go.uber.org/zap"
)

// ErrJobRunning is returned by Start while another batch is still running.
var ErrJobRunning = errors.New("a batch is already running")

// JobContext is an interface that provides the necessary dependencies for a job to run.
// The core.App struct will implement this interface.
type JobContext interface {
	Config() *config.Config
	Store() *store.Store
	Logger() *zap.Logger
	JobManager() *JobManager
}

// Job states reported by JobStatus.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateSuccess   = "success"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// Task is the body of a batch job. It should stop when ctx is done.
type Task func(ctx context.Context) error

type JobStatus struct {
	RunID     string    `json:"run_id,omitempty"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

// JobManager runs at most one batch at a time and tracks its status.
type JobManager struct {
	mu      sync.Mutex
	status  JobStatus
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	logger  *zap.Logger
}

func NewManager(logger *zap.Logger) *JobManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobManager{
		status: JobStatus{Status: StateIdle},
		logger: logger,
	}
}

// Start runs task in a new goroutine under a context derived from parent.
// It returns ErrJobRunning if a batch is already running.
func (jm *JobManager) Start(parent context.Context, runID string, total int, task Task) error {
	jm.mu.Lock()
	if jm.running {
		jm.mu.Unlock()
		return ErrJobRunning
	}

	ctx, cancel := context.WithCancel(parent)
	jm.running = true
	jm.cancel = cancel
	jm.done = make(chan struct{})
	jm.status = JobStatus{
		RunID:     runID,
		Status:    StateRunning,
		Message:   "Batch started...",
		Total:     total,
		StartTime: time.Now(),
	}
	done := jm.done
	jm.mu.Unlock()

	logger := jm.logger.With(zap.String("run_id", runID))
	logger.Info("starting batch job", zap.Int("items", total))
	// Run the actual task in a new goroutine so it doesn't block.
	go func() {
		var err error
		defer func() {
			// Ensure we always update the status and unlock the manager
			if r := recover(); r != nil {
				logger.Error("batch job panicked", zap.Any("panic", r))
				err = fmt.Errorf("job panicked: %v", r)
			}

			jm.mu.Lock()
			jm.status.EndTime = time.Now()
			switch {
			case errors.Is(err, context.Canceled):
				jm.status.Status = StateCancelled
				jm.status.Message = "Batch cancelled."
			case err != nil:
				jm.status.Status = StateFailed
				jm.status.Message = err.Error()
			default:
				jm.status.Status = StateSuccess
				jm.status.Message = "Batch completed."
			}
			jm.running = false
			jm.cancel = nil
			jm.mu.Unlock()
			cancel()
			close(done)
			logger.Info("finished batch job", zap.Error(err))
		}()

		err = task(ctx)
	}()
	return nil
}

// Progress records how many items of the running batch have finished.
func (jm *JobManager) Progress(current, total int) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if !jm.running {
		return
	}
	jm.status.Current = current
	jm.status.Total = total
	jm.status.Message = fmt.Sprintf("Processed %d of %d", current, total)
}

// Cancel asks the running batch to stop. It reports whether a batch was running.
func (jm *JobManager) Cancel() bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if !jm.running || jm.cancel == nil {
		return false
	}
	jm.cancel()
	return true
}

// Wait blocks until the current batch, if any, has finished or ctx is done.
func (jm *JobManager) Wait(ctx context.Context) error {
	jm.mu.Lock()
	done := jm.done
	jm.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a batch is in progress.
func (jm *JobManager) Running() bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	return jm.running
}

func (jm *JobManager) GetStatus() JobStatus {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	return jm.status
}
