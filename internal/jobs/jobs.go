package jobs

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// StartJobs starts the background job scheduler. The returned scheduler
// should be stopped on shutdown.
func StartJobs(app JobContext) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	startHistoryPruneJob(s, app)

	app.Logger().Info("starting background job scheduler")
	s.StartAsync()
	return s
}

func startHistoryPruneJob(s *gocron.Scheduler, app JobContext) {
	cfg := app.Config()
	interval := cfg.History.PruneIntervalMinutes
	if interval <= 0 || cfg.History.RetentionDays <= 0 {
		app.Logger().Info("history pruning is disabled")
		return
	}

	jobID := "history-prune"
	app.Logger().Info("scheduling job", zap.String("job", jobID), zap.Int("every_minutes", interval))

	_, err := s.Every(interval).Minutes().Do(func() {
		PruneHistory(app)
	})
	if err != nil {
		app.Logger().Error("error scheduling job", zap.String("job", jobID), zap.Error(err))
	}
}

// PruneHistory removes stored runs older than the retention window.
func PruneHistory(app JobContext) {
	days := app.Config().History.RetentionDays
	if days <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := app.Store().PruneRunsBefore(cutoff)
	if err != nil {
		app.Logger().Error("history prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		app.Logger().Info("pruned old runs", zap.Int64("runs", n), zap.Time("cutoff", cutoff))
	}
}
