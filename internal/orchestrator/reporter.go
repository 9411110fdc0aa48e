package orchestrator

import (
	"time"

	"github.com/vrsandeep/seo-batch/internal/models"
	"go.uber.org/zap"
)

// Reporter receives everything a running batch wants to show the user.
// Event is called from progress channel goroutines while Log and Item are
// called from the batch loop, so implementations must be safe for concurrent use.
type Reporter interface {
	Log(entry models.LogEntry)
	Event(event models.ProgressEvent)
	Item(index, total int, outcome models.ItemOutcome)
	Done(run *models.BatchRun)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) Log(models.LogEntry)               {}
func (NopReporter) Event(models.ProgressEvent)        {}
func (NopReporter) Item(int, int, models.ItemOutcome) {}
func (NopReporter) Done(*models.BatchRun)             {}

// guardedReporter keeps a panicking Reporter from taking the batch down.
// Panics are logged and the call is dropped.
type guardedReporter struct {
	inner  Reporter
	logger *zap.Logger
}

func (g guardedReporter) catch(method string) {
	if p := recover(); p != nil {
		g.logger.Error("reporter panicked", zap.String("method", method), zap.Any("panic", p))
	}
}

func (g guardedReporter) Log(e models.LogEntry) {
	defer g.catch("Log")
	g.inner.Log(e)
}

func (g guardedReporter) Event(e models.ProgressEvent) {
	defer g.catch("Event")
	g.inner.Event(e)
}

func (g guardedReporter) Item(index, total int, o models.ItemOutcome) {
	defer g.catch("Item")
	g.inner.Item(index, total, o)
}

func (g guardedReporter) Done(run *models.BatchRun) {
	defer g.catch("Done")
	g.inner.Done(run)
}

// LogReporter writes the batch log and progress events to a zap logger.
type LogReporter struct {
	Logger *zap.Logger
}

func (r LogReporter) Log(entry models.LogEntry) {
	switch entry.Level {
	case models.LevelError:
		r.Logger.Error(entry.Message)
	case models.LevelWarning:
		r.Logger.Warn(entry.Message)
	default:
		r.Logger.Info(entry.Message, zap.String("level", entry.Level))
	}
}

func (r LogReporter) Event(e models.ProgressEvent) {
	fields := []zap.Field{zap.String("type", string(e.Type)), zap.String("session_id", e.SessionID)}
	switch e.Type {
	case models.EventAgentUpdate:
		fields = append(fields, zap.String("agent", e.AgentName), zap.String("status", e.Status))
		if e.ExecutionTime != nil {
			fields = append(fields, zap.Float64("execution_time", *e.ExecutionTime))
		}
	case models.EventStepUpdate:
		fields = append(fields, zap.String("step", e.StepInfo))
	case models.EventLogUpdate:
		fields = append(fields, zap.String("log_level", e.LogLevel), zap.String("message", e.Message))
	case models.EventProgress:
		fields = append(fields, zap.Int("current", e.Current), zap.Int("total", e.Total), zap.String("message", e.Message))
	}
	r.Logger.Debug("progress event", fields...)
}

func (r LogReporter) Item(index, total int, o models.ItemOutcome) {
	r.Logger.Debug("item finished",
		zap.Int("index", index),
		zap.Int("total", total),
		zap.String("url", o.URL),
		zap.Bool("succeeded", o.Succeeded),
		zap.Duration("duration", o.Duration))
}

func (r LogReporter) Done(run *models.BatchRun) {
	t := run.Totals()
	r.Logger.Debug("batch finished",
		zap.String("run_id", run.ID),
		zap.Int("succeeded", t.Succeeded),
		zap.Int("failed", t.Failed))
}

func entry(level, message string) models.LogEntry {
	return models.LogEntry{Level: level, Message: message, Time: time.Now()}
}
