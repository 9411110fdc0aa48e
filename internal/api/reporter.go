package api

import (
	"github.com/vrsandeep/seo-batch/internal/jobs"
	"github.com/vrsandeep/seo-batch/internal/models"
	"github.com/vrsandeep/seo-batch/internal/orchestrator"
	"github.com/vrsandeep/seo-batch/internal/websocket"
)

// hubReporter relays a run's log, progress events and item results to every
// browser on the hub, and keeps the job manager's counters current.
type hubReporter struct {
	runID string
	hub   *websocket.Hub
	jobs  *jobs.JobManager // nil outside a managed batch
	log   orchestrator.LogReporter
}

func (r *hubReporter) Log(e models.LogEntry) {
	r.log.Log(e)
	r.hub.BroadcastJSON(models.ProgressUpdate{RunID: r.runID, Kind: "log", Log: &e})
}

func (r *hubReporter) Event(e models.ProgressEvent) {
	r.log.Event(e)
	r.hub.BroadcastJSON(models.ProgressUpdate{RunID: r.runID, Kind: "event", Event: &e})
}

func (r *hubReporter) Item(index, total int, o models.ItemOutcome) {
	r.log.Item(index, total, o)
	if r.jobs != nil {
		r.jobs.Progress(index+1, total)
	}
	r.hub.BroadcastJSON(models.ProgressUpdate{RunID: r.runID, Kind: "item", Current: index + 1, Total: total})
}

func (r *hubReporter) Done(run *models.BatchRun) {
	r.log.Done(run)
	t := run.Totals()
	r.hub.BroadcastJSON(models.ProgressUpdate{
		RunID:   r.runID,
		Kind:    "done",
		Current: len(run.Outcomes),
		Total:   t.Total,
		Totals:  &t,
		Done:    true,
	})
}
