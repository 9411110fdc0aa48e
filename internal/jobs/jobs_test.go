package jobs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/seo-batch/internal/config"
	"github.com/vrsandeep/seo-batch/internal/jobs"
	"github.com/vrsandeep/seo-batch/internal/models"
	"github.com/vrsandeep/seo-batch/internal/store"
	"github.com/vrsandeep/seo-batch/internal/testutil"
	"go.uber.org/zap"
)

type fakeJobContext struct {
	cfg    *config.Config
	st     *store.Store
	jobMgr *jobs.JobManager
}

func (f *fakeJobContext) Config() *config.Config       { return f.cfg }
func (f *fakeJobContext) Store() *store.Store          { return f.st }
func (f *fakeJobContext) Logger() *zap.Logger          { return zap.NewNop() }
func (f *fakeJobContext) JobManager() *jobs.JobManager { return f.jobMgr }

func newJobContext(t *testing.T, retentionDays int) *fakeJobContext {
	t.Helper()
	cfg := &config.Config{}
	cfg.History.RetentionDays = retentionDays
	cfg.History.PruneIntervalMinutes = 60
	return &fakeJobContext{cfg: cfg, st: store.New(testutil.SetupTestDB(t)), jobMgr: jobs.NewManager(nil)}
}

func saveRun(t *testing.T, st *store.Store, id string, started time.Time) {
	t.Helper()
	run := models.NewBatchRun(id, []models.WorkItem{{URL: "https://a.com", Topic: "a", Language: models.LanguageEnglish, QueryText: "q"}}, 0)
	run.StartedAt = started
	require.NoError(t, st.SaveRun(run))
}

func TestPruneHistory(t *testing.T) {
	app := newJobContext(t, 30)
	saveRun(t, app.st, "old", time.Now().Add(-31*24*time.Hour))
	saveRun(t, app.st, "fresh", time.Now().Add(-29*24*time.Hour))

	jobs.PruneHistory(app)

	runs, err := app.st.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "fresh", runs[0].ID)
}

func TestPruneHistory_DisabledKeepsEverything(t *testing.T) {
	app := newJobContext(t, 0)
	saveRun(t, app.st, "old", time.Now().Add(-365*24*time.Hour))

	jobs.PruneHistory(app)

	runs, err := app.st.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStartJobs(t *testing.T) {
	app := newJobContext(t, 30)
	s := jobs.StartJobs(app)
	defer s.Stop()
	assert.Len(t, s.Jobs(), 1)

	disabled := newJobContext(t, 0)
	s2 := jobs.StartJobs(disabled)
	defer s2.Stop()
	assert.Empty(t, s2.Jobs())
}
