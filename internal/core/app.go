package core

import (
	"database/sql"
	"fmt"

	"github.com/vrsandeep/seo-batch/internal/assets"
	"github.com/vrsandeep/seo-batch/internal/backend"
	"github.com/vrsandeep/seo-batch/internal/batch"
	"github.com/vrsandeep/seo-batch/internal/config"
	"github.com/vrsandeep/seo-batch/internal/db"
	"github.com/vrsandeep/seo-batch/internal/jobs"
	"github.com/vrsandeep/seo-batch/internal/orchestrator"
	"github.com/vrsandeep/seo-batch/internal/progress"
	"github.com/vrsandeep/seo-batch/internal/store"
	"github.com/vrsandeep/seo-batch/internal/websocket"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags "-X .../core.Version=...".
var Version = "dev"

// App holds the core components of the application that are shared
// between the server and the CLI.
type App struct {
	config  *config.Config
	db      *sql.DB
	store   *store.Store
	logger  *zap.Logger
	jobs    *jobs.JobManager
	wsHub   *websocket.Hub
	backend *backend.Client
	dialer  *progress.Dialer
	Version string
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, and running migrations.
// An empty cfgPath reads config.yml from the current directory when present.
func New(cfgPath string) (*App, error) {
	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database, assets.MigrationsFS, logger); err != nil {
		// We can't proceed without a valid database schema.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	app := NewWithConfig(cfg, database, logger)
	go app.wsHub.Run()

	logger.Info("core application setup complete",
		zap.String("backend", cfg.Backend.URL),
		zap.String("database", cfg.Database.Path))
	return app, nil
}

// NewWithConfig wires an App around an already opened database. The caller
// starts the hub with WsHub().Run when it needs one; Close stops it.
func NewWithConfig(cfg *config.Config, database *sql.DB, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := websocket.NewHub()
	hub.SetLogger(logger.Named("hub"))

	dialer := progress.NewDialer(cfg.Backend.URL, logger.Named("progress"))
	if cfg.Progress.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = cfg.Progress.HandshakeTimeout
	}

	return &App{
		config:  cfg,
		db:      database,
		store:   store.New(database),
		logger:  logger,
		jobs:    jobs.NewManager(logger.Named("jobs")),
		wsHub:   hub,
		backend: backend.NewClient(cfg.Backend.URL, logger.Named("backend")),
		dialer:  dialer,
		Version: Version,
	}
}

// NewLogger builds the application logger from the log section of cfg.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Log.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
		}
		zc.Level = level
	}
	return zc.Build()
}

func (a *App) Config() *config.Config       { return a.config }
func (a *App) DB() *sql.DB                  { return a.db }
func (a *App) Store() *store.Store          { return a.store }
func (a *App) Logger() *zap.Logger          { return a.logger }
func (a *App) JobManager() *jobs.JobManager { return a.jobs }
func (a *App) WsHub() *websocket.Hub        { return a.wsHub }
func (a *App) Backend() *backend.Client     { return a.backend }
func (a *App) Dialer() *progress.Dialer     { return a.dialer }

// Submitter picks the backend endpoint for a generation mode. Meta-only
// batches go through /generate when batch.use_generate_for_meta is set.
func (a *App) Submitter(mode batch.GenerationMode) orchestrator.Submitter {
	if mode == batch.ModeMetaOnly && a.config.Batch.UseGenerateForMeta {
		return backend.GenerateSubmitter{Client: a.backend}
	}
	return backend.ProcessSubmitter{Client: a.backend}
}

// NewRunner returns a batch runner wired to the backend and its progress
// channels, reporting to reporter.
func (a *App) NewRunner(mode batch.GenerationMode, reporter orchestrator.Reporter) *orchestrator.Runner {
	return &orchestrator.Runner{
		Submitter: a.Submitter(mode),
		Open:      orchestrator.DialerOpener(a.dialer),
		Reporter:  reporter,
		Delay:     a.config.Delay(),
		Logger:    a.logger.Named("orchestrator"),
	}
}

// Close gracefully closes the application's resources, like the DB connection.
func (a *App) Close() {
	a.wsHub.Stop()
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}
