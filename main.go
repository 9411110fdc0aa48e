package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vrsandeep/seo-batch/internal/api"
	"github.com/vrsandeep/seo-batch/internal/core"
	"github.com/vrsandeep/seo-batch/internal/jobs"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "", "path to the config file (default ./config.yml when present)")
	flag.Parse()

	// Initialize the core application components
	app, err := core.New(*cfgPath)
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()
	logger := app.Logger()

	// Start the history retention schedule
	scheduler := jobs.StartJobs(app)

	// Setup the API server
	server := api.NewServer(app)
	addr := fmt.Sprintf(":%d", app.Config().Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		logger.Info("starting web server", zap.String("addr", httpServer.Addr), zap.String("backend", app.Config().Backend.URL))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	// Wait for an interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop()

	// A running batch records its remaining items as cancelled and is saved.
	if app.JobManager().Cancel() {
		logger.Info("cancelling running batch")
	}
	if err := app.JobManager().Wait(ctx); err != nil {
		logger.Warn("batch did not finish before shutdown", zap.Error(err))
	}

	// Attempt a graceful shutdown.
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
