package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"epicalib/adapters/db"
	"epicalib/domain/scenario"
	"epicalib/internal/api"
	"epicalib/internal/calibration"
	"epicalib/internal/config"
)

func main() {
	runOnStart := flag.Bool("run", false, "run the scenario matrix in the background and stream its progress")
	flag.Parse()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, appConfig.Database.Driver, appConfig.Database.URL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer conn.Close()

	store := db.NewResultRepository(conn)
	hub := api.NewProgressHub()
	defer hub.Close()

	if *runOnStart {
		if err := appConfig.RequireSimulator(); err != nil {
			log.Fatalf("Cannot run scenario matrix: %v", err)
		}
		go runMatrix(ctx, appConfig, store, hub)
	}

	server := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           api.NewServer(store, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Server] shutdown: %v", err)
		}
	}()

	log.Printf("Starting epicalib results server on port %s", appConfig.Server.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}

// runMatrix runs the configured matrix once, saving outcomes to the store
// and streaming progress to websocket clients.
func runMatrix(ctx context.Context, appConfig *config.Config, store *db.ResultRepository, hub *api.ProgressHub) {
	m, err := scenario.Load(appConfig.Suite.MatrixFile)
	if err != nil {
		log.Printf("[Suite] failed to load matrix: %v", err)
		return
	}

	if appConfig.Suite.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, appConfig.Suite.Timeout)
		defer cancel()
	}

	suite := calibration.NewSuite(calibration.SuiteConfig{
		BaselineParams: appConfig.Simulator.BaselineParams,
		HouseholdFile:  appConfig.Simulator.HouseholdFile,
		LineNumber:     appConfig.Simulator.LineNumber,
		WorkspaceRoot:  appConfig.Workspace.Root,
		KeepArtifacts:  appConfig.Workspace.KeepArtifacts,
		Parallelism:    appConfig.Suite.Parallelism,
	}, calibration.ExecutorFactory(appConfig.Simulator.Binary, appConfig.Simulator.TimeSeriesFile, appConfig.Simulator.TransmissionFile), store, hub)

	result, err := suite.Run(ctx, m)
	if err != nil {
		log.Printf("[Suite] stopped early: %v", err)
	}
	if result == nil {
		return
	}
	passed, failed, errored := result.Counts()
	log.Printf("[Suite] %s finished: %d passed, %d failed, %d errored", result.SuiteID, passed, failed, errored)
}
