// Package main provides the embedded classlog core for the mobile shell.
// The shell communicates via REST/WebSocket on localhost.
package main

import (
	"net/http"
	"os"

	"github.com/yctsai/classlog/backend/cmd/classlog/handlers"
	"github.com/yctsai/classlog/backend/internal/connectivity"
	"github.com/yctsai/classlog/backend/internal/db"
	"github.com/yctsai/classlog/backend/internal/feedback"
	"github.com/yctsai/classlog/backend/internal/logging"
	"github.com/yctsai/classlog/backend/internal/submit"
	syncengine "github.com/yctsai/classlog/backend/internal/sync"
)

func main() {
	logging.Init(os.Stdout, logLevel())

	dataDir := getEnv("CLASSLOG_DATA_DIR", "./data")
	remoteURL := getEnv("CLASSLOG_REMOTE_URL", "http://localhost:9000")
	token := os.Getenv("CLASSLOG_TOKEN")
	port := getEnv("CLASSLOG_PORT", "8090")

	database, err := db.Open(dataDir)
	if err != nil {
		logging.Error("Failed to open database", err, map[string]interface{}{"data_dir": dataDir})
		os.Exit(1)
	}
	defer database.Close()

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		logging.Error("Failed to initialize migrations", err, nil)
		os.Exit(1)
	}
	if err := migrator.Up(); err != nil {
		logging.Error("Failed to run migrations", err, nil)
		os.Exit(1)
	}

	repo := db.NewRepository(database.DB)
	defer repo.Close()

	// Assume online until the shell reports otherwise; a wrong guess just
	// produces one failed attempt that is deferred and retried.
	monitor := connectivity.NewMonitor(true)
	submitter := submit.NewClient(remoteURL, token)

	engine := syncengine.NewEngine(repo, submitter, monitor)

	hub := NewWSHub()
	engine.SetEventHandler(feedback.NewToaster(hub, feedback.DefaultDuration))

	if err := engine.Init(); err != nil {
		logging.Error("Failed to initialize sync engine", err, nil)
		os.Exit(1)
	}

	eventsHandler := handlers.NewEventsHandler(engine)
	syncHandler := handlers.NewSyncHandler(engine, monitor)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", eventsHandler.Create)
	mux.HandleFunc("/api/events/recent", eventsHandler.Recent)
	mux.HandleFunc("/api/sync/status", syncHandler.Status)
	mux.HandleFunc("/api/sync/reconcile", syncHandler.Reconcile)
	mux.HandleFunc("/api/connectivity", syncHandler.Connectivity)
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"classlog"}`))
	})

	logging.Info("classlog core starting", map[string]interface{}{
		"port":    port,
		"pending": engine.PendingCount(),
	})

	if err := http.ListenAndServe("localhost:"+port, mux); err != nil {
		logging.Error("Server stopped", err, nil)
		os.Exit(1)
	}
}

// getEnv reads an environment variable with a fallback.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// logLevel maps CLASSLOG_LOG_LEVEL onto the logging package's levels.
func logLevel() logging.LogLevel {
	switch os.Getenv("CLASSLOG_LOG_LEVEL") {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
