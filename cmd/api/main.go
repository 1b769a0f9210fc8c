// @title           Document RAG API
// @version         1.0
// @description     Cached retrieval-augmented question answering over indexed documents, with PDF highlight rendering.
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support
// @contact.url
// @contact.email   ank.github@gmail.com

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-KEY
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/data/postgresStore"
	jobmodel "github.com/akolanti/GoDocRAG/internal/domain/jobModel"
	"github.com/akolanti/GoDocRAG/internal/handlers"
	"github.com/akolanti/GoDocRAG/internal/job"
	"github.com/akolanti/GoDocRAG/internal/mcpServer"
	"github.com/akolanti/GoDocRAG/internal/middleware"
	"github.com/akolanti/GoDocRAG/internal/rag"
	"github.com/akolanti/GoDocRAG/internal/schedule"
	"github.com/akolanti/GoDocRAG/internal/server"
	"github.com/akolanti/GoDocRAG/internal/worker"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"github.com/spf13/cobra"
)

var (
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	settings := config.Load()
	logger_i.Init(settings.IsProd, settings.LogLevel)
	logger := logger_i.NewLogger("main")

	rootCmd := &cobra.Command{
		Use:          "docrag",
		Short:        "document RAG query engine",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API, MCP endpoint, reindex workers and cache retention job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return serve(settings)
		},
	}
	serveCmd.Flags().StringVar(&settings.ListenAddr, "listen-addr", settings.ListenAddr, "server listen address")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply the embedded SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.ValidateStorage(); err != nil {
				return err
			}
			db, err := postgresStore.Connect(cmd.Context(), settings.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			return postgresStore.ApplyMigrations(cmd.Context(), db)
		},
	}

	invalidateCmd := &cobra.Command{
		Use:   "invalidate <documentID>",
		Short: "drop a document's ephemeral cache keys and semantic cache rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.ValidateStorage(); err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			st, err := openStorage(ctx, settings)
			if err != nil {
				return err
			}
			defer st.db.Close()

			svc := rag.NewService(rag.Dependencies{
				SemanticCache: st.semanticCache,
				ResponseCache: st.responseCache(),
			}, rag.OptionsFromSettings(settings))
			inv, err := svc.InvalidateDocument(ctx, args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "document %s: %d ephemeral keys, %d semantic rows\n", args[0], inv.EphemeralKeys, inv.SemanticRows)
			return err
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, invalidateCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serve(settings *config.Settings) error {
	logger := logger_i.NewLogger("main")

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	st, err := openStorage(serviceContext, settings)
	if err != nil {
		return err
	}
	defer st.db.Close()
	if err := postgresStore.ApplyMigrations(serviceContext, st.db); err != nil {
		return err
	}

	//init job service and job store
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		DispatcherChannel: dispatcherChannel,
		JobStore:          st.jobStore(serviceContext),
	}
	logger.Info("Starting job service")
	service := job.InitJobService(serviceConfig)

	ragService, err := buildRAGService(serviceContext, settings, st)
	if err != nil {
		logger.Error("One or more external services failed to initialize. Shutting down.", "error", err)
		return err
	}

	mcp, err := mcpServer.NewServer(ragService)
	if err != nil {
		return err
	}

	middleware.InitAuth(settings.APIKey)
	middleware.StartLimiterCleanup(serviceContext)
	handlers.InitJobHandler(service)
	handlers.InitQueryHandlers(ragService, buildHighlightRenderer(settings, st))
	handlers.InitHealthHandler(st.healthChecks())

	//init worker pool
	worker.InitServices(service, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//semantic cache retention
	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(schedule.NewPruneSemanticCacheJob(st.semanticCache, settings.SemanticCacheRetention), settings.SemanticCacheCleanupCron); err != nil {
		return fmt.Errorf("schedule semantic cache retention: %w", err)
	}
	scheduler.Start(serviceContext)
	defer scheduler.Stop()

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(settings.ListenAddr, mcp.Handler())

	<-stopExecution
	logger.Info("Server stopped")
	return nil
}
