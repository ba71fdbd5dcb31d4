package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hamta/tarabar/internal/dispatch"
	"github.com/hamta/tarabar/internal/orders"
	"github.com/hamta/tarabar/internal/queue"
	"github.com/hamta/tarabar/internal/server"
	"github.com/hamta/tarabar/internal/telemetry"
	"github.com/hamta/tarabar/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tarabar",
	Short:   "Tarabar - order ingestion and logistics dispatch service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server, ingestion poller and job workers",
	RunE:  runServe,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run a single ingestion sweep and exit",
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(ctx)
	}

	st, err := initStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}

	jobQueue, tokenCache := initQueueAndCache(cfg, logger)
	registry := initGatewayRegistry(cfg, tokenCache, logger)
	smsGateway := initSMSGateway(cfg, logger)
	metrics := telemetry.NewMetrics()

	orderSvc := orders.NewService(st, jobQueue, logger, metrics)
	engine := workflow.NewEngine(st, smsGateway, logger, metrics, workflow.Config{
		CustomerTemplate: cfg.SMSTemplateCustomerLookup,
		AdminTemplate:    cfg.SMSTemplateAdmin,
		Sender:           cfg.KavenegarSender,
	})
	dispatcher := dispatch.NewService(st, registry, logger, metrics)

	worker := queue.NewWorker(jobQueue, logger, cfg.WorkerCount)
	worker.Handle(queue.KindProcessOrder, func(ctx context.Context, job queue.Job) error {
		return orderSvc.ProcessOrder(ctx, job.ReceptorID, job.OrderID)
	})
	worker.Handle(queue.KindExecuteWorkflow, func(ctx context.Context, job queue.Job) error {
		return engine.Execute(ctx, job.ReceptorID, job.ShipmentID)
	})
	go worker.Run(ctx)

	poller := orders.NewPoller(st, jobQueue, logger, cfg.PollInterval)
	if cfg.IngestOnStartup {
		go poller.Run(ctx)
	}

	logger.Info("Starting Tarabar",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Int("workers", cfg.WorkerCount),
	)

	srv := server.New(server.Config{Port: cfg.Port}, st, dispatcher, poller, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := initStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}

	jobQueue, _ := initQueueAndCache(cfg, logger)

	poller := orders.NewPoller(st, jobQueue, logger, cfg.PollInterval)
	n, err := poller.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("ingestion sweep: %w", err)
	}

	logger.Info("Ingestion sweep complete", zap.Int("jobs_enqueued", n))
	return nil
}
