package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/jantaseva/civic-workflow/internal/application/dispatcher"
	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/application/service"
	"github.com/jantaseva/civic-workflow/internal/config"
	"github.com/jantaseva/civic-workflow/internal/infrastructure/channels"
	"github.com/jantaseva/civic-workflow/internal/infrastructure/persistence/repository"
	"github.com/jantaseva/civic-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/jantaseva/civic-workflow/internal/infrastructure/worker"
	httpserver "github.com/jantaseva/civic-workflow/internal/interfaces/http"
	"github.com/jantaseva/civic-workflow/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	_ = gotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := utils.NewKVLogger(logger)

	logger.Info("Starting Civic Report Workflow Service",
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := sqlite.Open(sqlite.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := sqlite.Migrate(db, cfg.Database.MigrationsDir, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	txManager := sqlite.NewDB(db, logger)

	// Initialize repositories
	reportRepo := repository.NewReportRepository(db, logger)
	deptRepo := repository.NewDepartmentRepository(db, logger)
	notifRepo := repository.NewNotificationRepository(db, logger)

	// Initialize delivery channels
	senders := []port.ChannelSender{
		channels.NewPushSender(logger),
		channels.NewSMSSender(cfg.Channels.SMSSender, logger),
		channels.NewEmailSender(cfg.Channels.EmailSenderName, logger),
	}

	// Initialize notification dispatcher
	disp := dispatcher.New(notifRepo, senders, dispatcher.Config{
		MaxRetries:   cfg.Dispatch.MaxRetries,
		RetryBackoff: cfg.Dispatch.RetryBackoff,
	}, appLogger)

	// Initialize services
	workflowSvc := service.NewWorkflowService(reportRepo, deptRepo, notifRepo, txManager, disp, appLogger)
	reportSvc := service.NewReportService(reportRepo, appLogger)
	deptSvc := service.NewDepartmentService(deptRepo, appLogger)

	// Initialize background workers
	manager := worker.NewManager(logger)
	manager.Register(worker.NewRedeliveryWorker(
		cfg.Dispatch.RedeliveryCron,
		cfg.Dispatch.StaleAfter,
		cfg.Dispatch.RedeliveryBatch,
		notifRepo,
		disp,
		logger,
	))
	if err := manager.StartAll(context.Background()); err != nil {
		logger.Fatal("Failed to start background workers", zap.Error(err))
	}

	// Initialize HTTP server
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, workflowSvc, reportSvc, deptSvc, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	// Graceful shutdown: stop workers, then drain in-flight dispatches
	if err := manager.StopAll(); err != nil {
		logger.Error("Worker shutdown error", zap.Error(err))
	}
	if err := disp.Close(); err != nil {
		logger.Error("Dispatcher shutdown error", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}
