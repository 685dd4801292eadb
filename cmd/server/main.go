package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/expensio/approval-engine/internal/application/port"
	"github.com/expensio/approval-engine/internal/application/service"
	"github.com/expensio/approval-engine/internal/config"
	"github.com/expensio/approval-engine/internal/export"
	"github.com/expensio/approval-engine/internal/infrastructure/external/exchange"
	"github.com/expensio/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/expensio/approval-engine/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/expensio/approval-engine/internal/interfaces/http"
	"github.com/expensio/approval-engine/pkg/database"
	"github.com/expensio/approval-engine/pkg/utils"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

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

	logger.Info("Starting expense approval engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	txDB := sqlite.NewDB(db.DB, logger)

	expenseRepo := repository.NewExpenseRepository(db.DB, logger)
	ruleRepo := repository.NewRuleRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	companyRepo := repository.NewCompanyRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)

	converter := exchange.NewConverter(exchange.Config{
		BaseURL:  cfg.Exchange.BaseURL,
		Timeout:  cfg.Exchange.Timeout,
		CacheTTL: cfg.Exchange.CacheTTL,
	}, logger)

	expenseService := service.NewExpenseService(
		expenseRepo, ruleRepo, userRepo, companyRepo, historyRepo,
		converter, txDB, port.SystemClock{}, logger,
	)
	ruleService := service.NewRuleService(ruleRepo, userRepo, logger)
	reportService := service.NewReportService(
		expenseService, userRepo, export.NewExcelReporter(logger), logger,
	)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, expenseService, ruleService, reportService, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}
