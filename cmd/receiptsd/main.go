package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/core"
	"github.com/joseph-ayodele/receipt-parser/internal/core/async"
	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
	"github.com/joseph-ayodele/receipt-parser/internal/export"
	"github.com/joseph-ayodele/receipt-parser/internal/ingest"
	"github.com/joseph-ayodele/receipt-parser/internal/metrics"
	"github.com/joseph-ayodele/receipt-parser/internal/ocr"
	repo "github.com/joseph-ayodele/receipt-parser/internal/repository"
	"github.com/joseph-ayodele/receipt-parser/internal/server"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file preloaded before reading the environment")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := common.LoadEnvFile(*envFile); err != nil {
		logger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.URL,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	filesRepo := repo.NewReceiptFileRepository(db, logger)
	receiptsRepo := repo.NewReceiptRepository(db, cfg.Parser.DefaultCurrency, logger)

	extractor := ocr.NewExtractor(ocr.Config{
		HeicConverter:    cfg.OCR.HeicConverter,
		TessdataDir:      cfg.OCR.TessdataDir,
		Timeout:          cfg.OCR.Timeout,
		CommandTimeout:   cfg.OCR.CommandTimeout,
		ArtifactCacheDir: "./tmp",
	}, logger)

	m := metrics.New()
	processor := core.NewProcessor(logger, extractor, filesRepo, receiptsRepo,
		core.WithRecorder(m),
		core.WithParser(parser.New(
			parser.WithLogger(logger),
			parser.WithReviewThreshold(cfg.Parser.ReviewThreshold),
		)),
	)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Server.Workers),
		async.WithQueueSize(cfg.Server.QueueSize),
		async.WithProcessTimeout(cfg.Server.ProcessTimeout),
	)

	fed := make(chan struct{})
	if cfg.Server.WatchDir != "" {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Server.WatchDir},
			InitialScan: true,
			Debounce:    500 * time.Millisecond,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("failed to start watcher", "dir", cfg.Server.WatchDir, "error", err)
			os.Exit(1)
		}
		go func() {
			for err := range errs {
				m.ObserveFailure("watch")
				logger.Warn("watcher error", "error", err)
			}
		}()
		go func() {
			defer close(fed)
			ingest.Feed(ctx, events, queue, logger)
		}()
		logger.Info("watching inbox", "dir", cfg.Server.WatchDir)
	} else {
		close(fed)
	}

	svc := server.NewService(processor, receiptsRepo, export.NewService(receiptsRepo, filesRepo, logger), logger)
	grpcServer, healthServer := server.NewGRPCServer(svc, logger)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	logger.Info("receiptsd listening", "addr", cfg.Server.GRPCAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics serve error", "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", cfg.Server.MetricsAddr)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	<-fed

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	logger.Info("stopped")
}
