// Command fiscan-worker runs the scan job scheduler and worker/resource
// governor: it drains the job queue, drives the per-document pipeline, and
// dispatches match notifications.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/karlennis/fiscan/internal/classifier"
	"github.com/karlennis/fiscan/internal/clients/llmclient"
	"github.com/karlennis/fiscan/internal/clients/metadata"
	"github.com/karlennis/fiscan/internal/clients/ocr"
	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/extract"
	"github.com/karlennis/fiscan/internal/matcher"
	"github.com/karlennis/fiscan/internal/notify"
	"github.com/karlennis/fiscan/internal/objectstore"
	"github.com/karlennis/fiscan/internal/scheduler"
	"github.com/karlennis/fiscan/internal/storage/surrealdb"
	"github.com/karlennis/fiscan/internal/worker"
)

func main() {
	configPath := os.Getenv("FISCAN_CONFIG")
	config, err := common.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLogger(config.Logging.Level)
	common.PrintBanner(config, logger)

	manager, err := surrealdb.NewScanManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to storage")
	}
	defer manager.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s3Client, err := newS3Client(ctx, config.ObjectStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create s3 client")
	}

	lister, err := objectstore.NewLister(s3Client, config.ObjectStore.Bucket, config.ObjectStore.GetFolderCacheTTL(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create object lister")
	}
	fetcher := objectstore.NewFetcher(s3Client, config.ObjectStore.Bucket,
		config.ObjectStore.GetMaxObjectBytes(), config.ObjectStore.GetStreamToDiskBytes(),
		config.ObjectStore.GetRateLimitPerSec(), logger)

	ocrClient := ocr.New(config.Clients.OCR.BaseURL, config.Clients.OCR.GetTimeout(), logger)
	memoryGate := func() bool { return worker.AvailableMemoryMB() > config.Worker.GetWarnRSSMB() }
	extractor := extract.New(config.Extract.GetTextLengthCap(), config.Extract.GetOCRMinCharThreshold(),
		config.Extract.GetOCRMaxPages(), ocrClient, memoryGate, logger)

	llm, err := llmclient.NewClient(ctx, config.Clients.Gemini.APIKey,
		llmclient.WithModel(orDefault(config.Clients.Gemini.Model, llmclient.DefaultModel)),
		llmclient.WithRateLimitPerSec(config.Clients.Gemini.GetRateLimitPerSec()),
		llmclient.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create llm client")
	}

	pipeline, err := classifier.New(llm, config.Classifier.GetCheapFilterChars(), config.Classifier.GetCacheSize(),
		config.Classifier.GetCallTimeout(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create classifier pipeline")
	}

	metadataClient := metadata.New(config.Clients.Metadata.BaseURL, config.Clients.Metadata.GetTimeout(), logger)
	matchEngine := matcher.New(metadataClient, logger)
	dispatcher := notify.New(config.Notify, manager.Deliveries, logger)

	governor, err := worker.New(worker.Deps{
		Jobs: manager.Jobs,
		Queue: manager.Queue,
		Checkpoints: manager.Checkpoints,
		Matches: manager.Matches,
		Subscribers: manager.Subscribers,
		Deliveries: manager.Deliveries,
		Audit: manager.Audit,
		Lister: lister,
		Fetcher: fetcher,
		Extractor: extractor,
		Classifier: pipeline,
		Matcher: matchEngine,
		Email: dispatcher,
	}, config.Worker, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create worker governor")
	}

	sched := scheduler.New(manager.Jobs, manager.Queue, config.Scheduler, logger)

	governor.Start(ctx)
	sched.Start(ctx)

	srv := startHealthServer(config.Server, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received")
	common.PrintShutdownBanner(logger)

	sched.Stop()
	governor.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("health server shutdown failed")
	}

	logger.Info().Msg("fiscan-worker stopped")
}

func newS3Client(ctx context.Context, cfg common.ObjectStoreConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
			o.UsePathStyle = true
		}
	}), nil
}

// startHealthServer exposes a liveness endpoint for process supervisors
// (non-goal excludes a full admin surface, but a health check is
// ambient infrastructure every teacher service carries).
func startHealthServer(cfg common.ServerConfig, logger *common.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("health server failed")
		}
	}()
	return srv
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
