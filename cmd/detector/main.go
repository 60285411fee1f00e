package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oceansentry/slick-detect/internal/adapter/catalog"
	httpadapter "github.com/oceansentry/slick-detect/internal/adapter/http"
	"github.com/oceansentry/slick-detect/internal/adapter/sink"
	"github.com/oceansentry/slick-detect/internal/classifier"
	"github.com/oceansentry/slick-detect/internal/config"
	"github.com/oceansentry/slick-detect/internal/domain"
	"github.com/oceansentry/slick-detect/internal/feature"
	"github.com/oceansentry/slick-detect/internal/observability"
	"github.com/oceansentry/slick-detect/internal/pipeline"
	"github.com/oceansentry/slick-detect/internal/postprocess"
	"github.com/oceansentry/slick-detect/internal/raster"
	"github.com/oceansentry/slick-detect/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	registry, err := domain.LoadRegistryFile(cfg.AOIConfigPath)
	if err != nil {
		logger.Error("failed to load aoi registry", "path", cfg.AOIConfigPath, "error", err)
		os.Exit(1)
	}

	// A missing or corrupt artifact is fatal: the run loop must never start
	// without a loadable classifier.
	model, err := classifier.Load(cfg.ModelPath)
	if err != nil {
		logger.Error("failed to load classifier", "path", cfg.ModelPath, "error", err)
		os.Exit(1)
	}

	featureLevel, err := feature.ParseLevel(cfg.FeatureLevel)
	if err != nil {
		logger.Error("invalid feature level", "error", err)
		os.Exit(1)
	}
	if want := feature.Count(featureLevel); model.FeatureCount() != want {
		logger.Error("classifier does not match feature level",
			"model_features", model.FeatureCount(),
			"level", cfg.FeatureLevel,
			"level_features", want,
		)
		os.Exit(1)
	}

	clusterParams, err := postprocess.ParsePreset(cfg.PostprocessLevel)
	if err != nil {
		logger.Error("invalid postprocess level", "error", err)
		os.Exit(1)
	}
	if cfg.ConfidenceThreshold > 0 {
		clusterParams.MinConfidence = cfg.ConfidenceThreshold
	}

	resultSink, closeSink, err := buildSink(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize result sink", "kind", cfg.SinkKind, "error", err)
		os.Exit(1)
	}
	defer closeSink()

	store := scheduler.NewStore(cfg.StatePath)
	if err := store.Load(); err != nil {
		logger.Error("failed to load pipeline state", "path", cfg.StatePath, "error", err)
		os.Exit(1)
	}

	tiles := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogToken, cfg.CatalogTimeout, logger)

	orchestrator := pipeline.New(
		tiles,
		raster.Preprocessor{
			ConvertToDB:   cfg.ConvertToDB,
			Filter:        raster.SpeckleFilter(cfg.SpeckleFilter),
			KernelRadius:  cfg.SpeckleKernel,
			Normalization: raster.Normalization(cfg.Normalization),
		},
		raster.Extractor{Size: cfg.PatchSize, Stride: cfg.Stride},
		feature.Extractor{Level: featureLevel},
		model,
		clusterParams,
		resultSink,
		store,
		logger,
		metrics,
	)

	trigger, err := buildTrigger(cfg)
	if err != nil {
		logger.Error("invalid schedule window", "error", err)
		os.Exit(1)
	}

	runner := scheduler.NewRunner(
		registry,
		tiles,
		orchestrator,
		store,
		trigger,
		scheduler.Policy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.BackoffBase, Cap: cfg.BackoffCap},
		cfg.ScheduleInterval,
		time.Duration(cfg.LookbackDays)*24*time.Hour,
		logger,
		metrics,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := runner.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// buildSink picks the result sink by SINK_KIND and returns it with its
// cleanup function.
func buildSink(cfg *config.Config, logger *slog.Logger) (pipeline.ResultSink, func(), error) {
	switch cfg.SinkKind {
	case "file":
		f, err := sink.NewFile(cfg.ResultsDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return f, func() {}, nil
	case "kafka":
		k := sink.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		return k, func() {
			if err := k.Close(); err != nil {
				logger.Error("kafka sink close error", "error", err)
			}
		}, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		p, err := sink.NewPostgres(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {
			if err := p.Close(); err != nil {
				logger.Error("postgres sink close error", "error", err)
			}
		}, nil
	default:
		return nil, nil, errors.New("unknown sink kind " + cfg.SinkKind)
	}
}

func buildTrigger(cfg *config.Config) (scheduler.Trigger, error) {
	if !cfg.WindowEnabled() {
		return scheduler.IntervalTrigger{}, nil
	}
	return scheduler.NewTimeWindowTrigger(cfg.ScheduleWindowStart, cfg.ScheduleWindowEnd)
}
