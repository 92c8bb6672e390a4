// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"assetid-workers/internal/assetid/abbreviation"
	"assetid-workers/internal/assetid/engine"
	"assetid-workers/internal/common/aws"
	"assetid-workers/internal/common/camunda"
	"assetid-workers/internal/common/config"
	"assetid-workers/internal/common/database"
	"assetid-workers/internal/common/genai"
	"assetid-workers/internal/common/logger"
	"assetid-workers/internal/common/observability"
	"assetid-workers/internal/models"
	"assetid-workers/pkg/registry"

	gen "assetid-workers/internal/workers/asset-id/generate-asset-ids"
	mct "assetid-workers/internal/workers/asset-id/manage-code-table"
	sai "assetid-workers/internal/workers/asset-id/search-asset-ids"
	ved "assetid-workers/internal/workers/asset-id/validate-equipment-data"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewService(cfg.Logging.Level, cfg.Logging.Format, cfg.App.Name)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("environment", cfg.App.Environment))

	if err := config.ValidateForWorkers(cfg); err != nil {
		zapLog.Fatal("invalid worker configuration", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClient(camunda.ConfigFromSettings(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL code tables ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	store := database.NewCodeTableStore(pg)
	if err := store.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("code table schema setup failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Optional services ---
	var redisClient *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		zapLog.Info("Redis connected successfully")
	}

	var (
		indexer  gen.AssetIndex
		searcher sai.AssetSearcher
	)
	if cfg.Database.Elasticsearch.GetURL() != "" {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		assetIndexer := database.NewAssetIndexer(esClient, cfg.Database.Elasticsearch.AssetIndex, log)
		if err := assetIndexer.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("asset index setup failed", zap.Error(err))
		}
		indexer, searcher = assetIndexer, assetIndexer
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", cfg.Database.Elasticsearch.AssetIndex))
	}

	notifier, err := buildNotifier(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("notification setup failed", zap.Error(err))
	}

	eng, err := buildEngine(cfg, redisClient, log)
	if err != nil {
		zapLog.Fatal("engine setup failed", zap.Error(err))
	}

	// --- Workers ---
	generateHandler, err := gen.NewHandler(gen.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Logger:    log,
		Dependencies: gen.ServiceDependencies{
			Engine:        eng,
			Store:         store,
			Indexer:       indexer,
			Notifier:      notifier,
			Observability: obs,
		},
	})
	if err != nil {
		zapLog.Fatal("failed to create generate-asset-ids handler", zap.Error(err))
	}

	validateHandler, err := ved.NewHandler(ved.HandlerOptions{
		AppConfig:    cfg,
		Camunda:      camundaClient,
		Logger:       log,
		Dependencies: ved.ServiceDependencies{Vocabulary: eng.Equipment()},
	})
	if err != nil {
		zapLog.Fatal("failed to create validate-equipment-data handler", zap.Error(err))
	}

	searchHandler, err := sai.NewHandler(sai.HandlerOptions{
		AppConfig:    cfg,
		Camunda:      camundaClient,
		Logger:       log,
		Dependencies: sai.ServiceDependencies{Searcher: searcher},
	})
	if err != nil {
		zapLog.Fatal("failed to create search-asset-ids handler", zap.Error(err))
	}

	codeTableHandler, err := mct.NewHandler(mct.HandlerOptions{
		AppConfig:    cfg,
		Camunda:      camundaClient,
		Logger:       log,
		Dependencies: mct.ServiceDependencies{Store: store},
	})
	if err != nil {
		zapLog.Fatal("failed to create manage-code-table handler", zap.Error(err))
	}

	workers := []camunda.Worker{generateHandler, validateHandler, searchHandler, codeTableHandler}
	for _, w := range workers {
		if err := w.Register(); err != nil {
			zapLog.Fatal("worker registration failed", zap.String("taskType", w.GetTaskType()), zap.Error(err))
		}
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	server := newServer(cfg.Server.Address, func(ctx context.Context) error {
		if err := pg.Ping(ctx); err != nil {
			return err
		}
		for _, w := range workers {
			if !w.IsEnabled() {
				continue
			}
			if err := w.HealthCheck(ctx); err != nil {
				return fmt.Errorf("%s: %w", w.GetTaskType(), err)
			}
		}
		return nil
	})
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func buildEngine(cfg *config.Config, redisClient *database.RedisClient, log logger.Logger) (*engine.Engine, error) {
	engineCfg, err := engine.ConfigFromSettings(cfg.Generation)
	if err != nil {
		return nil, err
	}

	deps := engine.Dependencies{Logger: log}

	if path := cfg.Generation.VocabularyPath; path != "" {
		file, err := registry.LoadVocabulary(path)
		if err != nil {
			return nil, err
		}
		deps.Equipment = file.EquipmentVocabulary()
		deps.Locations = file.LocationVocabulary()
	}

	if cfg.APIs.GenAI.Enabled {
		client, err := genai.NewClient(cfg.APIs.GenAI, engineCfg.Rules.MaxLengths[models.LevelEquipment], log)
		if err != nil {
			return nil, err
		}
		var ai abbreviation.Abbreviator = client
		if redisClient != nil {
			ttl := time.Duration(cfg.Database.Redis.AbbreviationTTL) * time.Second
			ai = database.NewAbbreviationCache(redisClient.Client, client, ttl, log)
		}
		deps.Abbreviator = ai
	}

	return engine.New(deps, engineCfg)
}

func buildNotifier(ctx context.Context, cfg *config.Config, log logger.Logger) (gen.Notifier, error) {
	n := cfg.Notifications
	nc := aws.NotifierConfig{}

	if n.SNS.Enabled && n.SNS.TopicARN != "" {
		client, err := aws.NewSNSClient(ctx, n.AWS.Region)
		if err != nil {
			return nil, err
		}
		nc.Publisher, nc.TopicARN = client, n.SNS.TopicARN
	}
	if n.Email.Enabled && n.Email.FromEmail != "" && len(n.Email.To) > 0 {
		client, err := aws.NewSESClient(ctx, n.AWS.Region)
		if err != nil {
			return nil, err
		}
		nc.Sender, nc.From, nc.To = client, n.Email.FromEmail, n.Email.To
	}

	notifier := aws.NewRunNotifier(nc, log)
	if !notifier.Enabled() {
		return nil, nil
	}
	return notifier, nil
}

func newServer(addr string, ready func(context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", "")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
		writeStatus(w, http.StatusOK, "ready", "")
	})
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func writeStatus(w http.ResponseWriter, code int, status, detail string) {
	body := map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if detail != "" {
		body["error"] = detail
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
