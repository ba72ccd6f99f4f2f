package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/genai-ecommerce/go-backend/internal/cfg"
	v1Http "github.com/genai-ecommerce/go-backend/internal/delivery/v1/http"
	"github.com/genai-ecommerce/go-backend/internal/infrastructure/embedder"
	"github.com/genai-ecommerce/go-backend/internal/infrastructure/feed"
	"github.com/genai-ecommerce/go-backend/internal/infrastructure/kafka"
	minioInfra "github.com/genai-ecommerce/go-backend/internal/infrastructure/minio"
	"github.com/genai-ecommerce/go-backend/internal/recommender"
	s3Repo "github.com/genai-ecommerce/go-backend/internal/repository/minio"
	"github.com/genai-ecommerce/go-backend/internal/repository/pgdb"
	pgdbConv "github.com/genai-ecommerce/go-backend/internal/repository/pgdb/converter/generated"
	qdrantRepo "github.com/genai-ecommerce/go-backend/internal/repository/qdrant"
	"github.com/genai-ecommerce/go-backend/internal/repository/redis"
	redisConv "github.com/genai-ecommerce/go-backend/internal/repository/redis/converter/generated"
	"github.com/genai-ecommerce/go-backend/internal/usecase"
	"github.com/genai-ecommerce/go-backend/pkg/clients"
	"github.com/genai-ecommerce/go-backend/pkg/closer"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	"github.com/genai-ecommerce/go-backend/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/jimlawless/whereami"
)

// Run собирает зависимости, поднимает HTTP-сервер и refit-воркер
// и блокируется до сигнала завершения.
func Run() {
	logger := logger.NewSlogLogger()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	// Контекст жизни приложения: останавливает фоновые воркеры при завершении.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	c := closer.NewCloser(2 * time.Second)

	db, err := initPGDB(logger, cfg)
	if err != nil {
		logger.Errorf(err, "failed to initialize database")
		os.Exit(1)
	}
	c.Add(func(ctx context.Context) error {
		db.Close()
		return nil
	})

	prConv := pgdbConv.NewProductConverterImpl()
	catConv := pgdbConv.NewCategoryConverterImpl()
	infoConv := redisConv.NewProductInfoConverterImpl()

	productRepo := pgdb.NewProductRepo(db.Pool, prConv)
	categoryRepo := pgdb.NewCategoryRepo(db.Pool, catConv)

	minioClient, err := clients.NewMinIOClient(cfg)
	if err != nil {
		logger.Errorf(err, "failed to initialize minio client")
		os.Exit(1)
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName); err != nil {
		minioCancel()
		logger.Errorf(err, "failed to initialize MinIO bucket")
		os.Exit(1)
	}
	minioCancel()

	imageRepo := s3Repo.NewImageRepo(minioClient, cfg.Minio)

	imgHTTPClient := retryablehttp.NewClient()
	imgHTTPClient.RetryMax = 3
	imgHTTPClient.Logger = nil
	imagesInfra := minioInfra.NewMinioInfrastructure(imageRepo, imgHTTPClient, cfg.Minio, logger, appCtx)
	c.Add(imagesInfra.WaitForCleanup)

	qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
	if err != nil {
		logger.Errorf(err, "failed to initialize qdrant")
		os.Exit(1)
	}
	qdrantCtx, qdrantCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := clients.EnsureCollection(qdrantCtx, qdrantClient); err != nil {
		qdrantCancel()
		logger.Errorf(err, "failed to initialize qdrant")
		os.Exit(1)
	}
	qdrantCancel()
	c.Add(func(ctx context.Context) error {
		return qdrantClient.Client.Close()
	})

	embRepo := qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, cfg.Qdrant)

	redisClient := clients.NewRedisClient(cfg.Redis)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(redisCtx); err != nil {
		redisCancel()
		logger.Errorf(err, "failed to connect to redis")
		os.Exit(1)
	}
	redisCancel()
	c.Add(func(ctx context.Context) error {
		return redisClient.Client.Close()
	})

	cacheRepo := redis.NewCacheRepo(redisClient, infoConv, cfg.Redis, logger)

	embedderSvc := embedder.NewEmbedderService(cfg.Embedder, logger)

	clusterEngine := recommender.NewClusteringRecommender(cfg.Recs, logger)
	embeddingEngine := recommender.NewEmbeddingRecommender(embedderSvc, embRepo, logger)

	recUC := usecase.NewRecommendationUC(clusterEngine, embeddingEngine, productRepo, logger)

	feedClient := feed.NewFeedClient(cfg.Feed, logger)

	producer, err := kafka.NewProducer(logger, cfg.Kafka)
	if err != nil {
		logger.Errorf(err, "failed to initialize kafka producer")
		os.Exit(1)
	}
	if err := producer.EnsureTopic(10 * time.Second); err != nil {
		logger.Warnf("failed to ensure kafka topic: %v", err)
	}
	c.Add(func(ctx context.Context) error {
		return producer.Close()
	})

	catalogUC := usecase.NewCatalogUC(productRepo, categoryRepo, cacheRepo, db.Pool, feedClient, imagesInfra, producer, logger)

	refitWorker := kafka.NewRefitWorker(cfg.Kafka, recUC, logger)
	refitWorker.Start(appCtx)
	c.Add(func(ctx context.Context) error {
		refitWorker.Stop()
		return nil
	})

	// Прогреваем движки на текущем состоянии каталога: embedding-движок
	// поднимет сохранённые векторы из Qdrant и пересчитает только изменившееся.
	warmCtx, warmCancel := context.WithTimeout(appCtx, 5*time.Minute)
	if err := recUC.Refit(warmCtx); err != nil {
		logger.Warnf("initial engine fit failed, engines are empty until next ingest: %v", err)
	}
	warmCancel()

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, logger)
	router.Init(catalogUC, recUC, cfg.Recs)

	httpSrv := v1Http.NewServer(r, cfg.Http)
	c.Add(httpSrv.Stop)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server started on port %s", cfg.Http.Port)
		if err := httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf(err, "HTTP server failed: %v", err)
			errCh <- err
		}
	}()

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	// === Graceful shutdown: ресурсы закрываются в порядке LIFO ===
	appCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := c.Close(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown finished with errors: %v", err)
	}

	logger.Infof("Application shutdown complete")
	if appErr != nil {
		os.Exit(1)
	}
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		logger.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
