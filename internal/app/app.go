package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/visual-search/internal/cfg"
	v1Grpc "github.com/DRSN-tech/visual-search/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/visual-search/internal/delivery/v1/http"
	"github.com/DRSN-tech/visual-search/internal/detector"
	"github.com/DRSN-tech/visual-search/internal/embedder"
	"github.com/DRSN-tech/visual-search/internal/index"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/visual-search/internal/infrastructure/minio"
	ml_service "github.com/DRSN-tech/visual-search/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/visual-search/internal/metrics"
	"github.com/DRSN-tech/visual-search/internal/repository/memory"
	s3Repo "github.com/DRSN-tech/visual-search/internal/repository/minio"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb"
	qdrantRepo "github.com/DRSN-tech/visual-search/internal/repository/qdrant"
	"github.com/DRSN-tech/visual-search/internal/repository/redis"
	"github.com/DRSN-tech/visual-search/internal/search"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/closer"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/DRSN-tech/visual-search/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

// App собирает зависимости сервиса. Ресурсы регистрируются в closer
// в порядке создания и закрываются в обратном.
type App struct {
	cfg     *config.Config
	logger  logger.Logger
	closer  *closer.Closer
	metrics *metrics.Metrics

	db       *postgres.PgDatabase
	engine   *search.Engine
	searchUC *usecase.SearchUseCase
	indexUC  *usecase.IndexUseCase
	producer *kafka.Producer
	outbox   *kafka.OutboxWorker
}

func NewApp(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *App, err error) {
	a := &App{
		cfg:     cfg,
		logger:  log,
		closer:  closer.NewCloser(5 * time.Second),
		metrics: metrics.New(cfg.Log.Service),
	}
	defer func() {
		if err != nil {
			if closeErr := a.closer.Close(context.Background()); closeErr != nil {
				log.Warnf("partial init cleanup: %v", closeErr)
			}
		}
	}()

	a.db, err = initPGDB(log, cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddSimple("postgres", func() error {
		a.db.Close()
		return nil
	})

	productRepo := pgdb.NewProductRepo(a.db.Pool)
	categoryRepo := pgdb.NewCategoryRepo(a.db.Pool)
	versionRepo := pgdb.NewProductEmbeddingVersionRepo(a.db.Pool)
	buildRepo := pgdb.NewIndexBuildRepo(a.db.Pool)

	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioCtx, minioCancel := context.WithTimeout(ctx, startupTimeout)
	err = clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName)
	minioCancel()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	imageRepo := s3Repo.NewImageRepo(minioClient, cfg.Minio)
	catalog := minioInfra.NewCatalogInfrastructure(imageRepo, cfg.Minio, cfg.Build.CatalogPrefix, log)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	artifactsInfra := minioInfra.NewArtifactsInfrastructure(imageRepo, cfg.Minio, log, cleanupCtx)
	a.closer.Add("minio cleanup", func(ctx context.Context) error {
		defer cleanupCancel()
		return artifactsInfra.WaitForCleanup(ctx)
	})

	redisClient := clients.NewRedisClient(cfg.Redis)
	a.closer.AddSimple("redis", redisClient.Close)

	redisCtx, redisCancel := context.WithTimeout(ctx, startupTimeout)
	err = redisClient.Ping(redisCtx)
	redisCancel()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cacheRepo := redis.NewCacheRepo(redisClient, cfg.Redis, cfg.Search.CacheTTL, log)

	emb, proposer, err := a.initModels(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	det := detector.New(detector.Config{
		Enabled:             cfg.Detector.Enabled,
		ConfidenceThreshold: cfg.Detector.ConfidenceThreshold,
		MaxRegions:          cfg.Detector.MaxRegions,
		FallbackOnEmpty:     cfg.Detector.FallbackOnEmpty,
	}, proposer, log)

	a.engine = search.NewEngine(det, emb, log, search.WithMetrics(a.metrics))

	store, err := a.initEmbeddingStore(ctx, emb.Dimension())
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	deps := usecase.IndexDeps{
		Catalog:    catalog,
		Embeddings: store,
		Detector:   det,
		Embedder:   emb,
		Builder: index.NewBuilder(index.BuilderOptions{
			Kind:         cfg.Index.Kind,
			Dimension:    emb.Dimension(),
			ModelVersion: emb.ModelVersion(),
			Trees:        cfg.Index.Trees,
			SearchK:      cfg.Index.SearchK,
		}),
		Artifacts:  index.NewArtifacts(cfg.Index.Dir),
		Engine:     a.engine,
		Logger:     log,
		DBPool:     a.db.Pool,
		Categories: categoryRepo,
		Products:   productRepo,
		Versions:   versionRepo,
		Builds:     buildRepo,
		Cache:      cacheRepo,
		Metrics:    a.metrics,
		Workers:    cfg.Build.Workers,
		SearchK:    cfg.Index.SearchK,

		CallTimeout: cfg.Build.CallTimeout,
	}
	if cfg.Index.Publish {
		deps.ArtifactsInfra = artifactsInfra
	}

	if cfg.Kafka.Enabled {
		a.producer, err = kafka.NewProducer(log, cfg.Kafka)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		a.closer.AddSimple("kafka producer", a.producer.Close)

		if err := a.producer.EnsureTopic(startupTimeout); err != nil {
			log.Warnf("kafka topic %s not ensured: %v", cfg.Kafka.Topic, err)
		}

		outboxRepo := pgdb.NewOutboxEventRepo(a.db.Pool)
		a.outbox = kafka.NewOutboxWorker(outboxRepo, log, a.producer, a.db.Dsn)
		deps.Outbox = outboxRepo
		deps.Events = a.producer
	}

	a.indexUC = usecase.NewIndexUC(deps)
	a.searchUC = usecase.NewSearchUC(a.engine, catalog, productRepo, cacheRepo, a.metrics, cfg.Search, cfg.Build.CatalogPrefix, log)

	return a, nil
}

// initModels выбирает эмбеддер. ML-клиент нужен и детектору: при histogram-бэкенде
// он создаётся только для включённой детекции.
func (a *App) initModels(ctx context.Context) (embedder.Embedder, detector.RegionProposer, error) {
	var ml *ml_service.MLService
	if a.cfg.Embedder.Backend == config.EmbedderBackendML || a.cfg.Detector.Enabled {
		conn, err := grpc.NewClient(
			a.cfg.Ml.Addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()), // явное указание gRPC-клиенту использовать НЕзащищённое соединение (без TLS).
		)
		if err != nil {
			return nil, nil, e.Wrap(whereami.WhereAmI(), err)
		}
		a.closer.AddSimple("ml grpc conn", conn.Close)
		ml = ml_service.NewMLService(conn, a.cfg.Ml, a.logger)
	}

	var proposer detector.RegionProposer
	if ml != nil && a.cfg.Detector.Enabled {
		proposer = ml
	}

	if a.cfg.Embedder.Backend == config.EmbedderBackendHistogram {
		emb := embedder.NewHistogram(a.cfg.Embedder.HistogramBins)
		a.logger.Infof("embedder: %s, dimension %d", emb.ModelVersion(), emb.Dimension())
		return emb, proposer, nil
	}

	infoCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	// Модель без ответа на старте фатальна.
	info, err := ml.GetModelInfo(infoCtx)
	if err != nil {
		return nil, nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if info.Dimension != a.cfg.Ml.EmbeddingDim {
		a.logger.Warnf("ML_EMBEDDING_DIM=%d, model %s reports %d; using the model value",
			a.cfg.Ml.EmbeddingDim, info.ModelVersion, info.Dimension)
	}
	if a.cfg.Ml.ModelVersion != info.ModelVersion {
		a.logger.Warnf("ML_MODEL_VERSION=%s, service serves %s; indexes of other models will be rejected",
			a.cfg.Ml.ModelVersion, info.ModelVersion)
	}

	a.logger.Infof("embedder: %s, dimension %d", info.ModelVersion, info.Dimension)
	return embedder.NewRemote(ml, info.Dimension, info.ModelVersion), proposer, nil
}

func (a *App) initEmbeddingStore(ctx context.Context, dimension int) (usecase.EmbeddingRepository, error) {
	if a.cfg.Index.Store == config.StoreMemory {
		a.logger.Warnf("embedding store is in-memory: embeddings are lost on restart")
		return memory.NewEmbeddingRepo(), nil
	}

	qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddSimple("qdrant", qdrantClient.Close)

	qdrantCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := clients.EnsureCollection(qdrantCtx, qdrantClient, dimension); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, a.cfg.Qdrant), nil
}

// Serve поднимает HTTP (и gRPC, если задан порт), подписку на сборки и outbox-воркер.
// Блокируется до сигнала или фатальной ошибки сервера.
func (a *App) Serve(ctx context.Context) error {
	if a.cfg.Auth.APIKey == "" {
		return e.Wrap("API_KEY is required", e.ErrIncorrectEnvVariable)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loadCtx, loadCancel := context.WithTimeout(ctx, a.cfg.Build.Timeout)
	if err := a.indexUC.LoadLatest(loadCtx); err != nil {
		if errors.Is(err, e.ErrIndexNotLoaded) {
			a.logger.Warnf("no index build found, serving 503 until the first build")
		} else {
			a.logger.Errorf(err, "failed to load latest index")
		}
	}
	loadCancel()

	if a.outbox != nil {
		a.outbox.Start(ctx)
		a.closer.AddSimple("outbox worker", func() error {
			a.outbox.Stop()
			return nil
		})
	}

	errCh := make(chan error, 3)

	if a.cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(a.cfg.Kafka, a.indexUC, a.logger)
		a.closer.AddSimple("kafka consumer", consumer.Close)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				a.logger.Errorf(err, "index events consumer stopped")
			}
		}()
	}

	r := chi.NewRouter()
	v1Http.NewRouter(r, a.logger).Init(v1Http.Deps{
		SearchUC:     a.searchUC,
		IndexUC:      a.indexUC,
		SearchCfg:    a.cfg.Search,
		APIKey:       a.cfg.Auth.APIKey,
		BuildTimeout: a.cfg.Build.Timeout,
		Metrics:      a.metrics.Handler(),
	})

	httpSrv := v1Http.NewServer(r, a.cfg.Http)
	a.closer.Add("http server", httpSrv.Stop)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- e.Wrap("http server", err)
		}
	}()

	if a.cfg.Grpc.Enabled {
		grpcSrv := v1Grpc.NewGRPCServer(a.cfg.Grpc, a.cfg.Auth.APIKey, a.logger)
		grpcSrv.RegisterServices(a.searchUC, a.cfg.Search)
		a.closer.Add("grpc server", grpcSrv.Stop)
		go func() {
			a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
			if err := grpcSrv.Start(); err != nil {
				errCh <- e.Wrap("grpc server", err)
			}
		}()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "server fatal error")
	case sig := <-shutdown:
		a.logger.Infof("Received %s, stopping gracefully...", sig)
	case <-ctx.Done():
	}

	cancel()
	if err := a.Close(); err != nil {
		a.logger.Warnf("%v", err)
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

// BuildIndex — разовая сборка для CLI.
func (a *App) BuildIndex(ctx context.Context, reembed bool) (*usecase.BuildIndexRes, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Build.Timeout)
	defer cancel()

	return a.indexUC.BuildIndex(ctx, &usecase.BuildIndexReq{Reembed: reembed})
}

func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return a.closer.Close(ctx)
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		logger.Errorf(err, "failed to ping database")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
