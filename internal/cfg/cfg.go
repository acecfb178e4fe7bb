package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jimlawless/whereami"
)

const (
	EmbedderBackendML        = "ml"
	EmbedderBackendHistogram = "histogram"

	IndexKindAnnoy = "annoy"
	IndexKindFlat  = "flat"

	StoreQdrant = "qdrant"
	StoreMemory = "memory"
)

type Config struct {
	Log      *LogCfg
	Auth     *AuthCfg
	Search   *SearchCfg
	Detector *DetectorCfg
	Embedder *EmbedderCfg
	Index    *IndexCfg
	Build    *BuildCfg
	Minio    *MinIOCfg
	Http     *HTTPConfig
	Grpc     *GRPCConfig
	Db       *PGDBCfg
	Qdrant   *QdrantCfg
	Redis    *RedisCfg
	Ml       *MLServiceCfg
	Kafka    *KafkaCfg
}

type LogCfg struct {
	Level   string
	Service string
}

type AuthCfg struct {
	APIKey string // ключ для заголовка X-API-Key
}

// SearchCfg — параметры поиска по умолчанию и ограничения на запрос.
type SearchCfg struct {
	DefaultTopK int
	MaxTopK     int
	MaxRegions  int
	CallTimeout time.Duration // таймаут одного вызова детектора/эмбеддера
	Candidates  int           // сколько соседей запрашивать у индекса на каждый регион
	CacheTTL    time.Duration
}

type DetectorCfg struct {
	Enabled             bool
	ConfidenceThreshold float32
	MaxRegions          int
	FallbackOnEmpty     bool // при пустой детекции искать по всему изображению
}

type EmbedderCfg struct {
	Backend       string
	HistogramBins int
}

type IndexCfg struct {
	Kind    string
	Trees   int
	SearchK int
	Dir     string
	Publish bool   // выгружать артефакты индекса в MinIO
	Store   string // хранилище эмбеддингов: qdrant или memory
}

type BuildCfg struct {
	Workers       int
	CatalogPrefix string // префикс каталога в бакете: <prefix><product_id>/image_N.jpg
	Timeout       time.Duration
	CallTimeout   time.Duration // вызов детектора или эмбеддера при сборке
}

type KafkaCfg struct {
	Enabled           bool
	Topic             string
	GroupID           string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Бакет с изображениями каталога и артефактами индекса
	ArtifactsPrefix   string // Префикс для артефактов индекса
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
	PresignTTL        time.Duration // время жизни presigned-ссылок на изображения товаров
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// GRPCConfig: пустой GRPC_PORT отключает gRPC-сервер поиска.
type GRPCConfig struct {
	Enabled     bool
	Port        string
	NetworkMode string
}

type PGDBCfg struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsURL string
}

type QdrantCfg struct {
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string // имя коллекции в Qdrant
	UseTLS               bool
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	ProductTTL  time.Duration // время жизни метаданных товара в кэше
}

type MLServiceCfg struct {
	Addr          string
	MaxConcurrent int
	MaxRetries    int
	ModelVersion  string
	EmbeddingDim  int // размерность векторов модели
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	search, err := loadSearchCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	detector, err := loadDetectorCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	embedder, err := loadEmbedderCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	index, err := loadIndexCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	build, err := loadBuildCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ml, err := loadMLServiceCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Log:      loadLogCfg(),
		Auth:     &AuthCfg{APIKey: getEnv("API_KEY")},
		Search:   search,
		Detector: detector,
		Embedder: embedder,
		Index:    index,
		Build:    build,
		Minio:    minio,
		Http:     http,
		Grpc:     loadGRPCConfig(),
		Db:       db,
		Qdrant:   qdrant,
		Redis:    redis,
		Ml:       ml,
		Kafka:    kafka,
	}, nil
}

func loadLogCfg() *LogCfg {
	return &LogCfg{
		Level:   getEnvOrDefault("LOG_LEVEL", "info"),
		Service: getEnvOrDefault("SERVICE_NAME", "visual-search"),
	}
}

func loadSearchCfg() (*SearchCfg, error) {
	const (
		defaultTopK        = 10
		defaultMaxTopK     = 100
		defaultMaxRegions  = 5
		defaultCallTimeout = 3 * time.Second
		defaultCandidates  = 50
		defaultCacheTTL    = 5 * time.Minute
	)

	topK, err := parseIntEnv("SEARCH_DEFAULT_TOP_K", defaultTopK)
	if err != nil {
		return nil, e.Wrap("SEARCH_DEFAULT_TOP_K", err)
	}

	maxTopK, err := parseIntEnv("SEARCH_MAX_TOP_K", defaultMaxTopK)
	if err != nil {
		return nil, e.Wrap("SEARCH_MAX_TOP_K", err)
	}

	maxRegions, err := parseIntEnv("SEARCH_MAX_REGIONS", defaultMaxRegions)
	if err != nil {
		return nil, e.Wrap("SEARCH_MAX_REGIONS", err)
	}

	candidates, err := parseIntEnv("SEARCH_CANDIDATES", defaultCandidates)
	if err != nil {
		return nil, e.Wrap("SEARCH_CANDIDATES", err)
	}

	callTimeout, err := parseDurationEnv("SEARCH_CALL_TIMEOUT", defaultCallTimeout)
	if err != nil {
		return nil, e.Wrap("SEARCH_CALL_TIMEOUT", err)
	}

	cacheTTL, err := parseDurationEnv("SEARCH_CACHE_TTL", defaultCacheTTL)
	if err != nil {
		return nil, e.Wrap("SEARCH_CACHE_TTL", err)
	}

	if topK <= 0 || maxTopK < topK {
		return nil, fmt.Errorf("SEARCH_DEFAULT_TOP_K must be in [1, SEARCH_MAX_TOP_K]: %w", e.ErrIncorrectEnvVariable)
	}
	if maxRegions <= 0 {
		return nil, fmt.Errorf("SEARCH_MAX_REGIONS must be positive: %w", e.ErrIncorrectEnvVariable)
	}
	if callTimeout <= 0 {
		return nil, fmt.Errorf("SEARCH_CALL_TIMEOUT must be positive: %w", e.ErrIncorrectEnvVariable)
	}

	return &SearchCfg{
		DefaultTopK: topK,
		MaxTopK:     maxTopK,
		MaxRegions:  maxRegions,
		CallTimeout: callTimeout,
		Candidates:  candidates,
		CacheTTL:    cacheTTL,
	}, nil
}

func loadDetectorCfg() (*DetectorCfg, error) {
	const (
		defaultEnabled    = true
		defaultConfidence = 0.25
		defaultMaxRegions = 5
	)

	enabled, err := parseBoolEnv("DETECTOR_ENABLED", defaultEnabled)
	if err != nil {
		return nil, e.Wrap("DETECTOR_ENABLED", err)
	}

	confidence, err := parseFloatEnv("DETECTOR_CONFIDENCE", defaultConfidence)
	if err != nil {
		return nil, e.Wrap("DETECTOR_CONFIDENCE", err)
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("DETECTOR_CONFIDENCE must be in [0, 1]: %w", e.ErrIncorrectEnvVariable)
	}

	maxRegions, err := parseIntEnv("DETECTOR_MAX_REGIONS", defaultMaxRegions)
	if err != nil {
		return nil, e.Wrap("DETECTOR_MAX_REGIONS", err)
	}

	fallback, err := parseBoolEnv("DETECTOR_FALLBACK_ON_EMPTY", false)
	if err != nil {
		return nil, e.Wrap("DETECTOR_FALLBACK_ON_EMPTY", err)
	}

	return &DetectorCfg{
		Enabled:             enabled,
		ConfidenceThreshold: float32(confidence),
		MaxRegions:          maxRegions,
		FallbackOnEmpty:     fallback,
	}, nil
}

func loadEmbedderCfg() (*EmbedderCfg, error) {
	const defaultBins = 8

	backend := getEnvOrDefault("EMBEDDER_BACKEND", EmbedderBackendML)
	if backend != EmbedderBackendML && backend != EmbedderBackendHistogram {
		return nil, fmt.Errorf("unknown EMBEDDER_BACKEND %q: %w", backend, e.ErrIncorrectEnvVariable)
	}

	bins, err := parseIntEnv("EMBEDDER_HISTOGRAM_BINS", defaultBins)
	if err != nil {
		return nil, e.Wrap("EMBEDDER_HISTOGRAM_BINS", err)
	}
	if bins < 2 || bins > 32 {
		return nil, fmt.Errorf("EMBEDDER_HISTOGRAM_BINS must be in [2, 32]: %w", e.ErrIncorrectEnvVariable)
	}

	return &EmbedderCfg{Backend: backend, HistogramBins: bins}, nil
}

func loadIndexCfg() (*IndexCfg, error) {
	const (
		defaultTrees   = 16
		defaultSearchK = -1
		defaultDir     = "./data/index"
	)

	kind := getEnvOrDefault("INDEX_KIND", IndexKindAnnoy)
	if kind != IndexKindAnnoy && kind != IndexKindFlat {
		return nil, fmt.Errorf("unknown INDEX_KIND %q: %w", kind, e.ErrIncorrectEnvVariable)
	}

	trees, err := parseIntEnv("INDEX_TREES", defaultTrees)
	if err != nil {
		return nil, e.Wrap("INDEX_TREES", err)
	}

	searchK, err := parseIntEnv("INDEX_SEARCH_K", defaultSearchK)
	if err != nil {
		return nil, e.Wrap("INDEX_SEARCH_K", err)
	}

	publish, err := parseBoolEnv("INDEX_PUBLISH", true)
	if err != nil {
		return nil, e.Wrap("INDEX_PUBLISH", err)
	}

	store := getEnvOrDefault("EMBEDDING_STORE", StoreQdrant)
	if store != StoreQdrant && store != StoreMemory {
		return nil, fmt.Errorf("unknown EMBEDDING_STORE %q: %w", store, e.ErrIncorrectEnvVariable)
	}

	return &IndexCfg{
		Kind:    kind,
		Trees:   trees,
		SearchK: searchK,
		Dir:     getEnvOrDefault("INDEX_DIR", defaultDir),
		Publish: publish,
		Store:   store,
	}, nil
}

func loadBuildCfg() (*BuildCfg, error) {
	const (
		defaultWorkers = 8
		defaultPrefix  = "dataset/products/"
		defaultTimeout     = 30 * time.Minute
		defaultCallTimeout = 30 * time.Second
	)

	workers, err := parseIntEnv("BUILD_WORKERS", defaultWorkers)
	if err != nil {
		return nil, e.Wrap("BUILD_WORKERS", err)
	}
	if workers <= 0 {
		return nil, fmt.Errorf("BUILD_WORKERS must be positive: %w", e.ErrIncorrectEnvVariable)
	}

	timeout, err := parseDurationEnv("BUILD_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, e.Wrap("BUILD_TIMEOUT", err)
	}

	callTimeout, err := parseDurationEnv("BUILD_CALL_TIMEOUT", defaultCallTimeout)
	if err != nil {
		return nil, e.Wrap("BUILD_CALL_TIMEOUT", err)
	}
	if callTimeout < 0 {
		return nil, fmt.Errorf("BUILD_CALL_TIMEOUT must not be negative: %w", e.ErrIncorrectEnvVariable)
	}

	prefix := getEnvOrDefault("CATALOG_PREFIX", defaultPrefix)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &BuildCfg{
		Workers:       workers,
		CatalogPrefix: prefix,
		Timeout:       timeout,
		CallTimeout:   callTimeout,
	}, nil
}

// loadKafkaCfg: без KAFKA_BROKERS публикация событий об индексе отключена.
func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultTopic             = "visual-search.index-published"
	)

	brokerStr := getEnv("KAFKA_BROKERS")
	if brokerStr == "" {
		return &KafkaCfg{Enabled: false}, nil
	}
	brokers := strings.Split(brokerStr, ",")

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	hostname, _ := os.Hostname()

	return &KafkaCfg{
		Enabled:           true,
		Brokers:           brokers,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		GroupID:           getEnvOrDefault("KAFKA_GROUP_ID", "visual-search-"+hostname),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL     = false
		defaultEndpoint   = "minio:9000"
		defaultArtifacts  = "faiss/"
		defaultPresignTTL = 10 * time.Minute
	)

	useSSL, err := parseBoolEnv("MINIO_USE_SSL", defaultUseSSL)
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	presignTTL, err := parseDurationEnv("MINIO_PRESIGN_TTL", defaultPresignTTL)
	if err != nil {
		log.Errorf(err, "invalid MINIO_PRESIGN_TTL")
		return nil, err
	}

	bucket := getEnv("BUCKET_NAME")
	if bucket == "" {
		err := fmt.Errorf("BUCKET_NAME is required")
		log.Errorf(err, "missing BUCKET_NAME")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        bucket,
		ArtifactsPrefix:   getEnvOrDefault("INDEX_ARTIFACTS_PREFIX", defaultArtifacts),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		PresignTTL:        presignTTL,
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const defaultNetworkMode = "tcp"

	port := getEnv("GRPC_PORT")

	return &GRPCConfig{
		Enabled:     port != "",
		Port:        port,
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 10 * time.Second
		defaultWriteTimeout = 30 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         getEnvOrDefault("HTTP_PORT", defaultPort),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost       = "localhost"
		defaultPort       = "5432"
		defaultSSLMode    = "disable"
		defaultMigrations = "file://db/migrations"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	return &PGDBCfg{
		Host:          getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:          getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:          user,
		Password:      password,
		DBName:        dbName,
		SSLMode:       getEnvOrDefault("SSL_MODE", defaultSSLMode),
		MigrationsURL: getEnvOrDefault("MIGRATIONS_URL", defaultMigrations),
	}, nil
}

func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = "6334"
		defaultUseTLS         = false
		defaultCollection     = "product_embeddings"
	)

	port, err := strconv.Atoi(getEnvOrDefault("QDRANT_GRPC_PORT", defaultQdrantGRPCPort))
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := parseBoolEnv("QDRANT_USE_TLS", defaultUseTLS)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	return &QdrantCfg{
		Host:                 getEnvOrDefault("QDRANT_HOST", "qdrant"),
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:               useTLS,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultProductTTL   = time.Hour
	)

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	productTTL, err := parseDurationEnv("REDIS_PRODUCT_TTL", defaultProductTTL)
	if err != nil {
		log.Errorf(err, "invalid REDIS_PRODUCT_TTL")
		return nil, err
	}

	return &RedisCfg{
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     max(readTimeout, writeTimeout),
		ProductTTL:  productTTL,
	}, nil
}

func loadMLServiceCfg() (*MLServiceCfg, error) {
	const (
		defaultHost          = "ml-service"
		defaultPort          = "50051"
		defaultMaxConcurrent = 8
		defaultMaxRetries    = 3
		defaultModelVersion  = "dinov2_vitb14"
		defaultEmbeddingDim  = 768
	)

	maxConcurrent, err := parseIntEnv("ML_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		return nil, e.Wrap("ML_MAX_CONCURRENT", err)
	}

	maxRetries, err := parseIntEnv("ML_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, e.Wrap("ML_MAX_RETRIES", err)
	}

	dim, err := parseIntEnv("ML_EMBEDDING_DIM", defaultEmbeddingDim)
	if err != nil {
		return nil, e.Wrap("ML_EMBEDDING_DIM", err)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("ML_EMBEDDING_DIM must be positive: %w", e.ErrIncorrectEnvVariable)
	}

	return &MLServiceCfg{
		EmbeddingDim:  dim,
		Addr:          getEnvOrDefault("ML_HOST", defaultHost) + ":" + getEnvOrDefault("ML_PORT", defaultPort),
		MaxConcurrent: max(maxConcurrent, 1),
		MaxRetries:    max(maxRetries, 1),
		ModelVersion:  getEnvOrDefault("ML_MODEL_VERSION", defaultModelVersion),
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return f, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return b, nil
}
