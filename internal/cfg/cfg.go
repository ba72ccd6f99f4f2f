package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	"github.com/jimlawless/whereami"
)

type Config struct {
	Http     *HTTPConfig
	Db       *PGDBCfg
	Redis    *RedisCfg
	Qdrant   *QdrantCfg
	Minio    *MinIOCfg
	Kafka    *KafkaCfg
	Feed     *FeedCfg
	Embedder *EmbedderCfg
	Recs     *RecsCfg
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	ProductTTL  time.Duration
}

type QdrantCfg struct {
	Host                 string
	Port                 int
	ApiKey               string
	QdrantCollectionName string // имя коллекции с кэшем эмбеддингов
	UseTLS               bool
	VectorSize           uint64
}

type MinIOCfg struct {
	MinioEndpoint     string
	BucketName        string
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
	MirrorImagesLimit int // лимит на число зеркалируемых изображений одного продукта
}

type KafkaCfg struct {
	Topic             string
	GroupID           string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

// FeedCfg описывает доступ к внешнему фиду каталога.
type FeedCfg struct {
	BaseURL        string
	MaxRetries     int
	PageDelay      time.Duration // пауза между страницами, щадим внешний API
	RequestTimeout time.Duration
}

// EmbedderCfg описывает доступ к сервису генерации эмбеддингов
// (OpenAI-совместимый endpoint /embeddings).
type EmbedderCfg struct {
	BaseURL       string
	ApiKey        string
	Model         string
	MaxConcurrent int
	MaxRetries    int
}

// RecsCfg — параметры рекомендательного ядра.
type RecsCfg struct {
	Clusters      int   // K для кластеризации; клампится к размеру каталога
	MaxIterations int   // предел итераций k-means
	RandomSeed    int64 // фиксированный seed для детерминированных рекомендаций
	DefaultTopK   int   // k по умолчанию для HTTP-запросов без параметра
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

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	feed, err := loadFeedCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	recs, err := loadRecsCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:     http,
		Db:       db,
		Redis:    redis,
		Qdrant:   qdrant,
		Minio:    minio,
		Kafka:    kafka,
		Feed:     feed,
		Embedder: loadEmbedderCfg(),
		Recs:     recs,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 10 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

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
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
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
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
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
		defaultProductTTL   = 3 * time.Minute
	)

	addr := getEnvOrDefault("REDIS_ADDR", defaultAddr)
	password := getEnv("REDIS_PASSWORD")
	user := getEnv("REDIS_USER")

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

	productTTL, err := parseDurationEnv("PRODUCT_TTL", defaultProductTTL)
	if err != nil {
		log.Errorf(err, "invalid PRODUCT_TTL")
		return nil, err
	}

	timeout := readTimeout
	if writeTimeout > timeout {
		timeout = writeTimeout
	}

	return &RedisCfg{
		Addr:        addr,
		Password:    password,
		User:        user,
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     timeout,
		ProductTTL:  productTTL,
	}, nil
}

func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = "6334"
		defaultUseTLS         = false
		defaultVectorSize     = "768"
		defaultCollection     = "product_embeddings"
	)

	strPort := getEnvOrDefault("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	port, err := strconv.Atoi(strPort)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	strVectorSize := getEnvOrDefault("VECTOR_SIZE", defaultVectorSize)
	vectorSize, err := strconv.ParseUint(strVectorSize, 10, 64)
	if err != nil {
		log.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	return &QdrantCfg{
		Host:                 getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:               useTLS,
		VectorSize:           vectorSize,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL   = false
		defaultEndpoint = "minio:9000"
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        getEnv("BUCKET_NAME"),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		MirrorImagesLimit: 10,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultGroupID           = "recs-refit"
	)

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}
	brokers := strings.Split(brokerStr, ",")

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC environment variable is required")
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             topic,
		GroupID:           getEnvOrDefault("KAFKA_GROUP_ID", defaultGroupID),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadFeedCfg() (*FeedCfg, error) {
	const (
		defaultMaxRetries     = 3
		defaultPageDelay      = 1 * time.Second
		defaultRequestTimeout = 30 * time.Second
	)

	baseURL := os.Getenv("FEED_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("FEED_BASE_URL environment variable is required")
	}

	maxRetries, err := parseIntEnv("FEED_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, e.Wrap("FEED_MAX_RETRIES", err)
	}

	pageDelay, err := parseDurationEnv("FEED_PAGE_DELAY", defaultPageDelay)
	if err != nil {
		return nil, e.Wrap("FEED_PAGE_DELAY", err)
	}

	requestTimeout, err := parseDurationEnv("FEED_REQUEST_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		return nil, e.Wrap("FEED_REQUEST_TIMEOUT", err)
	}

	return &FeedCfg{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		MaxRetries:     maxRetries,
		PageDelay:      pageDelay,
		RequestTimeout: requestTimeout,
	}, nil
}

func loadEmbedderCfg() *EmbedderCfg {
	const (
		defaultBaseURL       = "http://embedder:8000/v1"
		defaultModel         = "all-MiniLM-L6-v2"
		defaultMaxConcurrent = 8
		defaultMaxRetries    = 3
	)

	return &EmbedderCfg{
		BaseURL:       strings.TrimRight(getEnvOrDefault("EMBEDDER_BASE_URL", defaultBaseURL), "/"),
		ApiKey:        getEnv("EMBEDDER_API_KEY"),
		Model:         getEnvOrDefault("EMBEDDER_MODEL", defaultModel),
		MaxConcurrent: defaultMaxConcurrent,
		MaxRetries:    defaultMaxRetries,
	}
}

func loadRecsCfg() (*RecsCfg, error) {
	const (
		defaultClusters      = 10
		defaultMaxIterations = 100
		defaultRandomSeed    = 42
		defaultTopK          = 5
	)

	clusters, err := parseIntEnv("RECS_CLUSTERS", defaultClusters)
	if err != nil {
		return nil, e.Wrap("RECS_CLUSTERS", err)
	}
	if clusters <= 0 {
		return nil, fmt.Errorf("RECS_CLUSTERS must be positive")
	}

	maxIterations, err := parseIntEnv("RECS_MAX_ITERATIONS", defaultMaxIterations)
	if err != nil {
		return nil, e.Wrap("RECS_MAX_ITERATIONS", err)
	}
	if maxIterations <= 0 {
		return nil, fmt.Errorf("RECS_MAX_ITERATIONS must be positive")
	}

	topK, err := parseIntEnv("RECS_DEFAULT_TOP_K", defaultTopK)
	if err != nil {
		return nil, e.Wrap("RECS_DEFAULT_TOP_K", err)
	}

	seedStr := getEnvOrDefault("RECS_RANDOM_SEED", strconv.Itoa(defaultRandomSeed))
	seed, err := strconv.ParseInt(seedStr, 10, 64)
	if err != nil {
		return nil, e.Wrap("RECS_RANDOM_SEED", e.ErrIncorrectEnvVariable)
	}

	return &RecsCfg{
		Clusters:      clusters,
		MaxIterations: maxIterations,
		RandomSeed:    seed,
		DefaultTopK:   topK,
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
