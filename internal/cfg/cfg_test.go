package cfg

import (
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_USER", "search")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "catalog")
	t.Setenv("BUCKET_NAME", "fashion-dataset")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, 10, c.Search.DefaultTopK)
	assert.Equal(t, 5, c.Search.MaxRegions)
	assert.Equal(t, 3*time.Second, c.Search.CallTimeout)
	assert.True(t, c.Detector.Enabled)
	assert.InDelta(t, 0.25, c.Detector.ConfidenceThreshold, 1e-6)
	assert.Equal(t, EmbedderBackendML, c.Embedder.Backend)
	assert.Equal(t, IndexKindAnnoy, c.Index.Kind)
	assert.Equal(t, "dataset/products/", c.Build.CatalogPrefix)
	assert.Equal(t, 30*time.Second, c.Build.CallTimeout)
	assert.False(t, c.Kafka.Enabled)
	assert.Equal(t, "ml-service:50051", c.Ml.Addr)
	assert.Equal(t, 768, c.Ml.EmbeddingDim)
	assert.Equal(t, 10*time.Minute, c.Minio.PresignTTL)
	assert.Equal(t, StoreQdrant, c.Index.Store)
	assert.False(t, c.Grpc.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SEARCH_DEFAULT_TOP_K", "20")
	t.Setenv("SEARCH_CALL_TIMEOUT", "750ms")
	t.Setenv("DETECTOR_ENABLED", "false")
	t.Setenv("EMBEDDER_BACKEND", "histogram")
	t.Setenv("INDEX_KIND", "flat")
	t.Setenv("CATALOG_PREFIX", "catalog")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("EMBEDDING_STORE", "memory")
	t.Setenv("GRPC_PORT", "9090")
	t.Setenv("BUILD_CALL_TIMEOUT", "5s")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, 20, c.Search.DefaultTopK)
	assert.Equal(t, 750*time.Millisecond, c.Search.CallTimeout)
	assert.False(t, c.Detector.Enabled)
	assert.Equal(t, EmbedderBackendHistogram, c.Embedder.Backend)
	assert.Equal(t, IndexKindFlat, c.Index.Kind)
	assert.Equal(t, "catalog/", c.Build.CatalogPrefix)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, StoreMemory, c.Index.Store)
	assert.True(t, c.Grpc.Enabled)
	assert.Equal(t, "9090", c.Grpc.Port)
	assert.Equal(t, 5*time.Second, c.Build.CallTimeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SEARCH_DEFAULT_TOP_K": "0",
		"SEARCH_MAX_REGIONS":   "-1",
		"DETECTOR_CONFIDENCE":  "1.5",
		"EMBEDDER_BACKEND":     "clip",
		"INDEX_KIND":           "hnsw",
		"BUILD_WORKERS":        "zero",
		"ML_EMBEDDING_DIM":     "0",
		"EMBEDDING_STORE":      "faiss",
		"BUILD_CALL_TIMEOUT":   "-1s",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, value)

			_, err := Load(logger.NewNopLogger())
			require.Error(t, err)
			assert.ErrorIs(t, err, e.ErrIncorrectEnvVariable)
		})
	}
}

func TestLoadRequiresPostgresUser(t *testing.T) {
	setRequired(t)
	t.Setenv("POSTGRES_USER", "")

	_, err := Load(logger.NewNopLogger())
	require.Error(t, err)
}
