package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRecsCfg_Defaults(t *testing.T) {
	recs, err := loadRecsCfg()
	require.NoError(t, err)

	assert.Equal(t, 10, recs.Clusters)
	assert.Equal(t, 100, recs.MaxIterations)
	assert.Equal(t, int64(42), recs.RandomSeed)
	assert.Equal(t, 5, recs.DefaultTopK)
}

func TestLoadRecsCfg_RejectsNonPositiveClusters(t *testing.T) {
	t.Setenv("RECS_CLUSTERS", "0")

	_, err := loadRecsCfg()
	require.Error(t, err)
}

func TestLoadRecsCfg_RejectsNonPositiveMaxIterations(t *testing.T) {
	// Нулевой предел итераций дал бы k-means без единой итерации.
	t.Setenv("RECS_MAX_ITERATIONS", "0")

	_, err := loadRecsCfg()
	require.Error(t, err)

	t.Setenv("RECS_MAX_ITERATIONS", "-1")

	_, err = loadRecsCfg()
	require.Error(t, err)
}
