package rtreedb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigApplyDefaultsFillsZeroFields(t *testing.T) {
	var c Config
	c.applyDefaults()

	require.Equal(t, DefaultDimensions, c.Dimensions)
	require.Equal(t, DefaultPageSize, c.PageSize)
	require.Equal(t, DefaultIDSize, c.IDSize)
	require.Equal(t, DefaultCoordSize, c.CoordSize)
	require.Equal(t, DefaultMinFill, c.MinFill)
	require.Equal(t, DefaultCacheBudget, c.CacheBudget)
}

func TestConfigApplyDefaultsPreservesExplicitValues(t *testing.T) {
	c := Config{
		Dimensions:  5,
		PageSize:    2048,
		IDSize:      4,
		CoordSize:   2,
		MinFill:     0.2,
		CacheBudget: 4096,
	}
	c.applyDefaults()

	require.Equal(t, 5, c.Dimensions)
	require.Equal(t, 2048, c.PageSize)
	require.Equal(t, 4, c.IDSize)
	require.Equal(t, 2, c.CoordSize)
	require.Equal(t, 0.2, c.MinFill)
	require.Equal(t, 4096, c.CacheBudget)
}
