package cog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/topocluster/internal/config"
)

func TestParamsFromConfig(t *testing.T) {
	assert.Equal(t, DefaultParams(), ParamsFromConfig(config.EmptyClusteringConfig()))

	p := ParamsFromConfig(config.MustLoadDefaultConfig())
	assert.Equal(t, DefaultParams(), p)

	r, err := NewReconstructor(p)
	require.NoError(t, err)
	assert.Equal(t, WeightLog, r.Method())
}
