package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c := New()
	assert.Equal(t, 1e-5, c.MaxminPrecision)
	assert.Equal(t, 1e-5, c.SurfPrecision)
	assert.Equal(t, -1, c.MaxminConcurrencyLimit)
	assert.Equal(t, FactorySerial, c.ContextFactory)
	assert.Equal(t, 128, c.ContextStackSizeKiB)
}

func TestNew_OptionsOverrideDefaults(t *testing.T) {
	c := New(WithMaxminPrecision(1e-3), WithContextFactory(FactoryThread), WithContextNThreads(4))
	assert.Equal(t, 1e-3, c.MaxminPrecision)
	assert.Equal(t, FactoryThread, c.ContextFactory)
	assert.Equal(t, 4, c.ContextNThreads)
}

func TestFromMap_RejectsUnrecognizedKey(t *testing.T) {
	_, err := FromMap(map[string]interface{}{"bogus/key": 1})
	assert.Error(t, err)
}

func TestFromMap_RejectsInvalidContextFactory(t *testing.T) {
	_, err := FromMap(map[string]interface{}{"context/factory": "quantum"})
	assert.Error(t, err)
}

func TestFromMap_AppliesRecognizedKeys(t *testing.T) {
	c, err := FromMap(map[string]interface{}{
		"maxmin/precision":         1e-6,
		"maxmin/concurrency-limit": 4,
		"context/factory":          "thread",
		"context/nthreads":         8,
		"model-check":              true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1e-6, c.MaxminPrecision)
	assert.Equal(t, 4, c.MaxminConcurrencyLimit)
	assert.Equal(t, FactoryThread, c.ContextFactory)
	assert.Equal(t, 8, c.ContextNThreads)
	assert.True(t, c.ModelCheck)
}
