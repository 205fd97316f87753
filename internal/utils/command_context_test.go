package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithRunLabelStoresNormalizedValues(t *testing.T) {
	accessor := NewCommandContextAccessor()
	enriched := accessor.WithRunLabel(context.Background(), RunLabel{Repository: "  example/repo ", Branch: " feature "})

	label, exists := accessor.RunLabel(enriched)
	require.True(t, exists)
	require.Equal(t, "example/repo", label.Repository)
	require.Equal(t, "feature", label.Branch)
}

func TestWithRunLabelSkipsEmptyValues(t *testing.T) {
	accessor := NewCommandContextAccessor()
	enriched := accessor.WithRunLabel(context.Background(), RunLabel{Repository: " ", Branch: ""})

	_, exists := accessor.RunLabel(enriched)
	require.False(t, exists)
}

func TestWithConfigurationFilePathStoresValue(t *testing.T) {
	accessor := NewCommandContextAccessor()
	enriched := accessor.WithConfigurationFilePath(context.Background(), "/tmp/config.yaml")

	configurationFilePath, exists := accessor.ConfigurationFilePath(enriched)
	require.True(t, exists)
	require.Equal(t, "/tmp/config.yaml", configurationFilePath)
}

func TestWithLogLevelSkipsBlankValue(t *testing.T) {
	accessor := NewCommandContextAccessor()

	_, exists := accessor.LogLevel(accessor.WithLogLevel(context.Background(), "  "))
	require.False(t, exists)

	logLevel, exists := accessor.LogLevel(accessor.WithLogLevel(context.Background(), " debug "))
	require.True(t, exists)
	require.Equal(t, "debug", logLevel)
}

func TestAccessorHandlesMissingContext(t *testing.T) {
	accessor := NewCommandContextAccessor()

	_, exists := accessor.ConfigurationFilePath(context.Background())
	require.False(t, exists)
	_, exists = accessor.RunLabel(context.Background())
	require.False(t, exists)
}
