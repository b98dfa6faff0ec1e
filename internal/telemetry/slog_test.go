package telemetry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSetup_Level verifies that the Debug option controls the installed
// logger's level.
func TestSetup_Level(t *testing.T) {
	logger := Setup(Options{})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = Setup(Options{Debug: true})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	// Setup installs the logger process-wide.
	assert.Equal(t, logger, slog.Default())
}
