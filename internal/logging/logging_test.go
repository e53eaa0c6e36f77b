package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		enabled zapcore.Level
		skipped zapcore.Level
	}{
		{name: "default", opts: Options{}, enabled: zapcore.InfoLevel, skipped: zapcore.DebugLevel},
		{name: "debug", opts: Options{Level: "debug"}, enabled: zapcore.DebugLevel, skipped: zapcore.DebugLevel - 1},
		{name: "development warn", opts: Options{Level: "warn", Development: true}, enabled: zapcore.WarnLevel, skipped: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.opts)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.skipped))
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.ErrorContains(t, err, `invalid log level "loud"`)

	assert.NotNil(t, NewOrNop(Options{Level: "loud"}))
}
