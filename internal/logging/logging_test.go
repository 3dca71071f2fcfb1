package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		mode, level string
		enabled     zapcore.Level
		disabled    zapcore.Level
	}{
		{"debug", "", zapcore.DebugLevel, zapcore.InvalidLevel},
		{"release", "", zapcore.InfoLevel, zapcore.DebugLevel},
		{"release", "warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"debug", "error", zapcore.ErrorLevel, zapcore.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.mode+"/"+tt.level, func(t *testing.T) {
			l, err := New(tt.mode, tt.level)
			require.NoError(t, err)
			defer Sync(l)

			assert.True(t, l.Core().Enabled(tt.enabled))
			if tt.disabled != zapcore.InvalidLevel {
				assert.False(t, l.Core().Enabled(tt.disabled))
			}
		})
	}

	_, err := New("debug", "loud")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	l := Nop()
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
	Sync(nil)
}
