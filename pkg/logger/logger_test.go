package logger

import (
	"testing"

	"github.com/GlebRadaev/tutorpay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name           string
		config         *config.Config
		expectedError  bool
		expectedLogLvl zapcore.Level
	}{
		{
			name:           "Info to console",
			config:         &config.Config{LogLvl: "info", LogFormat: "console"},
			expectedLogLvl: zapcore.InfoLevel,
		},
		{
			name:           "Error as json",
			config:         &config.Config{LogLvl: "error", LogFormat: "json"},
			expectedLogLvl: zapcore.ErrorLevel,
		},
		{
			name:           "Debug with default format",
			config:         &config.Config{LogLvl: "debug"},
			expectedLogLvl: zapcore.DebugLevel,
		},
		{
			name:           "Warn",
			config:         &config.Config{LogLvl: "warn", LogFormat: "console"},
			expectedLogLvl: zapcore.WarnLevel,
		},
		{
			name:          "Invalid log level",
			config:        &config.Config{LogLvl: "invalid"},
			expectedError: true,
		},
		{
			name:          "Invalid log format",
			config:        &config.Config{LogLvl: "info", LogFormat: "xml"},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.config)

			if tt.expectedError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, zap.L().Core().Enabled(tt.expectedLogLvl))
			if tt.expectedLogLvl > zapcore.DebugLevel {
				assert.False(t, zap.L().Core().Enabled(tt.expectedLogLvl-1))
			}
		})
	}
}

func TestEncoder(t *testing.T) {
	enc, cfg, err := encoder("json")
	require.NoError(t, err)
	assert.Equal(t, "json", enc)
	assert.Equal(t, "ts", cfg.TimeKey)

	enc, _, err = encoder("")
	require.NoError(t, err)
	assert.Equal(t, "console", enc)
}
