package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"docdesk/internal/logging"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, logging.ParseLevel("DEBUG"))
	assert.Equal(t, zap.WarnLevel, logging.ParseLevel("warning"))
	assert.Equal(t, zap.ErrorLevel, logging.ParseLevel(" error "))
	assert.Equal(t, zap.InfoLevel, logging.ParseLevel("chatty"))
}

func TestNew_RespectsLevel(t *testing.T) {
	log := logging.New("warn", false)
	assert.False(t, log.Desugar().Core().Enabled(zap.InfoLevel))
	assert.True(t, log.Desugar().Core().Enabled(zap.WarnLevel))

	dev := logging.New("debug", true)
	assert.True(t, dev.Desugar().Core().Enabled(zap.DebugLevel))
}
