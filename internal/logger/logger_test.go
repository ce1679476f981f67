package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs_RedactsCredentials(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "sk-123", "attempt", 2, "Authorization", "Bearer x", "dangling"})
	assert.Equal(t, []interface{}{"api_key", "[REDACTED]", "attempt", 2, "Authorization", "[REDACTED]", "dangling"}, out)
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("request_id", "r1").Info("draft accepted", "attempts", 2, "token", "abc")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "draft accepted", entries[0].Message)
		assert.Equal(t, "r1", fields["request_id"])
		assert.EqualValues(t, 2, fields["attempts"])
		assert.Equal(t, "[REDACTED]", fields["token"])
	}
}
