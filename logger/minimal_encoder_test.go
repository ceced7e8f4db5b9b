package logger

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// stripANSI removes ANSI color codes from a string for testing
func stripANSI(str string) string {
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return ansiRegex.ReplaceAllString(str, "")
}

func encode(t *testing.T, ent zapcore.Entry, fields ...zapcore.Field) string {
	t.Helper()
	buf, err := newMinimalEncoder().EncodeEntry(ent, fields)
	require.NoError(t, err)
	return stripANSI(buf.String())
}

func TestMinimalEncoderFormat(t *testing.T) {
	ts := time.Date(2026, 1, 2, 13, 4, 35, 0, time.UTC)

	t.Run("info omits level", func(t *testing.T) {
		out := encode(t, zapcore.Entry{
			Level:      zapcore.InfoLevel,
			Time:       ts,
			LoggerName: "generate",
			Message:    "Translated program",
		},
			zap.String(FieldTarget, "python"),
			zap.String(FieldProgram, "classifier_knn"),
			zap.Int64(FieldDurationMS, 3),
			zap.String("ignored_field", "x"),
		)

		assert.Equal(t, "13:04:35  generate  Translated program  python classifier_knn 3ms\n", out)
	})

	t.Run("warn shows level", func(t *testing.T) {
		out := encode(t, zapcore.Entry{
			Level:   zapcore.WarnLevel,
			Time:    ts,
			Message: "Formatter failed",
		}, zap.Error(assert.AnError))

		assert.Contains(t, out, "WARN")
		assert.Contains(t, out, assert.AnError.Error())
	})

	t.Run("debug tag", func(t *testing.T) {
		out := encode(t, zapcore.Entry{Level: zapcore.DebugLevel, Time: ts, Message: "cache hit"})
		assert.Equal(t, "13:04:35  DEBUG  cache hit\n", out)
	})
}

func TestSetTheme(t *testing.T) {
	defer SetTheme("everforest")

	SetTheme("plain")
	buf, err := newMinimalEncoder().EncodeEntry(zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC),
		Message: "plain output",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "09:00:00  plain output\n", buf.String())

	SetTheme("unknown-theme")
	assert.Equal(t, "plain", currentTheme)
}
