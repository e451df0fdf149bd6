package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unfsd-go/unfsd/internal/logger"
)

func TestToWriter_CapturesOutput(t *testing.T) {
	var buf bytes.Buffer
	logger.ToWriter(&buf)
	defer logger.ToStdout()

	logger.Info("hello", "key", "value")

	out := buf.String()
	assert.True(t, strings.Contains(out, "hello"))
	assert.True(t, strings.Contains(out, "key"))
}

func TestHex(t *testing.T) {
	assert.Equal(t, "0102ff", logger.Hex([]byte{0x01, 0x02, 0xff}))
}
