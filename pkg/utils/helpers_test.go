package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPadAndFixed(t *testing.T) {
	assert.Equal(t, "   42", Pad("42", 5))
	assert.Equal(t, "123456", Pad("123456", 3))
	assert.Equal(t, "  3.1", Fixed(3.14159, 5, 1))
	assert.Equal(t, "12.5", FixedMiB(12.5*mib, 0, 1))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatElapsed(0))
	assert.Equal(t, "00:01:05", FormatElapsed(65*time.Second+400*time.Millisecond))
	assert.Equal(t, "26:00:00", FormatElapsed(26*time.Hour))
	assert.Equal(t, "00:00:00", FormatElapsed(-time.Second))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KiB", FormatBytes(1536))
	assert.Equal(t, "0 B", FormatBytes(-1))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abcd...", TruncateString("abcdefghij", 7))
	assert.Equal(t, "ab", TruncateString("abcdef", 2))
}
