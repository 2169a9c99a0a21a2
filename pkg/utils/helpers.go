package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const mib = 1 << 20

// Pad left-pads s with spaces up to width
func Pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// Fixed formats value with digits decimals, left-padded to width
func Fixed(value float64, width, digits int) string {
	return Pad(strconv.FormatFloat(value, 'f', digits, 64), width)
}

// FixedMiB formats a byte count in MiB
func FixedMiB(bytes float64, width, digits int) string {
	return Fixed(bytes/mib, width, digits)
}

// FormatPercentage formats a float as percentage
func FormatPercentage(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}

// FormatElapsed formats d as HH:MM:SS. Hours do not wrap at a day.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// FormatBytes formats bytes into human readable format
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// TruncateString truncates a string to specified length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
