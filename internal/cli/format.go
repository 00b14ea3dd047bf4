package cli

import (
	"fmt"
	"time"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatThroughput formats calls per second over d, e.g. "12.5 calls/s".
func FormatThroughput(calls int, d time.Duration) string {
	if d <= 0 {
		return "0.0 calls/s"
	}
	return fmt.Sprintf("%.1f calls/s", float64(calls)/d.Seconds())
}
