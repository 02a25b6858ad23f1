package playtime

import "fmt"

// FormatDuration renders a minute count for display, e.g. "45 min", "2h 5m" or "3d 4h 0m"
func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}

	hours := minutes / 60
	minutes %= 60
	if hours < 24 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}

	return fmt.Sprintf("%dd %dh %dm", hours/24, hours%24, minutes)
}
