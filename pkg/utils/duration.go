package utils

import "fmt"

// FormatDuration renders a second count as H:MM:SS.
func FormatDuration(totalSeconds int64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return fmt.Sprintf("%d:%02d:%02d",
		totalSeconds/3600, (totalSeconds%3600)/60, totalSeconds%60)
}
