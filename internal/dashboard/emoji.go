package dashboard

import "strings"

// Emoji picks an icon for a condition text. Earlier matches win, so
// "Cloudy with rain" is a cloud.
func Emoji(condition string) string {
	c := strings.ToLower(condition)
	switch {
	case strings.Contains(c, "clear"), strings.Contains(c, "sunny"):
		return "☀️"
	case strings.Contains(c, "cloud"):
		return "☁️"
	case strings.Contains(c, "rain"):
		return "🌧️"
	case strings.Contains(c, "snow"):
		return "❄️"
	case strings.Contains(c, "thunder"), strings.Contains(c, "storm"):
		return "⛈️"
	case strings.Contains(c, "fog"), strings.Contains(c, "mist"):
		return "🌫️"
	default:
		return "🌤️"
	}
}
