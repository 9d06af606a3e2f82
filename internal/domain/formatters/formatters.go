// Package formatters - преобразования длительностей и размеров для текстов бота.
package formatters

import (
	"fmt"
	"strconv"
	"strings"
)

// VideoFormats - расширения документов, которые принимаются как видео.
var VideoFormats = []string{
	"webm", "mkv", "flv", "vob", "ogv", "ogg", "rrc", "gifv", "mng", "mov", "avi", "qt",
	"wmv", "yuv", "rm", "asf", "amv", "mp4", "m4p", "m4v", "mpg", "mp2", "mpeg", "mpe",
	"mpv", "svi", "3gp", "3g2", "mxf", "roq", "nsv", "f4v", "f4p", "f4a", "f4b",
}

// IsVideoFormat проверяет расширение без учёта регистра.
func IsVideoFormat(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, f := range VideoFormats {
		if f == ext {
			return true
		}
	}
	return false
}

// TimeToSeconds разбирает "h:m:s", "m:s" или "s". Нечисловые части считаются нулём.
func TimeToSeconds(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	parts := strings.Split(s, ":")
	total, mul := 0, 1
	for i := len(parts) - 1; i >= 0; i-- {
		n, _ := strconv.Atoi(strings.TrimSpace(parts[i]))
		total += n * mul
		mul *= 60
	}
	return total
}

// SecondsToMin форматирует длительность: "00:07", "03:25", "01:02:03", с днями "01:00:00:05".
// Ноль и отрицательные значения дают "-".
func SecondsToMin(seconds int) string {
	if seconds <= 0 {
		return "-"
	}
	d := seconds / 86400
	h := seconds / 3600 % 24
	m := seconds % 3600 / 60
	s := seconds % 60
	switch {
	case d > 0:
		return fmt.Sprintf("%02d:%02d:%02d:%02d", d, h, m, s)
	case h > 0:
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	case m > 0:
		return fmt.Sprintf("%02d:%02d", m, s)
	default:
		return fmt.Sprintf("00:%02d", s)
	}
}

// HumanBytes - размер в двоичных единицах с одним знаком после запятой.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
