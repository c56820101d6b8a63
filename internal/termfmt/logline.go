package termfmt

import "strings"

var markers = []struct {
	marker string
	style  Style
}{
	{"❌", Fg(Red).Bold()},
	{"✅", Fg(Green).Bold()},
	{"⚠", Fg(Yellow)},
	{"✓", Fg(Green)},
	{"ℹ", Fg(Cyan)},
}

// LogLine colours a job log line by the first status marker it contains.  Item headers
// ("[3/10] …") are bold; anything else is returned as is.
func LogLine(line string) string {
	trimmed := strings.TrimSpace(line)
	for _, m := range markers {
		if strings.HasPrefix(trimmed, m.marker) {
			return m.style.Sprint(line)
		}
	}
	if strings.HasPrefix(line, "[") {
		return Bold().Sprint(line)
	}
	return line
}
