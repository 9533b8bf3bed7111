package parser

import (
	"strconv"
	"strings"
)

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func isTrue(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

// isoDurationSeconds parses the PT#H#M#S durations used by ERN. Fractional
// seconds are truncated.
func isoDurationSeconds(s string) (int, bool) {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, "PT")
	if !ok || rest == "" {
		return 0, false
	}
	total := 0.0
	for rest != "" {
		i := strings.IndexAny(rest, "HMS")
		if i <= 0 {
			return 0, false
		}
		v, err := strconv.ParseFloat(rest[:i], 64)
		if err != nil || v < 0 {
			return 0, false
		}
		switch rest[i] {
		case 'H':
			total += v * 3600
		case 'M':
			total += v * 60
		case 'S':
			total += v
		}
		rest = rest[i+1:]
	}
	return int(total), true
}
