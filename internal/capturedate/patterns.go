package capturedate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type filenamePattern struct {
	re *regexp.Regexp
	// meridiem is the submatch index holding an AM/PM marker, or 0.
	meridiem int
}

// Ordered from most to least specific. The first match that forms a valid
// calendar value wins; an invalid one falls through to the next pattern.
var filenamePatterns = []filenamePattern{
	// 2024-01-15 14.30.22, 2024-01-15_143022
	{re: regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})[_\s\-.](\d{2})[._]?(\d{2})[._]?(\d{2})`)},
	// "2024-01-15 at 3.31.16 PM" (macOS uses a narrow no-break space before PM)
	{re: regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})\s+at\s+(\d{1,2})\.(\d{2})\.(\d{2})(?:[\s\x{202f}]*([AaPp][Mm]))?`), meridiem: 7},
	// 20240115_143022, 20240115-143022
	{re: regexp.MustCompile(`(\d{4})(\d{2})(\d{2})[_\-](\d{2})(\d{2})(\d{2})`)},
	// IMG_20240115_143022
	{re: regexp.MustCompile(`IMG[_\-](\d{4})(\d{2})(\d{2})[_\-](\d{2})(\d{2})(\d{2})`)},
	// 2024-01-15
	{re: regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)},
}

var digitRun = regexp.MustCompile(`\d+`)

// ParseFilename extracts a capture time from a file name, matching against
// the stem only.
func ParseFilename(name string) (time.Time, bool) {
	stem := Stem(name)

	for _, p := range filenamePatterns {
		m := p.re.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		if t, ok := buildTime(m, p.meridiem); ok {
			return t, true
		}
	}

	// A bare 8-digit date: the first run of exactly eight digits.
	for _, run := range digitRun.FindAllString(stem, -1) {
		if len(run) != 8 {
			continue
		}
		if t, ok := buildTime([]string{run, run[0:4], run[4:6], run[6:8]}, 0); ok {
			return t, true
		}
		break
	}

	return time.Time{}, false
}

func buildTime(m []string, meridiem int) (time.Time, bool) {
	parts := make([]int, 0, 6)
	for _, s := range m[1:] {
		if s == "" || !isDigits(s) {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, false
		}
		parts = append(parts, n)
		if len(parts) == 6 {
			break
		}
	}
	for len(parts) < 6 {
		parts = append(parts, 0)
	}
	year, month, day, hour, minute, sec := parts[0], parts[1], parts[2], parts[3], parts[4], parts[5]

	if meridiem > 0 && meridiem < len(m) && m[meridiem] != "" {
		if hour < 1 || hour > 12 {
			return time.Time{}, false
		}
		pm := strings.EqualFold(m[meridiem], "pm")
		switch {
		case pm && hour != 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
	}

	if year < 1 || month < 1 || month > 12 || hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 -> Mar 1); reject anything that moved.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
