package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseISODuration converts an ISO 8601 duration (PnW, PnDTnHnMnS) into a
// time.Duration. Year and month designators are rejected: calendar-relative
// durations have no fixed length. The standard library has no ISO duration
// support, so this is hand-rolled.
func parseISODuration(s string) (time.Duration, error) {
	orig := s
	s = strings.TrimSpace(strings.ToUpper(s))
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", orig)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9' || r == '.':
			num += string(r)
		case r == 'T':
			if inTime || num != "" {
				return 0, fmt.Errorf("invalid ISO 8601 duration %q", orig)
			}
			inTime = true
		default:
			if num == "" {
				return 0, fmt.Errorf("invalid ISO 8601 duration %q", orig)
			}
			v, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid ISO 8601 duration %q", orig)
			}
			num = ""
			var unit time.Duration
			switch r {
			case 'W':
				unit = 7 * 24 * time.Hour
			case 'D':
				unit = 24 * time.Hour
			case 'H':
				if !inTime {
					return 0, fmt.Errorf("invalid ISO 8601 duration %q", orig)
				}
				unit = time.Hour
			case 'M':
				if !inTime {
					return 0, fmt.Errorf("calendar months unsupported in duration %q", orig)
				}
				unit = time.Minute
			case 'S':
				if !inTime {
					return 0, fmt.Errorf("invalid ISO 8601 duration %q", orig)
				}
				unit = time.Second
			case 'Y':
				return 0, fmt.Errorf("calendar years unsupported in duration %q", orig)
			default:
				return 0, fmt.Errorf("invalid ISO 8601 duration %q", orig)
			}
			total += time.Duration(v * float64(unit))
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid ISO 8601 duration %q", orig)
	}
	if total == 0 {
		return 0, fmt.Errorf("zero or empty duration %q", orig)
	}
	return total, nil
}
