package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseISO8601Duration parses a time-only ISO-8601 duration of the form
// PT#H#M#S. Omitted components are zero. Date components (years, months,
// days) are not part of the recipe schema and are rejected.
func ParseISO8601Duration(s string) (time.Duration, error) {
	orig := s
	s = strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "PT") {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", orig)
	}
	s = s[2:]
	if s == "" {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", orig)
	}

	var total time.Duration
	num := ""
	seen := map[byte]bool{}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9' || c == '.':
			num += string(c)
		case c == 'H' || c == 'M' || c == 'S':
			if num == "" || seen[c] {
				return 0, fmt.Errorf("invalid ISO-8601 duration %q", orig)
			}
			seen[c] = true
			v, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid ISO-8601 duration %q", orig)
			}
			num = ""
			switch c {
			case 'H':
				total += time.Duration(v * float64(time.Hour))
			case 'M':
				total += time.Duration(v * float64(time.Minute))
			case 'S':
				total += time.Duration(v * float64(time.Second))
			}
		default:
			return 0, fmt.Errorf("invalid ISO-8601 duration %q", orig)
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", orig)
	}
	return total, nil
}

// FormatISO8601Duration renders a duration as PT#H#M#S. Sub-second
// precision is dropped; round-trip fidelity is guaranteed at minute
// granularity and above.
func FormatISO8601Duration(d time.Duration) string {
	if d <= 0 {
		return "PT0S"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	var b strings.Builder
	b.WriteString("PT")
	if h > 0 {
		fmt.Fprintf(&b, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dM", m)
	}
	if s > 0 || (h == 0 && m == 0) {
		fmt.Fprintf(&b, "%dS", s)
	}
	return b.String()
}

// HumanizeDuration phrases a duration the way the voice layer speaks it:
// "about 1 hour 25 minutes", "about 45 seconds", "no time at all".
func HumanizeDuration(d time.Duration) string {
	if d <= 0 {
		return "no time at all"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	parts := []string{}
	if h > 0 {
		parts = append(parts, plural(h, "hour"))
	}
	if m > 0 {
		parts = append(parts, plural(m, "minute"))
	}
	// Seconds are only worth saying when the duration is short.
	if s > 0 && h == 0 && m < 5 {
		parts = append(parts, plural(s, "second"))
	}
	if len(parts) == 0 {
		parts = append(parts, plural(m, "minute"))
	}
	return "about " + strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
