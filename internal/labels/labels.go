package labels

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Label names are overloaded to carry pricing, priority and duration data:
// "Price: 200", "Priority: 3 (High)", "Time: <1 Week". The patterns below are
// deliberately loose about whitespace because labels are hand-entered.
var (
	pricePattern    = regexp.MustCompile(`(?i)^price:\s*(.*)$`)
	numberPattern   = regexp.MustCompile(`\d+(?:\.\d+)?`)
	durationPattern = regexp.MustCompile(`(?i)^time:\s*<?\s*(\d+(?:\.\d+)?)\s*(minute|hour|day|week|month)s?`)
)

// FindPriceLabel returns the first label carrying a price, if any.
func FindPriceLabel(names []string) (string, bool) {
	for _, name := range names {
		if pricePattern.MatchString(name) {
			return name, true
		}
	}
	return "", false
}

// ParsePrice extracts the USD amount from a price label.
func ParsePrice(label string) (float64, error) {
	m := pricePattern.FindStringSubmatch(label)
	if m == nil {
		return 0, fmt.Errorf("label %q is not a price label", label)
	}

	num := numberPattern.FindString(m[1])
	if num == "" {
		return 0, fmt.Errorf("price label %q has no numeric value", label)
	}

	price, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("price label %q has no numeric value", label)
	}

	return price, nil
}

// RequiredExperience returns the highest XP threshold among the issue's
// priority labels. The second return value is false when no label matches a
// configured threshold, meaning the experience gate does not apply.
func RequiredExperience(names []string, thresholds map[string]int) (int, bool) {
	required := 0
	found := false

	for _, name := range names {
		if xp, ok := thresholds[strings.TrimSpace(name)]; ok {
			if !found || xp > required {
				required = xp
			}
			found = true
		}
	}

	return required, found
}

// ParseDuration parses a human-readable duration such as "1 Day", "<1 Hour"
// or "2 Weeks" from a time label or a config value.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch("Time: " + strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("unparsable duration %q", s)
	}
	return durationFromParts(m[1], m[2])
}

func durationFromParts(amount, unit string) (time.Duration, error) {
	n, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable duration amount %q", amount)
	}

	var base time.Duration
	switch strings.ToLower(unit) {
	case "minute":
		base = time.Minute
	case "hour":
		base = time.Hour
	case "day":
		base = 24 * time.Hour
	case "week":
		base = 7 * 24 * time.Hour
	case "month":
		// Calendar months vary; 30 days matches how durations are labelled.
		base = 30 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown duration unit %q", unit)
	}

	return time.Duration(n * float64(base)), nil
}

// ShortestDuration returns the smallest duration among the issue's time
// labels. The second return value is false when the issue has no time label.
func ShortestDuration(names []string) (time.Duration, bool) {
	var shortest time.Duration
	found := false

	for _, name := range names {
		m := durationPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		d, err := durationFromParts(m[1], m[2])
		if err != nil {
			continue
		}
		if !found || d < shortest {
			shortest = d
		}
		found = true
	}

	return shortest, found
}

// Deadline computes the task deadline from the issue's shortest time label.
// It errors when the issue carries no time label at all; callers that treat a
// missing deadline as acceptable should use ShortestDuration directly.
func Deadline(names []string, now time.Time) (time.Time, error) {
	d, ok := ShortestDuration(names)
	if !ok {
		return time.Time{}, fmt.Errorf("issue has no time label")
	}
	return now.Add(d), nil
}
