package recorder

import (
	"fmt"
	"strconv"
	"strings"
)

// Schedule is the set of hours-of-day (0-23, local wall clock) during which
// recording is armed.
type Schedule struct {
	hours [24]bool
}

// ParseSchedule parses a comma-separated list of "start-end" hour ranges,
// e.g. "0-7,22-23". A single hour with no dash arms just that hour. A range
// may wrap past midnight, e.g. "22-6" arms 22:00 through 05:59.
func ParseSchedule(s string) (Schedule, error) {
	var sched Schedule
	s = strings.TrimSpace(s)
	if s == "" {
		return sched, fmt.Errorf("recorder: empty schedule")
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		start, end, err := parseRange(part)
		if err != nil {
			return Schedule{}, err
		}
		if start <= end {
			for h := start; h <= end; h++ {
				sched.hours[h] = true
			}
		} else {
			for h := start; h <= 23; h++ {
				sched.hours[h] = true
			}
			for h := 0; h <= end; h++ {
				sched.hours[h] = true
			}
		}
	}
	return sched, nil
}

func parseRange(part string) (start, end int, err error) {
	if dash := strings.IndexByte(part, '-'); dash >= 0 {
		start, err = parseHour(part[:dash])
		if err != nil {
			return 0, 0, err
		}
		end, err = parseHour(part[dash+1:])
		if err != nil {
			return 0, 0, err
		}
		return start, end, nil
	}
	h, err := parseHour(part)
	if err != nil {
		return 0, 0, err
	}
	return h, h, nil
}

func parseHour(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("recorder: invalid schedule hour %q: %w", s, err)
	}
	if n < 0 || n > 23 {
		return 0, fmt.Errorf("recorder: schedule hour %d out of range [0,23]", n)
	}
	return n, nil
}

// Armed reports whether the given hour-of-day is within the schedule.
func (s Schedule) Armed(hour int) bool {
	if hour < 0 || hour > 23 {
		return false
	}
	return s.hours[hour]
}

// AlwaysOn reports whether every hour of the day is armed.
func (s Schedule) AlwaysOn() bool {
	for _, on := range s.hours {
		if !on {
			return false
		}
	}
	return true
}
