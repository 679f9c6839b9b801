// Package dateparse turns natural language days and ranges into concrete
// times in a given location, for filtering appointments.
package dateparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnrecognized is returned for input that is neither a known phrase nor a date.
var ErrUnrecognized = errors.New("unrecognized date")

// ParseDay resolves a single-day phrase to midnight of that day in now's
// location. Accepted forms:
//   - today, tomorrow, yesterday
//   - monday, tue, ... (next occurrence; the same weekday means a week out)
//   - next monday (the one after this week's)
//   - next week, next month (same day a week or month ahead)
//   - eow / end of week (Friday), eom / end of month
//   - +N, -N, in N days, in N weeks
//   - YYYY-MM-DD
func ParseDay(input string, now time.Time) (time.Time, error) {
	if day, ok := resolveDay(strings.ToLower(strings.TrimSpace(input)), midnight(now)); ok {
		return day, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognized, input)
}

var (
	relativePattern = regexp.MustCompile(`^([+-]\d+)$`)
	inDaysPattern   = regexp.MustCompile(`^in (\d+) days?$`)
	inWeeksPattern  = regexp.MustCompile(`^in (\d+) weeks?$`)
)

func resolveDay(input string, today time.Time) (time.Time, bool) {
	switch input {
	case "today", "now":
		return today, true
	case "tomorrow", "tmrw":
		return today.AddDate(0, 0, 1), true
	case "yesterday":
		return today.AddDate(0, 0, -1), true
	case "next week", "nextweek":
		return today.AddDate(0, 0, 7), true
	case "next month", "nextmonth":
		return today.AddDate(0, 1, 0), true
	case "end of week", "eow":
		return nextWeekday(today, time.Friday, false), true
	case "end of month", "eom":
		return endOfMonth(today), true
	}

	if day, ok := parseWeekday(input); ok {
		return nextWeekday(today, day, strings.HasPrefix(input, "next ")), true
	}

	for _, p := range []struct {
		re    *regexp.Regexp
		scale int
	}{{relativePattern, 1}, {inDaysPattern, 1}, {inWeeksPattern, 7}} {
		if m := p.re.FindStringSubmatch(input); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return time.Time{}, false
			}
			return today.AddDate(0, 0, n*p.scale), true
		}
	}

	if d, err := time.ParseInLocation("2006-01-02", input, today.Location()); err == nil {
		return d, true
	}
	return time.Time{}, false
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func parseWeekday(input string) (time.Weekday, bool) {
	input = strings.TrimPrefix(input, "next ")
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if input == name || input == name[:3] {
			return d, true
		}
	}
	return 0, false
}

// nextWeekday returns the next occurrence of target after now. The same
// weekday counts as a week away. With forceNext ("next monday") the
// occurrence after this week's is returned, except when today is the
// target, which stays a week away.
func nextWeekday(now time.Time, target time.Weekday, forceNext bool) time.Time {
	daysUntil := int(target - now.Weekday())
	sameDay := daysUntil == 0
	if daysUntil <= 0 {
		daysUntil += 7
	}
	if forceNext && !sameDay {
		daysUntil += 7
	}
	return now.AddDate(0, 0, daysUntil)
}

// endOfMonth returns the last day of now's month.
func endOfMonth(now time.Time) time.Time {
	year, month, _ := now.Date()
	return time.Date(year, month+1, 1, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -1)
}

// Range is the half-open interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days covered.
func (r Range) Days() int {
	n := 0
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// String formats the range as inclusive dates, "2026-03-02" or "2026-03-02..2026-03-08".
func (r Range) String() string {
	last := r.End.AddDate(0, 0, -1)
	if !last.After(r.Start) {
		return formatDate(r.Start)
	}
	return formatDate(r.Start) + ".." + formatDate(last)
}

var nextDaysPattern = regexp.MustCompile(`^next (\d+) days?$`)

// ParseRange resolves input to a range of whole days in now's location.
// Supported forms, besides every single-day form ParseDay accepts:
//   - this week, next week, last week (Monday to Sunday)
//   - this month, next month
//   - next N days (today included)
//   - A..B (both ends inclusive; each end is any single-day form)
func ParseRange(input string, now time.Time) (Range, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	today := midnight(now)

	if a, b, ok := strings.Cut(input, ".."); ok {
		start, err := ParseDay(a, now)
		if err != nil {
			return Range{}, err
		}
		end, err := ParseDay(b, now)
		if err != nil {
			return Range{}, err
		}
		if end.Before(start) {
			return Range{}, fmt.Errorf("range %q ends before it starts", input)
		}
		return Range{Start: start, End: end.AddDate(0, 0, 1)}, nil
	}

	switch input {
	case "this week", "week":
		start := weekStart(today)
		return Range{Start: start, End: start.AddDate(0, 0, 7)}, nil
	case "next week", "nextweek":
		start := weekStart(today).AddDate(0, 0, 7)
		return Range{Start: start, End: start.AddDate(0, 0, 7)}, nil
	case "last week":
		start := weekStart(today).AddDate(0, 0, -7)
		return Range{Start: start, End: start.AddDate(0, 0, 7)}, nil
	case "this month", "month":
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return Range{Start: start, End: start.AddDate(0, 1, 0)}, nil
	case "next month", "nextmonth":
		start := time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, today.Location())
		return Range{Start: start, End: start.AddDate(0, 1, 0)}, nil
	}

	if match := nextDaysPattern.FindStringSubmatch(input); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil && n > 0 {
			return Range{Start: today, End: today.AddDate(0, 0, n)}, nil
		}
	}

	day, err := ParseDay(input, now)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: day, End: day.AddDate(0, 0, 1)}, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// weekStart returns the Monday on or before day.
func weekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
