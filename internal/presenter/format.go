package presenter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatOptions carries the context a value needs to be formatted.
type FormatOptions struct {
	Locale   Locale
	Location *time.Location
	Currency string
}

// FormatValue renders v according to the column's format.
func FormatValue(col Column, v any, opts FormatOptions) string {
	if v == nil {
		return ""
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	switch col.Format {
	case "datetime", "date", "time":
		t, ok := parseTime(v)
		if !ok {
			return fmt.Sprintf("%v", v)
		}
		t = t.In(loc)
		switch col.Format {
		case "date":
			return opts.Locale.FormatDate(t)
		case "time":
			return opts.Locale.FormatClock(t)
		}
		return opts.Locale.FormatDateTime(t)
	case "duration":
		return FormatDuration(v)
	case "price":
		return opts.Locale.FormatPrice(v, opts.Currency)
	case "status":
		return HumanizeKey(fmt.Sprintf("%v", v))
	case "bool":
		if b, ok := v.(bool); ok {
			if b {
				return "yes"
			}
			return "no"
		}
	case "person":
		return personName(v)
	case "list":
		if items, ok := v.([]any); ok {
			names := make([]string, 0, len(items))
			for _, item := range items {
				names = append(names, personName(item))
			}
			return strings.Join(names, ", ")
		}
	}
	return plain(v)
}

// FormatDuration renders minutes (number) or a DRF duration string
// ("HH:MM:SS") as "1h 30m".
func FormatDuration(v any) string {
	var minutes int
	switch d := v.(type) {
	case float64:
		minutes = int(d)
	case int:
		minutes = d
	case string:
		parts := strings.Split(d, ":")
		if len(parts) != 3 {
			if n, err := strconv.Atoi(d); err == nil {
				minutes = n
				break
			}
			return d
		}
		h, err1 := strconv.Atoi(parts[0])
		m, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return d
		}
		minutes = h*60 + m
	default:
		return fmt.Sprintf("%v", v)
	}

	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// HumanizeKey turns "postal_code" into "Postal code".
func HumanizeKey(key string) string {
	s := strings.ReplaceAll(key, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// LookupPath resolves a dotted path ("customer.name") in nested maps.
func LookupPath(data map[string]any, path string) any {
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func personName(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		if f, ok := v.(float64); ok {
			return "#" + strconv.FormatInt(int64(f), 10)
		}
		return plain(v)
	}
	if name, ok := m["name"].(string); ok && name != "" {
		return name
	}
	first, _ := m["first_name"].(string)
	last, _ := m["last_name"].(string)
	if full := strings.TrimSpace(first + " " + last); full != "" {
		return full
	}
	if email, ok := m["email"].(string); ok {
		return email
	}
	return plain(m["id"])
}

func plain(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	return fmt.Sprintf("%v", v)
}

func parseTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
