// Package dates resolves the date expressions users type on the command
// line: taskwarrior-style synonyms (today, eom, friday), literal dates,
// and free-form natural language ("next tuesday at noon") via the when
// parser.
package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var literalLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"20060102",
}

// Parse resolves expr relative to base. Resolution order: synonym,
// duration offset (3d, 2w, 1m, 1y), literal date layout, then natural
// language.
func Parse(expr string, base time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty date expression")
	}

	if t, ok := synonym(strings.ToLower(trimmed), base); ok {
		return t, nil
	}
	if t, ok := offset(strings.ToLower(trimmed), base); ok {
		return t, nil
	}
	for _, layout := range literalLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, base.Location()); err == nil {
			return t, nil
		}
	}

	result, err := naturalParser().Parse(trimmed, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", expr, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("unrecognized date expression %q", expr)
	}
	return result.Time, nil
}

func naturalParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// synonym resolves the fixed-name expressions. Day names resolve to the
// next occurrence of that weekday strictly after base's date.
func synonym(name string, base time.Time) (time.Time, bool) {
	sod := startOfDay(base)
	switch name {
	case "now":
		return base, true
	case "today", "sod":
		return sod, true
	case "eod":
		return sod.AddDate(0, 0, 1).Add(-time.Second), true
	case "yesterday":
		return sod.AddDate(0, 0, -1), true
	case "tomorrow":
		return sod.AddDate(0, 0, 1), true
	case "sow":
		return startOfWeek(sod).AddDate(0, 0, 7), true
	case "eow", "eocw":
		return startOfWeek(sod).AddDate(0, 0, 7).Add(-time.Second), true
	case "socw":
		return startOfWeek(sod), true
	case "som":
		return time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, base.Location()).AddDate(0, 1, 0), true
	case "socm":
		return time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, base.Location()), true
	case "eom", "eocm":
		return time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, base.Location()).AddDate(0, 1, 0).Add(-time.Second), true
	case "soy":
		return time.Date(base.Year()+1, 1, 1, 0, 0, 0, 0, base.Location()), true
	case "eoy":
		return time.Date(base.Year()+1, 1, 1, 0, 0, 0, 0, base.Location()).Add(-time.Second), true
	}

	if wd, ok := weekdays[name]; ok {
		days := (int(wd) - int(sod.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return sod.AddDate(0, 0, days), true
	}
	return time.Time{}, false
}

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// offset resolves compact duration expressions: an integer followed by a
// unit (h, d, w, m, q, y), optionally signed. "3d" is three days from
// base; "-2w" two weeks before.
func offset(expr string, base time.Time) (time.Time, bool) {
	if len(expr) < 2 {
		return time.Time{}, false
	}
	unit := expr[len(expr)-1]
	n, err := strconv.Atoi(expr[:len(expr)-1])
	if err != nil {
		return time.Time{}, false
	}
	switch unit {
	case 'h':
		return base.Add(time.Duration(n) * time.Hour), true
	case 'd':
		return base.AddDate(0, 0, n), true
	case 'w':
		return base.AddDate(0, 0, 7*n), true
	case 'm':
		return base.AddDate(0, n, 0), true
	case 'q':
		return base.AddDate(0, 3*n, 0), true
	case 'y':
		return base.AddDate(n, 0, 0), true
	}
	return time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek treats Monday as the first day of the week.
func startOfWeek(sod time.Time) time.Time {
	days := (int(sod.Weekday()) - int(time.Monday) + 7) % 7
	return sod.AddDate(0, 0, -days)
}
