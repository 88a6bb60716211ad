// Package datecalc converts the fractional "days" encoding used by task
// actions into concrete due dates. The encoding is textual: the integer part
// of an offset is whole days, and a fractional part is re-read as hours from
// its literal decimal digits ("0.1" is 1 hour, "0.23" is 23 hours, "2.10" is
// 2 days and 10 hours). The encoding lives entirely behind this package so it
// can be replaced without touching the engine.
package datecalc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Offset is a parsed day/hour offset.
type Offset struct {
	Days  int
	Hours int
	// Fractional records whether the literal carried a fractional part.
	// A fractional offset forces hour arithmetic and an automatically
	// derived time of day.
	Fractional bool
}

// TotalHours returns the offset expressed in hours.
func (o Offset) TotalHours() int {
	return o.Days*24 + o.Hours
}

// Parse reads an offset from the literal text of a JSON number. An empty
// literal is a zero offset. Fractions with more than two decimal digits, or
// resolving to more than 23 hours, are rejected; rule validation calls Parse
// so such encodings never reach execution.
func Parse(n json.Number) (Offset, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return Offset{}, nil
	}
	if strings.HasPrefix(s, "-") {
		return Offset{}, fmt.Errorf("offset %q cannot be negative", s)
	}

	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		days, err := strconv.Atoi(s)
		if err != nil {
			return Offset{}, fmt.Errorf("invalid offset %q", s)
		}
		return Offset{Days: days}, nil
	}

	days := 0
	if dot > 0 {
		parsed, err := strconv.Atoi(s[:dot])
		if err != nil {
			return Offset{}, fmt.Errorf("invalid offset %q", s)
		}
		days = parsed
	}

	frac := s[dot+1:]
	if frac == "" || strings.Trim(frac, "0") == "" {
		return Offset{Days: days}, nil
	}
	if len(frac) > 2 {
		return Offset{}, fmt.Errorf("offset %q has more than two decimal digits", s)
	}

	hours, err := strconv.Atoi(frac)
	if err != nil {
		return Offset{}, fmt.Errorf("invalid offset %q", s)
	}
	if hours > 23 {
		return Offset{}, fmt.Errorf("offset %q resolves to %d hours, above 23", s, hours)
	}

	return Offset{Days: days, Hours: hours, Fractional: true}, nil
}

// DueDate is a computed due moment. HasTime reports whether the clock time is
// significant; a date-only due date keeps At at midnight.
type DueDate struct {
	At      time.Time
	HasTime bool
}

// Due computes the due date for repeat instance index, counting from base.
// The offset for instance i is offset + i*interval. When either operand is
// fractional the result is hour arithmetic with an automatically derived time
// of day and any fixedTime is ignored; otherwise only the calendar date moves
// and fixedTime ("HH:MM"), when present, supplies the clock time.
func Due(base time.Time, offset, interval Offset, index int, fixedTime *string) DueDate {
	if offset.Fractional || interval.Fractional {
		total := offset.TotalHours() + index*interval.TotalHours()
		return DueDate{At: base.Add(time.Duration(total) * time.Hour), HasTime: true}
	}

	days := offset.Days + index*interval.Days
	due := midnight(base).AddDate(0, 0, days)
	if fixedTime == nil {
		return DueDate{At: due}
	}

	hour, minute, ok := parseClock(*fixedTime)
	if !ok {
		return DueDate{At: due}
	}
	return DueDate{
		At:      due.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute),
		HasTime: true,
	}
}

// Step offsets a confirmed base due date by i intervals using the same
// arithmetic as Due. It is used after a human confirms the first task's due
// date: subsequent instances step from the confirmed value.
func Step(base DueDate, interval Offset, index int) DueDate {
	if index == 0 {
		return base
	}
	if interval.Fractional {
		return DueDate{
			At:      base.At.Add(time.Duration(index*interval.TotalHours()) * time.Hour),
			HasTime: true,
		}
	}
	return DueDate{At: base.At.AddDate(0, 0, index*interval.Days), HasTime: base.HasTime}
}

func midnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func parseClock(value string) (hour, minute int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
