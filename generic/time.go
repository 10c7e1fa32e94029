package generic

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the business timezone used for day, week and month keys.
const DefaultTimezone = "America/Sao_Paulo"

// LoadLocation resolves a timezone name, falling back to DefaultTimezone and
// then UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// =============================================================================
// MONTH - "2006-01"
// =============================================================================

type Month string

const monthLayout = "2006-01"

func ParseMonth(s string) (Month, error) {
	if _, err := time.Parse(monthLayout, s); err != nil {
		return "", fmt.Errorf("%w: month %q", ErrInvalidKey, s)
	}
	return Month(s), nil
}

func MonthOf(t time.Time) Month { return Month(t.Format(monthLayout)) }

// Start returns the first instant of the month in loc.
func (m Month) Start(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(monthLayout, string(m), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Contains reports whether a "2006-01-02" date belongs to the month.
func (m Month) Contains(date Date) bool {
	return len(date) >= 7 && string(date[:7]) == string(m)
}

func (m Month) String() string { return string(m) }

// =============================================================================
// DATE - "2006-01-02"
// =============================================================================

type Date string

const dateLayout = "2006-01-02"

func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("%w: date %q", ErrInvalidKey, s)
	}
	return Date(s), nil
}

func DateOf(t time.Time) Date { return Date(t.Format(dateLayout)) }

func (d Date) Month() Month {
	if len(d) < 7 {
		return ""
	}
	return Month(d[:7])
}

func (d Date) Time(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(dateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// =============================================================================
// WEEK KEY - "2006-W01", Monday start
// =============================================================================

// WeekKey identifies an ISO week, e.g. "2025-W07".
type WeekKey string

// WeekKeyOf returns the key of the Monday-start week containing t, evaluated
// in loc.
func WeekKeyOf(t time.Time, loc *time.Location) WeekKey {
	year, week := t.In(loc).ISOWeek()
	return WeekKey(fmt.Sprintf("%04d-W%02d", year, week))
}

func ParseWeekKey(s string) (WeekKey, error) {
	var year, week int
	if n, err := fmt.Sscanf(s, "%4d-W%2d", &year, &week); err != nil || n != 2 || week < 1 || week > 53 || len(s) != 8 {
		return "", fmt.Errorf("%w: week %q", ErrInvalidKey, s)
	}
	return WeekKey(s), nil
}

// Monday returns midnight of the week's Monday in loc.
func (w WeekKey) Monday(loc *time.Location) time.Time {
	var year, week int
	if _, err := fmt.Sscanf(string(w), "%4d-W%2d", &year, &week); err != nil {
		return time.Time{}
	}
	// Jan 4th is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset+(week-1)*7)
}

func (w WeekKey) String() string { return string(w) }
