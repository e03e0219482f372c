package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidMonth = errors.New("invalid month")
	ErrInvalidYear  = errors.New("invalid year")
)

// MaxYear is the last year a MonthPeriod may name. The window of its
// December must end inside a four-digit year.
const MaxYear = 9998

// MonthPeriod identifies a calendar month.
type MonthPeriod struct {
	Year  int
	Month time.Month
}

func NewMonthPeriod(year, month int) (MonthPeriod, error) {
	if month < 1 || month > 12 {
		return MonthPeriod{}, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	if year < 1 || year > MaxYear {
		return MonthPeriod{}, fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	return MonthPeriod{Year: year, Month: time.Month(month)}, nil
}

// CurrentPeriod returns the month containing now.
func CurrentPeriod(now time.Time) MonthPeriod {
	return MonthPeriod{Year: now.Year(), Month: now.Month()}
}

// PreviousPeriod returns the month before the one containing now, computed as
// the day before the first of the current month.
func PreviousPeriod(now time.Time) MonthPeriod {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	last := first.AddDate(0, 0, -1)
	return MonthPeriod{Year: last.Year(), Month: last.Month()}
}

// Window returns the half-open interval [first day 00:00, first day of next month 00:00).
func (p MonthPeriod) Window(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
	return start, p.Next().start(loc)
}

func (p MonthPeriod) Next() MonthPeriod {
	if p.Month == time.December {
		return MonthPeriod{Year: p.Year + 1, Month: time.January}
	}
	return MonthPeriod{Year: p.Year, Month: p.Month + 1}
}

func (p MonthPeriod) Previous() MonthPeriod {
	if p.Month == time.January {
		return MonthPeriod{Year: p.Year - 1, Month: time.December}
	}
	return MonthPeriod{Year: p.Year, Month: p.Month - 1}
}

func (p MonthPeriod) start(loc *time.Location) time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
}

// String renders the period as MM.YYYY.
func (p MonthPeriod) String() string {
	return fmt.Sprintf("%02d.%d", int(p.Month), p.Year)
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
