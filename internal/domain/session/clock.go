package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the exclusive upper bound of a Clock value.
const MinutesPerDay = 24 * 60

// ErrCrossesMidnight is returned when a time computation would roll past 24:00.
// Sessions never span two calendar dates.
var ErrCrossesMidnight = errors.New("session would cross midnight")

// Clock is a wall-clock time of day in minutes since midnight. It marshals as "HH:MM".
type Clock int

// NewClock builds a Clock from an hour and minute.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses a "HH:MM" string. "24:00" is accepted as the end-of-day bound.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return NewClock(hour, minute), nil
}

// MustParseClock is ParseClock for constants and tests.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// Minutes returns the number of minutes since midnight.
func (c Clock) Minutes() int { return int(c) }

// Add returns c shifted by minutes. The result may equal 24:00 but never exceed it.
func (c Clock) Add(minutes int) (Clock, error) {
	end := int(c) + minutes
	if end < 0 || end > MinutesPerDay {
		return 0, fmt.Errorf("%s + %d minutes: %w", c, minutes, ErrCrossesMidnight)
	}
	return Clock(end), nil
}

// Sub returns the number of minutes from o to c.
func (c Clock) Sub(o Clock) int { return int(c) - int(o) }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
