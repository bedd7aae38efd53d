package calendar

import (
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Cursor is the calendar's navigation and selection state. Methods return a new
// Cursor and never touch session data.
type Cursor struct {
	Date       civil.Date `json:"date"`
	Mode       Mode       `json:"mode"`
	SelectedID *uuid.UUID `json:"selected_id,omitempty"`
}

func NewCursor(date civil.Date, mode Mode) Cursor {
	if mode != ModeWeek {
		mode = ModeDay
	}
	return Cursor{Date: date, Mode: mode}
}

func (c Cursor) Next() Cursor { return c.Step(1) }
func (c Cursor) Prev() Cursor { return c.Step(-1) }

// Step moves the reference date by n days or weeks depending on the mode.
func (c Cursor) Step(n int) Cursor {
	c.Date = Navigate(c.Date, c.Mode, n)
	return c
}

// WithMode switches between day and week view, keeping the reference date.
func (c Cursor) WithMode(m Mode) Cursor {
	if m != ModeWeek {
		m = ModeDay
	}
	c.Mode = m
	return c
}

// Select marks id as the selected session. Selecting the same id again is a no-op.
func (c Cursor) Select(id uuid.UUID) Cursor {
	c.SelectedID = &id
	return c
}

func (c Cursor) Deselect() Cursor {
	c.SelectedID = nil
	return c
}

// Window lists the dates the cursor currently shows.
func (c Cursor) Window(l Layout) []civil.Date {
	return Window(c.Date, c.Mode, l.WeekStart)
}
