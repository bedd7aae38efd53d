// Package calendar arranges sessions into day/week grids and per-resource rows.
// Everything here is pure: no function mutates the sessions it is given.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/ayurcare/panchakarma/internal/domain/session"
)

type Mode string

const (
	ModeDay  Mode = "day"
	ModeWeek Mode = "week"
)

// ParseMode accepts "day" or "week"; an empty string means day.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDay:
		return ModeDay, nil
	case ModeWeek:
		return ModeWeek, nil
	}
	return "", fmt.Errorf("invalid view mode %q: expected day or week", s)
}

// ParseWeekday accepts an English weekday name such as "sunday" or "Mon".
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", s)
}

// Layout controls the shape of the calendar grid.
type Layout struct {
	StartHour int
	Slots     int
	WeekStart time.Weekday
}

// DefaultLayout is twelve hourly rows from 08:00 with weeks starting on Sunday.
func DefaultLayout() Layout {
	return Layout{StartHour: 8, Slots: 12, WeekStart: time.Sunday}
}

func (l Layout) normalize() Layout {
	d := DefaultLayout()
	if l.Slots <= 0 {
		l.Slots = d.Slots
	}
	if l.StartHour < 0 || l.StartHour+l.Slots > 24 {
		l.StartHour, l.Slots = d.StartHour, d.Slots
	}
	return l
}

// Window returns the dates visible around ref: ref alone in day mode, or the seven days
// of ref's week in week mode.
func Window(ref civil.Date, mode Mode, weekStart time.Weekday) []civil.Date {
	if mode != ModeWeek {
		return []civil.Date{ref}
	}
	offset := (int(ref.In(time.UTC).Weekday()) - int(weekStart) + 7) % 7
	first := ref.AddDays(-offset)
	days := make([]civil.Date, 7)
	for i := range days {
		days[i] = first.AddDays(i)
	}
	return days
}

// Navigate moves ref by steps days in day mode or steps weeks in week mode.
func Navigate(ref civil.Date, mode Mode, steps int) civil.Date {
	if mode == ModeWeek {
		return ref.AddDays(7 * steps)
	}
	return ref.AddDays(steps)
}

type Cell struct {
	Date     civil.Date        `json:"date"`
	Sessions []session.Session `json:"sessions"`
}

// Row is one hourly slot across every visible day.
type Row struct {
	Hour  session.Clock `json:"hour"`
	Cells []Cell        `json:"cells"`
}

type Grid struct {
	Mode Mode         `json:"mode"`
	Days []civil.Date `json:"days"`
	Rows []Row        `json:"rows"`
	// Unplaced holds visible sessions whose start hour lies outside the grid rows.
	Unplaced []session.Session `json:"unplaced"`
}

// ArrangeCalendar places each session dated inside the window into the cell of its
// start hour. Cells are ordered by start time, then title.
func ArrangeCalendar(sessions []session.Session, ref civil.Date, mode Mode, layout Layout) Grid {
	layout = layout.normalize()
	days := Window(ref, mode, layout.WeekStart)
	col := make(map[civil.Date]int, len(days))
	for i, d := range days {
		col[d] = i
	}

	g := Grid{Mode: mode, Days: days, Rows: make([]Row, layout.Slots), Unplaced: []session.Session{}}
	if g.Mode != ModeWeek {
		g.Mode = ModeDay
	}
	for r := range g.Rows {
		g.Rows[r] = Row{Hour: session.NewClock(layout.StartHour+r, 0), Cells: make([]Cell, len(days))}
		for c, d := range days {
			g.Rows[r].Cells[c] = Cell{Date: d, Sessions: []session.Session{}}
		}
	}

	visible := make([]session.Session, 0, len(sessions))
	for _, s := range sessions {
		if _, ok := col[s.Date]; ok {
			visible = append(visible, s.Clone())
		}
	}
	session.SortByTime(visible)

	for _, s := range visible {
		slot := s.StartTime.Hour() - layout.StartHour
		if slot < 0 || slot >= layout.Slots {
			g.Unplaced = append(g.Unplaced, s)
			continue
		}
		cell := &g.Rows[slot].Cells[col[s.Date]]
		cell.Sessions = append(cell.Sessions, s)
	}
	return g
}

// ResourceRow is one therapist or room with its sessions on the reference date.
type ResourceRow struct {
	Resource    session.ResourceRef `json:"resource"`
	Sessions    []session.Session   `json:"sessions"`
	Count       int                 `json:"count"`
	Utilization float64             `json:"utilization"`
}

type ResourceView struct {
	Date       civil.Date    `json:"date"`
	Therapists []ResourceRow `json:"therapists"`
	Rooms      []ResourceRow `json:"rooms"`
	// Unassigned holds sessions on the date whose therapist or room matches no known row.
	Unassigned []session.Session `json:"unassigned"`
}

// DefaultMaxPerResource is the number of sessions that counts as a fully booked day.
const DefaultMaxPerResource = 8

// ArrangeResources builds one row per known therapist and room for ref. Utilization is
// count / maxPerResource * 100 and may exceed 100 when a resource is overbooked.
func ArrangeResources(sessions []session.Session, ref civil.Date, therapists, rooms []session.ResourceRef, maxPerResource int) ResourceView {
	if maxPerResource <= 0 {
		maxPerResource = DefaultMaxPerResource
	}

	onDate := make([]session.Session, 0)
	for _, s := range sessions {
		if s.Date == ref {
			onDate = append(onDate, s.Clone())
		}
	}
	session.SortByTime(onDate)

	v := ResourceView{Date: ref, Unassigned: []session.Session{}}
	matchedTherapist := make([]bool, len(onDate))
	matchedRoom := make([]bool, len(onDate))

	build := func(refs []session.ResourceRef, pick func(session.Session) session.ResourceRef, matched []bool) []ResourceRow {
		rows := make([]ResourceRow, 0, len(refs))
		for _, r := range refs {
			row := ResourceRow{Resource: r, Sessions: []session.Session{}}
			for i, s := range onDate {
				if r.Same(pick(s)) {
					row.Sessions = append(row.Sessions, s)
					matched[i] = true
				}
			}
			row.Count = len(row.Sessions)
			row.Utilization = float64(row.Count) / float64(maxPerResource) * 100
			rows = append(rows, row)
		}
		return rows
	}
	v.Therapists = build(therapists, func(s session.Session) session.ResourceRef { return s.Therapist }, matchedTherapist)
	v.Rooms = build(rooms, func(s session.Session) session.ResourceRef { return s.Room }, matchedRoom)

	for i, s := range onDate {
		if !matchedTherapist[i] || !matchedRoom[i] {
			v.Unassigned = append(v.Unassigned, s)
		}
	}
	return v
}
