package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a treatment session.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool { return validStatuses[s] }

// ResourceRef points at a therapist or a room. ID is set once the reference has been
// resolved against the resource registry; Name is kept for display.
type ResourceRef struct {
	ID   *uuid.UUID `json:"id,omitempty"`
	Name string     `json:"name"`
}

// IsZero reports whether the reference names nothing.
func (r ResourceRef) IsZero() bool {
	return r.ID == nil && NormalizeName(r.Name) == ""
}

// Same reports whether r and o point at the same resource. Resolved references compare
// by id; otherwise names are compared case- and whitespace-insensitively. Empty
// references never match.
func (r ResourceRef) Same(o ResourceRef) bool {
	if r.ID != nil && o.ID != nil {
		return *r.ID == *o.ID
	}
	a, b := NormalizeName(r.Name), NormalizeName(o.Name)
	return a != "" && a == b
}

// NormalizeName folds a free-text resource name to its comparison form.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Session is one scheduled treatment appointment.
type Session struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	PatientName     string      `json:"patient_name"`
	TherapyName     string      `json:"therapy_name"`
	Therapist       ResourceRef `json:"therapist"`
	Room            ResourceRef `json:"room"`
	Date            civil.Date  `json:"date"`
	StartTime       Clock       `json:"start_time"`
	EndTime         Clock       `json:"end_time"`
	DurationMinutes int         `json:"duration_minutes"`
	Status          Status      `json:"status"`
	Protocol        *string     `json:"protocol,omitempty"`
	Day             *int        `json:"day,omitempty"`
	Color           *string     `json:"color,omitempty"`
	Conflicts       []string    `json:"conflicts"`
	VersionID       int         `json:"version_id"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// GetVersionID returns the current version.
func (s *Session) GetVersionID() int { return s.VersionID }

// SetVersionID sets the current version.
func (s *Session) SetVersionID(v int) { s.VersionID = v }

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	c := s
	if s.Therapist.ID != nil {
		id := *s.Therapist.ID
		c.Therapist.ID = &id
	}
	if s.Room.ID != nil {
		id := *s.Room.ID
		c.Room.ID = &id
	}
	if s.Protocol != nil {
		p := *s.Protocol
		c.Protocol = &p
	}
	if s.Day != nil {
		d := *s.Day
		c.Day = &d
	}
	if s.Color != nil {
		col := *s.Color
		c.Color = &col
	}
	if s.Conflicts != nil {
		c.Conflicts = make([]string, len(s.Conflicts))
		copy(c.Conflicts, s.Conflicts)
	}
	return c
}

// Overlaps reports whether s and o share a date and their [start, end) intervals intersect.
func (s Session) Overlaps(o Session) bool {
	if s.Date != o.Date {
		return false
	}
	return s.StartTime < o.EndTime && o.StartTime < s.EndTime
}

// CheckTimes verifies the start/end/duration triple.
func (s Session) CheckTimes() error {
	if !s.Date.IsValid() {
		return fmt.Errorf("invalid date %s", s.Date)
	}
	if s.EndTime > MinutesPerDay {
		return ErrCrossesMidnight
	}
	if s.EndTime <= s.StartTime {
		return fmt.Errorf("end time %s must be after start time %s", s.EndTime, s.StartTime)
	}
	if s.EndTime.Sub(s.StartTime) != s.DurationMinutes {
		return fmt.Errorf("duration %d does not match %s-%s", s.DurationMinutes, s.StartTime, s.EndTime)
	}
	return nil
}

// SortByTime orders sessions by date, start time, then title and id.
func SortByTime(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID.String() < b.ID.String()
	})
}
