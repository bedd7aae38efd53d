// Package planner expands a protocol template into a dated list of treatment sessions.
package planner

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/ayurcare/panchakarma/internal/domain/protocol"
	"github.com/ayurcare/panchakarma/internal/domain/session"
)

// ErrInvalidConfiguration is returned when a required plan input is missing or
// unparsable. Callers re-prompt for the field rather than defaulting it.
var ErrInvalidConfiguration = errors.New("invalid plan configuration")

// TimeWindow selects the canonical start time of every session in a plan.
type TimeWindow string

const (
	WindowMorning   TimeWindow = "morning"
	WindowAfternoon TimeWindow = "afternoon"
)

var windowStarts = map[TimeWindow]session.Clock{
	WindowMorning:   session.NewClock(9, 0),
	WindowAfternoon: session.NewClock(14, 0),
}

// Start returns the start time for w. Unrecognized windows fall back to the morning slot.
func (w TimeWindow) Start() session.Clock {
	if c, ok := windowStarts[TimeWindow(strings.ToLower(strings.TrimSpace(string(w))))]; ok {
		return c
	}
	return windowStarts[WindowMorning]
}

// Config carries the per-patient inputs of a plan.
type Config struct {
	PatientName string              `json:"patient_name"`
	StartDate   string              `json:"start_date"`
	Therapist   session.ResourceRef `json:"therapist"`
	Room        session.ResourceRef `json:"room"`
	TimeWindow  TimeWindow          `json:"time_window"`
	Color       *string             `json:"color,omitempty"`
}

// Validate checks the preconditions of Generate and returns the parsed start date.
func (c Config) Validate() (civil.Date, error) {
	if strings.TrimSpace(c.PatientName) == "" {
		return civil.Date{}, fmt.Errorf("%w: patient_name is required", ErrInvalidConfiguration)
	}
	if strings.TrimSpace(c.StartDate) == "" {
		return civil.Date{}, fmt.Errorf("%w: start_date is required", ErrInvalidConfiguration)
	}
	d, err := civil.ParseDate(strings.TrimSpace(c.StartDate))
	if err != nil || !d.IsValid() {
		return civil.Date{}, fmt.Errorf("%w: start_date %q is not a YYYY-MM-DD date", ErrInvalidConfiguration, c.StartDate)
	}
	return d, nil
}

// Generator turns templates into sessions. It holds no mutable state and is safe for
// concurrent use.
type Generator struct {
	newID func() uuid.UUID
}

type Option func(*Generator)

// WithIDFunc replaces the session id source.
func WithIDFunc(fn func() uuid.UUID) Option {
	return func(g *Generator) { g.newID = fn }
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{newID: uuid.New}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate emits one session per template step in ascending day order. Session dates are
// offset from the start date by day-1; every session starts at the window's canonical time.
// A template without steps yields an empty plan. A step that would run past midnight
// fails the whole plan with session.ErrCrossesMidnight.
func (g *Generator) Generate(t protocol.Template, cfg Config) ([]session.Session, error) {
	if t.IsZero() {
		return nil, fmt.Errorf("%w: a protocol template must be selected", ErrInvalidConfiguration)
	}
	startDate, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	steps := t.SortedSteps()
	start := cfg.TimeWindow.Start()
	patient := strings.TrimSpace(cfg.PatientName)
	plan := make([]session.Session, 0, len(steps))
	seen := make(map[uuid.UUID]bool, len(steps))

	for _, st := range steps {
		end, err := start.Add(st.DurationMinutes)
		if err != nil {
			return nil, fmt.Errorf("%s day %d: %w", t.Name, st.Day, err)
		}
		id := g.newID()
		if seen[id] {
			return nil, fmt.Errorf("duplicate session id %s", id)
		}
		seen[id] = true

		s := session.Session{
			ID:              id,
			Title:           fmt.Sprintf("%s - Day %d", st.Therapy, st.Day),
			PatientName:     patient,
			TherapyName:     st.Therapy,
			Therapist:       cfg.Therapist,
			Room:            cfg.Room,
			Date:            startDate.AddDays(st.Day - 1),
			StartTime:       start,
			EndTime:         end,
			DurationMinutes: st.DurationMinutes,
			Status:          session.StatusScheduled,
			Protocol:        strPtr(t.Name),
			Day:             intPtr(st.Day),
			Conflicts:       []string{},
		}
		if cfg.Color != nil {
			s.Color = strPtr(*cfg.Color)
		}
		plan = append(plan, s.Clone())
	}
	return plan, nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
