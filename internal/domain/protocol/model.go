package protocol

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNotFound        = errors.New("protocol not found")
	ErrInvalidTemplate = errors.New("invalid protocol template")
)

// Step is one day of a treatment protocol.
type Step struct {
	Day             int      `json:"day" yaml:"day"`
	Therapy         string   `json:"therapy" yaml:"therapy"`
	DurationMinutes int      `json:"duration_minutes" yaml:"duration_minutes"`
	PreCare         []string `json:"pre_care" yaml:"pre_care"`
	PostCare        []string `json:"post_care" yaml:"post_care"`
	Materials       []string `json:"materials" yaml:"materials"`
}

// Template is a named multi-day treatment plan used to batch-generate sessions.
// Templates are static configuration and read-only at runtime.
type Template struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	DurationDays int    `json:"duration_days" yaml:"duration_days"`
	Description  string `json:"description,omitempty" yaml:"description"`
	Steps        []Step `json:"steps" yaml:"steps"`
}

// IsZero reports whether no template has been selected.
func (t Template) IsZero() bool {
	return t.ID == "" && t.Name == "" && len(t.Steps) == 0
}

// SortedSteps returns a copy of the steps in ascending day order. Authors are not
// required to list steps in order.
func (t Template) SortedSteps() []Step {
	steps := make([]Step, len(t.Steps))
	copy(steps, t.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Day < steps[j].Day })
	return steps
}

// Validate checks the template shape. Step days must be unique and the earliest must be
// day 1; gaps after it are allowed.
func (t Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTemplate)
	}
	if t.Name == "" {
		return fmt.Errorf("%w: %s: name is required", ErrInvalidTemplate, t.ID)
	}
	if t.DurationDays < 0 {
		return fmt.Errorf("%w: %s: duration_days must not be negative", ErrInvalidTemplate, t.ID)
	}
	seen := make(map[int]bool, len(t.Steps))
	first := 0
	for _, st := range t.Steps {
		switch {
		case st.Day < 1:
			return fmt.Errorf("%w: %s: day %d must be at least 1", ErrInvalidTemplate, t.ID, st.Day)
		case t.DurationDays > 0 && st.Day > t.DurationDays:
			return fmt.Errorf("%w: %s: day %d exceeds duration of %d days", ErrInvalidTemplate, t.ID, st.Day, t.DurationDays)
		case seen[st.Day]:
			return fmt.Errorf("%w: %s: day %d listed twice", ErrInvalidTemplate, t.ID, st.Day)
		case st.Therapy == "":
			return fmt.Errorf("%w: %s: day %d has no therapy", ErrInvalidTemplate, t.ID, st.Day)
		case st.DurationMinutes <= 0:
			return fmt.Errorf("%w: %s: day %d duration must be positive", ErrInvalidTemplate, t.ID, st.Day)
		}
		seen[st.Day] = true
		if first == 0 || st.Day < first {
			first = st.Day
		}
	}
	if len(t.Steps) > 0 && first != 1 {
		return fmt.Errorf("%w: %s: first step is day %d, want day 1", ErrInvalidTemplate, t.ID, first)
	}
	return nil
}
