package planner

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/ayurcare/panchakarma/internal/domain/protocol"
	"github.com/ayurcare/panchakarma/internal/domain/session"
)

func virechana() protocol.Template {
	durations := []int{30, 60, 90, 120, 45, 30, 30}
	t := protocol.Template{ID: "virechana-7", Name: "Virechana 7-day", DurationDays: 7}
	for i, d := range durations {
		t.Steps = append(t.Steps, protocol.Step{Day: i + 1, Therapy: "Therapy", DurationMinutes: d})
	}
	return t
}

func morningConfig() Config {
	return Config{
		PatientName: "Anita Desai",
		StartDate:   "2024-01-15",
		Therapist:   session.ResourceRef{Name: "Dr. Priya Sharma"},
		Room:        session.ResourceRef{Name: "Room 1"},
		TimeWindow:  WindowMorning,
	}
}

func TestGenerate_Virechana(t *testing.T) {
	plan, err := NewGenerator().Generate(virechana(), morningConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 7 {
		t.Fatalf("expected 7 sessions, got %d", len(plan))
	}

	wantEnds := []string{"09:30", "10:00", "10:30", "11:00", "09:45", "09:30", "09:30"}
	first := civil.Date{Year: 2024, Month: 1, Day: 15}
	ids := map[uuid.UUID]bool{}
	for i, s := range plan {
		if s.Date != first.AddDays(i) {
			t.Errorf("session %d: expected date %s, got %s", i, first.AddDays(i), s.Date)
		}
		if s.StartTime.String() != "09:00" {
			t.Errorf("session %d: expected start 09:00, got %s", i, s.StartTime)
		}
		if s.EndTime.String() != wantEnds[i] {
			t.Errorf("session %d: expected end %s, got %s", i, wantEnds[i], s.EndTime)
		}
		if s.EndTime.Sub(s.StartTime) != s.DurationMinutes {
			t.Errorf("session %d: duration does not match interval", i)
		}
		if s.Status != session.StatusScheduled {
			t.Errorf("session %d: expected scheduled, got %s", i, s.Status)
		}
		if s.Protocol == nil || *s.Protocol != "Virechana 7-day" || s.Day == nil || *s.Day != i+1 {
			t.Errorf("session %d: missing protocol metadata", i)
		}
		if s.Conflicts == nil || len(s.Conflicts) != 0 {
			t.Errorf("session %d: expected empty conflicts", i)
		}
		if s.PatientName != "Anita Desai" || s.Room.Name != "Room 1" {
			t.Errorf("session %d: config not copied", i)
		}
		ids[s.ID] = true
	}
	if len(ids) != 7 {
		t.Error("expected unique session ids")
	}
	if plan[2].Title != "Therapy - Day 3" {
		t.Errorf("unexpected title %q", plan[2].Title)
	}
}

func TestGenerate_SortsSteps(t *testing.T) {
	tpl := protocol.Template{
		ID: "x", Name: "Unordered",
		Steps: []protocol.Step{
			{Day: 3, Therapy: "Swedana", DurationMinutes: 30},
			{Day: 1, Therapy: "Abhyanga", DurationMinutes: 60},
			{Day: 2, Therapy: "Shirodhara", DurationMinutes: 45},
		},
	}
	plan, err := NewGenerator().Generate(tpl, morningConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Abhyanga - Day 1", "Shirodhara - Day 2", "Swedana - Day 3"}
	for i, s := range plan {
		if s.Title != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], s.Title)
		}
		if s.Date != (civil.Date{Year: 2024, Month: 1, Day: 15 + i}) {
			t.Errorf("position %d: unexpected date %s", i, s.Date)
		}
	}
}

func TestGenerate_TimeWindows(t *testing.T) {
	tests := []struct {
		window TimeWindow
		want   string
	}{
		{WindowMorning, "09:00"},
		{WindowAfternoon, "14:00"},
		{"Afternoon", "14:00"},
		{"evening", "09:00"},
		{"", "09:00"},
	}
	for _, tt := range tests {
		cfg := morningConfig()
		cfg.TimeWindow = tt.window
		plan, err := NewGenerator().Generate(virechana(), cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan[0].StartTime.String() != tt.want {
			t.Errorf("window %q: expected %s, got %s", tt.window, tt.want, plan[0].StartTime)
		}
	}
}

func TestGenerate_EmptyTemplate(t *testing.T) {
	plan, err := NewGenerator().Generate(protocol.Template{ID: "empty", Name: "Empty"}, morningConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 0 {
		t.Errorf("expected empty plan, got %d sessions", len(plan))
	}
}

func TestGenerate_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		tpl    protocol.Template
		mutate func(*Config)
	}{
		{"missing patient", virechana(), func(c *Config) { c.PatientName = "  " }},
		{"missing start", virechana(), func(c *Config) { c.StartDate = "" }},
		{"bad start", virechana(), func(c *Config) { c.StartDate = "15/01/2024" }},
		{"impossible date", virechana(), func(c *Config) { c.StartDate = "2024-02-30" }},
		{"no template", protocol.Template{}, func(c *Config) {}},
	}
	for _, tt := range tests {
		cfg := morningConfig()
		tt.mutate(&cfg)
		if _, err := NewGenerator().Generate(tt.tpl, cfg); !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("%s: expected ErrInvalidConfiguration, got %v", tt.name, err)
		}
	}
}

func TestGenerate_CrossesMidnight(t *testing.T) {
	tpl := protocol.Template{ID: "long", Name: "Long", Steps: []protocol.Step{
		{Day: 1, Therapy: "Overnight", DurationMinutes: 11 * 60},
	}}
	cfg := morningConfig()
	cfg.TimeWindow = WindowAfternoon
	if _, err := NewGenerator().Generate(tpl, cfg); !errors.Is(err, session.ErrCrossesMidnight) {
		t.Errorf("expected ErrCrossesMidnight, got %v", err)
	}
}

func TestGenerate_IDFunc(t *testing.T) {
	fixed := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	g := NewGenerator(WithIDFunc(func() uuid.UUID { return fixed }))
	tpl := protocol.Template{ID: "one", Name: "One", Steps: []protocol.Step{{Day: 1, Therapy: "Nasya", DurationMinutes: 20}}}
	plan, err := g.Generate(tpl, morningConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan[0].ID != fixed {
		t.Errorf("expected injected id, got %s", plan[0].ID)
	}

	if _, err := g.Generate(virechana(), morningConfig()); err == nil {
		t.Error("expected error when the id source repeats")
	}
}

func TestGenerate_DoesNotShareConfigPointers(t *testing.T) {
	id := uuid.New()
	cfg := morningConfig()
	cfg.Room.ID = &id
	plan, _ := NewGenerator().Generate(virechana(), cfg)
	*plan[0].Room.ID = uuid.New()
	if *plan[1].Room.ID != id || *cfg.Room.ID != id {
		t.Error("generated sessions must not alias config references")
	}
}
