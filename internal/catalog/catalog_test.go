package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Protocols) != 4 {
		t.Errorf("expected 4 protocols, got %d", len(c.Protocols))
	}
	if len(c.Therapists) != 4 || len(c.Rooms) != 3 {
		t.Errorf("expected 4 therapists and 3 rooms, got %d and %d", len(c.Therapists), len(c.Rooms))
	}

	protocols, reg, err := c.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	v, err := protocols.GetByID(context.Background(), "virechana-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{30, 60, 90, 120, 45, 30, 30}
	for i, st := range v.Steps {
		if st.DurationMinutes != want[i] {
			t.Errorf("day %d: expected %d minutes, got %d", st.Day, want[i], st.DurationMinutes)
		}
	}
	if reg.Rooms()[0].ID.String() != "0b4e8d52-93a1-4f7e-a6c2-5d9e1f0a8b01" {
		t.Errorf("expected fixed room id, got %s", reg.Rooms()[0].ID)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinic.yaml")
	data := `
rooms:
  - name: Garden Room
protocols:
  - id: nasya-5
    name: Nasya 5-day
    duration_days: 5
    steps:
      - {day: 1, therapy: Nasya, duration_minutes: 20}
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, reg, err := c.Build(); err != nil {
		t.Fatalf("build: %v", err)
	} else if reg.Rooms()[0].Name != "Garden Room" {
		t.Errorf("unexpected rooms %+v", reg.Rooms())
	}
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Protocols) == 0 {
		t.Error("expected built-in protocols")
	}
}

func TestBuild_InvalidProtocol(t *testing.T) {
	c, err := Parse([]byte(`
protocols:
  - id: broken
    name: Broken
    duration_days: 2
    steps:
      - {day: 3, therapy: Nasya, duration_minutes: 20}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, _, err := c.Build(); err == nil || !strings.Contains(err.Error(), "exceeds duration") {
		t.Errorf("expected duration error, got %v", err)
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse([]byte("protocols: [")); err == nil {
		t.Error("expected parse error")
	}
}
