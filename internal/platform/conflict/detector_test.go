package conflict

import (
	"reflect"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/ayurcare/panchakarma/internal/domain/session"
)

var day = civil.Date{Year: 2024, Month: 1, Day: 15}

func mk(title, therapist, room, start, end string) session.Session {
	s := session.Session{
		ID:        uuid.New(),
		Title:     title,
		Therapist: session.ResourceRef{Name: therapist},
		Room:      session.ResourceRef{Name: room},
		Date:      day,
		StartTime: session.MustParseClock(start),
		EndTime:   session.MustParseClock(end),
		Status:    session.StatusScheduled,
	}
	s.DurationMinutes = s.EndTime.Sub(s.StartTime)
	return s
}

func TestDetect_RoomOverlap(t *testing.T) {
	a := mk("A", "Dr. Sharma", "Room 1", "09:00", "10:00")
	b := mk("B", "Dr. Nair", "Room 1", "09:30", "10:30")

	got := Detect([]session.Session{a, b})
	if !reflect.DeepEqual(got[0].Conflicts, []string{"Room conflict with B"}) {
		t.Errorf("A: unexpected conflicts %v", got[0].Conflicts)
	}
	if !reflect.DeepEqual(got[1].Conflicts, []string{"Room conflict with A"}) {
		t.Errorf("B: unexpected conflicts %v", got[1].Conflicts)
	}
}

func TestDetect_TherapistOverlapDifferentRooms(t *testing.T) {
	a := mk("A", "Dr. Sharma", "Room 1", "09:00", "10:00")
	b := mk("B", "dr.  sharma", "Room 2", "09:00", "09:30")

	got := Detect([]session.Session{a, b})
	if !reflect.DeepEqual(got[0].Conflicts, []string{"Therapist conflict with B"}) {
		t.Errorf("A: unexpected conflicts %v", got[0].Conflicts)
	}
	if !reflect.DeepEqual(got[1].Conflicts, []string{"Therapist conflict with A"}) {
		t.Errorf("B: unexpected conflicts %v", got[1].Conflicts)
	}
}

func TestDetect_BothResources(t *testing.T) {
	a := mk("A", "Dr. Sharma", "Room 1", "09:00", "10:00")
	b := mk("B", "Dr. Sharma", "Room 1", "09:15", "09:45")

	got := Detect([]session.Session{a, b})
	want := []string{"Room conflict with B", "Therapist conflict with B"}
	if !reflect.DeepEqual(got[0].Conflicts, want) {
		t.Errorf("expected %v, got %v", want, got[0].Conflicts)
	}
}

func TestDetect_BackToBackIsNotAConflict(t *testing.T) {
	a := mk("A", "Dr. Sharma", "Room 1", "09:00", "10:00")
	b := mk("B", "Dr. Sharma", "Room 1", "10:00", "11:00")

	for _, s := range Detect([]session.Session{a, b}) {
		if len(s.Conflicts) != 0 {
			t.Errorf("%s: expected no conflicts, got %v", s.Title, s.Conflicts)
		}
	}
}

func TestDetect_DifferentDates(t *testing.T) {
	a := mk("A", "Dr. Sharma", "Room 1", "09:00", "10:00")
	b := mk("B", "Dr. Sharma", "Room 1", "09:00", "10:00")
	b.Date = day.AddDays(1)

	for _, s := range Detect([]session.Session{a, b}) {
		if len(s.Conflicts) != 0 {
			t.Errorf("%s: expected no conflicts across dates, got %v", s.Title, s.Conflicts)
		}
	}
}

func TestDetect_UnassignedResourcesNeverClash(t *testing.T) {
	a := mk("A", "", "", "09:00", "10:00")
	b := mk("B", "", "", "09:00", "10:00")

	for _, s := range Detect([]session.Session{a, b}) {
		if len(s.Conflicts) != 0 {
			t.Errorf("%s: expected no conflicts, got %v", s.Title, s.Conflicts)
		}
	}
}

func TestDetect_ResolvedIDsWin(t *testing.T) {
	r1, r2 := uuid.New(), uuid.New()
	a := mk("A", "X", "Room", "09:00", "10:00")
	b := mk("B", "Y", "Room", "09:00", "10:00")
	a.Room.ID = &r1
	b.Room.ID = &r2

	for _, s := range Detect([]session.Session{a, b}) {
		if len(s.Conflicts) != 0 {
			t.Errorf("%s: distinct room ids must not clash, got %v", s.Title, s.Conflicts)
		}
	}
}

func TestDetect_Idempotent(t *testing.T) {
	in := []session.Session{
		mk("A", "Dr. Sharma", "Room 1", "09:00", "10:00"),
		mk("B", "Dr. Nair", "Room 1", "09:30", "10:30"),
		mk("C", "Dr. Sharma", "Room 3", "09:45", "10:15"),
	}
	once := Detect(in)
	twice := Detect(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("detect is not idempotent:\n%v\n%v", once, twice)
	}
	if len(once[0].Conflicts) != 2 {
		t.Errorf("A: expected two conflicts, got %v", once[0].Conflicts)
	}
}

func TestDetect_DoesNotMutateInput(t *testing.T) {
	a := mk("A", "Dr. Sharma", "Room 1", "09:00", "10:00")
	b := mk("B", "Dr. Sharma", "Room 1", "09:30", "10:30")
	in := []session.Session{a, b}
	Detect(in)
	if in[0].Conflicts != nil || in[1].Conflicts != nil {
		t.Error("input sessions were modified")
	}
}

func TestDetect_Empty(t *testing.T) {
	if got := Detect(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestCheck(t *testing.T) {
	a := mk("A", "Dr. Sharma", "Room 1", "09:00", "10:00")
	b := mk("B", "Dr. Nair", "Room 2", "09:00", "10:00")
	cand := mk("New", "Dr. Nair", "Room 1", "09:30", "10:30")

	got := Check([]session.Session{a, b}, cand)
	if len(got) != 2 {
		t.Fatalf("expected 2 conflicts, got %v", got)
	}
	if got[0].WithID != a.ID || got[0].Kind != KindRoom {
		t.Errorf("unexpected first conflict %+v", got[0])
	}
	if got[1].WithID != b.ID || got[1].Kind != KindTherapist {
		t.Errorf("unexpected second conflict %+v", got[1])
	}

	edited := a
	edited.StartTime = session.MustParseClock("09:10")
	if got := Check([]session.Session{a}, edited); len(got) != 0 {
		t.Errorf("an edit must not clash with itself, got %v", got)
	}
}

func TestConflicting(t *testing.T) {
	annotated := Detect([]session.Session{
		mk("A", "Dr. Sharma", "Room 1", "09:00", "10:00"),
		mk("B", "Dr. Nair", "Room 1", "09:30", "10:30"),
		mk("C", "Meera", "Room 3", "09:00", "10:00"),
	})
	got := Conflicting(annotated)
	if len(got) != 2 || got[0].Title != "A" || got[1].Title != "B" {
		t.Errorf("unexpected conflicting sessions %v", got)
	}
}
