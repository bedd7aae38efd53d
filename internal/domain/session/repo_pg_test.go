package session

import (
	"strings"
	"testing"

	"cloud.google.com/go/civil"
)

func TestListQuery_PatientNameNormalizedOnBothSides(t *testing.T) {
	query, args := listQuery(Filter{PatientName: "  Anita   RAO "})

	if !strings.Contains(query, patientNameSQL+" = $1") {
		t.Fatalf("expected normalized column comparison, got %s", query)
	}
	for _, part := range []string{"lower(patient_name)", `'\s+', ' ', 'g'`, "btrim("} {
		if !strings.Contains(patientNameSQL, part) {
			t.Errorf("patient name expression %q is missing %q", patientNameSQL, part)
		}
	}
	if len(args) != 1 || args[0] != "anita rao" {
		t.Errorf("expected normalized argument, got %v", args)
	}
}

func TestListQuery_Placeholders(t *testing.T) {
	from := civil.Date{Year: 2024, Month: 1, Day: 15}
	to := civil.Date{Year: 2024, Month: 1, Day: 21}
	query, args := listQuery(Filter{From: &from, To: &to, Status: StatusCancelled})

	for _, want := range []string{"session_date >= $1", "session_date <= $2", "status = $3"} {
		if !strings.Contains(query, want) {
			t.Errorf("expected %q in %s", want, query)
		}
	}
	if len(args) != 3 || args[2] != "cancelled" {
		t.Errorf("unexpected args %v", args)
	}
	if !strings.HasSuffix(query, "ORDER BY session_date, start_minute, title, id") {
		t.Errorf("unexpected ordering: %s", query)
	}
}
