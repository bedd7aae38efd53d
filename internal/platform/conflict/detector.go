// Package conflict finds double-booked rooms and therapists.
package conflict

import (
	"github.com/google/uuid"

	"github.com/ayurcare/panchakarma/internal/domain/session"
)

// Kind names the resource two sessions compete for.
type Kind string

const (
	KindRoom      Kind = "room"
	KindTherapist Kind = "therapist"
)

// Conflict describes one clash between a session and another.
type Conflict struct {
	WithID    uuid.UUID `json:"with_id"`
	WithTitle string    `json:"with_title"`
	Kind      Kind      `json:"kind"`
}

// Message is the human-readable annotation stored on a session.
func (c Conflict) Message() string {
	if c.Kind == KindRoom {
		return "Room conflict with " + c.WithTitle
	}
	return "Therapist conflict with " + c.WithTitle
}

// between returns the clashes of a with b, room before therapist.
func between(a, b session.Session) []Conflict {
	if !a.Overlaps(b) {
		return nil
	}
	var out []Conflict
	if a.Room.Same(b.Room) {
		out = append(out, Conflict{WithID: b.ID, WithTitle: b.Title, Kind: KindRoom})
	}
	if a.Therapist.Same(b.Therapist) {
		out = append(out, Conflict{WithID: b.ID, WithTitle: b.Title, Kind: KindTherapist})
	}
	return out
}

// Detect returns a copy of sessions where each session's Conflicts lists every other
// session that shares its date, overlaps its time range, and uses the same room or
// therapist. Existing annotations are discarded first, so Detect is idempotent. The
// input is never modified. Pairs are compared exhaustively; clinic days are small.
func Detect(sessions []session.Session) []session.Session {
	out := make([]session.Session, len(sessions))
	for i, s := range sessions {
		out[i] = s.Clone()
		out[i].Conflicts = []string{}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			for _, c := range between(out[i], out[j]) {
				out[i].Conflicts = append(out[i].Conflicts, c.Message())
			}
			for _, c := range between(out[j], out[i]) {
				out[j].Conflicts = append(out[j].Conflicts, c.Message())
			}
		}
	}
	return out
}

// Check lists the clashes a candidate session would have with existing ones. A session
// in existing with the candidate's id is skipped, so an edit never clashes with itself.
func Check(existing []session.Session, candidate session.Session) []Conflict {
	var out []Conflict
	for _, s := range existing {
		if s.ID == candidate.ID {
			continue
		}
		out = append(out, between(candidate, s)...)
	}
	return out
}

// Conflicting filters annotated sessions down to those with at least one conflict.
func Conflicting(annotated []session.Session) []session.Session {
	out := []session.Session{}
	for _, s := range annotated {
		if len(s.Conflicts) > 0 {
			out = append(out, s)
		}
	}
	return out
}
