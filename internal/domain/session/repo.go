package session

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrVersionConflict = errors.New("session was modified by another request")
	ErrAlreadyExists   = errors.New("session already exists")
)

// Filter narrows session listings. Zero fields match everything; From and To are inclusive.
type Filter struct {
	Date        *civil.Date
	From        *civil.Date
	To          *civil.Date
	TherapistID *uuid.UUID
	RoomID      *uuid.UUID
	PatientName string
	Status      Status
}

// Match reports whether s passes the filter.
func (f Filter) Match(s *Session) bool {
	if f.Date != nil && s.Date != *f.Date {
		return false
	}
	if f.From != nil && s.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && s.Date.After(*f.To) {
		return false
	}
	if f.TherapistID != nil && (s.Therapist.ID == nil || *s.Therapist.ID != *f.TherapistID) {
		return false
	}
	if f.RoomID != nil && (s.Room.ID == nil || *s.Room.ID != *f.RoomID) {
		return false
	}
	if f.PatientName != "" && NormalizeName(s.PatientName) != NormalizeName(f.PatientName) {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

type Repository interface {
	// Create and CreateBatch never overwrite: a stored id yields ErrAlreadyExists, and a
	// failed batch stores nothing.
	Create(ctx context.Context, s *Session) error
	CreateBatch(ctx context.Context, sessions []*Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// Update persists s when s.VersionID matches the stored version and bumps it.
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter) ([]*Session, error)
}
