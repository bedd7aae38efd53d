package resource

import (
	"github.com/google/uuid"

	"github.com/ayurcare/panchakarma/internal/domain/session"
)

type Therapist struct {
	ID          uuid.UUID `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Specialties []string  `json:"specialties,omitempty" yaml:"specialties"`
	Color       string    `json:"color,omitempty" yaml:"color"`
}

// Ref returns the resolved session reference for t.
func (t Therapist) Ref() session.ResourceRef {
	id := t.ID
	return session.ResourceRef{ID: &id, Name: t.Name}
}

type Room struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Equipment []string  `json:"equipment,omitempty" yaml:"equipment"`
}

// Ref returns the resolved session reference for r.
func (r Room) Ref() session.ResourceRef {
	id := r.ID
	return session.ResourceRef{ID: &id, Name: r.Name}
}
