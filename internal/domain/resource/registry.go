package resource

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ayurcare/panchakarma/internal/domain/session"
)

var (
	ErrUnknownResource   = errors.New("unknown resource")
	ErrDuplicateResource = errors.New("duplicate resource")
)

// Registry holds the clinic's therapists and rooms. Entries live in slices and are
// looked up through id and normalized-name indexes into those slices.
type Registry struct {
	therapists []Therapist
	rooms      []Room

	therapistByID   map[uuid.UUID]int
	therapistByName map[string]int
	roomByID        map[uuid.UUID]int
	roomByName      map[string]int
}

// NewRegistry indexes the given resources. Entries without an id get one. Two entries of
// the same kind may not share an id or a normalized name.
func NewRegistry(therapists []Therapist, rooms []Room) (*Registry, error) {
	r := &Registry{
		therapistByID:   make(map[uuid.UUID]int, len(therapists)),
		therapistByName: make(map[string]int, len(therapists)),
		roomByID:        make(map[uuid.UUID]int, len(rooms)),
		roomByName:      make(map[string]int, len(rooms)),
	}
	for _, t := range therapists {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		if err := index(r.therapistByID, r.therapistByName, t.ID, t.Name, len(r.therapists)); err != nil {
			return nil, fmt.Errorf("therapist: %w", err)
		}
		r.therapists = append(r.therapists, t)
	}
	for _, rm := range rooms {
		if rm.ID == uuid.Nil {
			rm.ID = uuid.New()
		}
		if err := index(r.roomByID, r.roomByName, rm.ID, rm.Name, len(r.rooms)); err != nil {
			return nil, fmt.Errorf("room: %w", err)
		}
		r.rooms = append(r.rooms, rm)
	}
	return r, nil
}

func index(byID map[uuid.UUID]int, byName map[string]int, id uuid.UUID, name string, pos int) error {
	key := session.NormalizeName(name)
	if key == "" {
		return fmt.Errorf("%s: name is required", id)
	}
	if _, dup := byID[id]; dup {
		return fmt.Errorf("%w: id %s", ErrDuplicateResource, id)
	}
	if _, dup := byName[key]; dup {
		return fmt.Errorf("%w: name %q", ErrDuplicateResource, name)
	}
	byID[id] = pos
	byName[key] = pos
	return nil
}

// Therapists returns a copy of all therapists in registration order.
func (r *Registry) Therapists() []Therapist {
	return append([]Therapist(nil), r.therapists...)
}

// Rooms returns a copy of all rooms in registration order.
func (r *Registry) Rooms() []Room {
	return append([]Room(nil), r.rooms...)
}

func (r *Registry) TherapistRefs() []session.ResourceRef {
	refs := make([]session.ResourceRef, len(r.therapists))
	for i, t := range r.therapists {
		refs[i] = t.Ref()
	}
	return refs
}

func (r *Registry) RoomRefs() []session.ResourceRef {
	refs := make([]session.ResourceRef, len(r.rooms))
	for i, rm := range r.rooms {
		refs[i] = rm.Ref()
	}
	return refs
}

// ResolveTherapist maps a reference given by id or by free-text name onto a registered
// therapist. An empty reference resolves to itself: sessions may be left unassigned.
func (r *Registry) ResolveTherapist(ref session.ResourceRef) (session.ResourceRef, error) {
	if ref.IsZero() {
		return session.ResourceRef{}, nil
	}
	i, ok := lookup(r.therapistByID, r.therapistByName, ref)
	if !ok {
		return ref, fmt.Errorf("%w: therapist %s", ErrUnknownResource, describe(ref))
	}
	return r.therapists[i].Ref(), nil
}

// ResolveRoom is ResolveTherapist for rooms.
func (r *Registry) ResolveRoom(ref session.ResourceRef) (session.ResourceRef, error) {
	if ref.IsZero() {
		return session.ResourceRef{}, nil
	}
	i, ok := lookup(r.roomByID, r.roomByName, ref)
	if !ok {
		return ref, fmt.Errorf("%w: room %s", ErrUnknownResource, describe(ref))
	}
	return r.rooms[i].Ref(), nil
}

func lookup(byID map[uuid.UUID]int, byName map[string]int, ref session.ResourceRef) (int, bool) {
	if ref.ID != nil {
		i, ok := byID[*ref.ID]
		return i, ok
	}
	i, ok := byName[session.NormalizeName(ref.Name)]
	return i, ok
}

func describe(ref session.ResourceRef) string {
	if ref.ID != nil {
		return ref.ID.String()
	}
	return fmt.Sprintf("%q", ref.Name)
}
