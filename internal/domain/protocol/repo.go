package protocol

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

type Repository interface {
	List(ctx context.Context) ([]*Template, error)
	GetByID(ctx context.Context, id string) (*Template, error)
}

// MemoryRepo serves the templates loaded from the clinic catalog.
type MemoryRepo struct {
	byID  map[string]Template
	order []string
}

// NewMemoryRepo validates every template and indexes it by id. Ids are matched
// case-insensitively.
func NewMemoryRepo(templates []Template) (*MemoryRepo, error) {
	r := &MemoryRepo{byID: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToLower(t.ID)
		if _, dup := r.byID[key]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidTemplate, t.ID)
		}
		r.byID[key] = t
		r.order = append(r.order, key)
	}
	sort.Strings(r.order)
	return r, nil
}

func (r *MemoryRepo) List(_ context.Context) ([]*Template, error) {
	out := make([]*Template, 0, len(r.order))
	for _, key := range r.order {
		t := r.byID[key]
		t.Steps = t.SortedSteps()
		out = append(out, &t)
	}
	return out, nil
}

func (r *MemoryRepo) GetByID(_ context.Context, id string) (*Template, error) {
	t, ok := r.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, ErrNotFound
	}
	t.Steps = t.SortedSteps()
	return &t, nil
}
