package protocol

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]*Template, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*Template, error) {
	if id == "" {
		return nil, fmt.Errorf("protocol id is required")
	}
	return s.repo.GetByID(ctx, id)
}

// CareDay is the patient-facing instruction sheet for one protocol day.
type CareDay struct {
	Day       int      `json:"day"`
	Therapy   string   `json:"therapy"`
	PreCare   []string `json:"pre_care"`
	PostCare  []string `json:"post_care"`
	Materials []string `json:"materials"`
}

// CareSheet lists pre-care, post-care and materials per day, in day order.
func CareSheet(t Template) []CareDay {
	steps := t.SortedSteps()
	out := make([]CareDay, 0, len(steps))
	for _, st := range steps {
		out = append(out, CareDay{
			Day:       st.Day,
			Therapy:   st.Therapy,
			PreCare:   nonNil(st.PreCare),
			PostCare:  nonNil(st.PostCare),
			Materials: nonNil(st.Materials),
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
