// Package scheduler owns the clinic's session list. Every mutation goes through
// Service, which re-runs conflict detection and notifies calendar subscribers.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayurcare/panchakarma/internal/domain/protocol"
	"github.com/ayurcare/panchakarma/internal/domain/resource"
	"github.com/ayurcare/panchakarma/internal/domain/session"
	"github.com/ayurcare/panchakarma/internal/platform/calendar"
	"github.com/ayurcare/panchakarma/internal/platform/conflict"
	"github.com/ayurcare/panchakarma/internal/platform/planner"
	"github.com/ayurcare/panchakarma/internal/platform/websocket"
)

// ErrInvalidSession wraps validation failures of manually entered sessions.
var ErrInvalidSession = errors.New("invalid session")

// Options tunes presentation and clock behaviour.
type Options struct {
	Layout         calendar.Layout
	MaxPerResource int
	Location       *time.Location
	Now            func() time.Time
}

type Service struct {
	sessions  session.Repository
	protocols protocol.Repository
	resources *resource.Registry
	generator *planner.Generator
	events    websocket.EventPublisher
	logger    zerolog.Logger

	layout         calendar.Layout
	maxPerResource int
	loc            *time.Location
	now            func() time.Time

	// writeMu serializes mutations so a plan commit and a manual edit never interleave.
	writeMu sync.Mutex
}

func NewService(
	sessions session.Repository,
	protocols protocol.Repository,
	resources *resource.Registry,
	generator *planner.Generator,
	events websocket.EventPublisher,
	logger zerolog.Logger,
	opts Options,
) *Service {
	if events == nil {
		events = websocket.NopPublisher{}
	}
	if opts.Layout.Slots == 0 {
		opts.Layout = calendar.DefaultLayout()
	}
	if opts.MaxPerResource <= 0 {
		opts.MaxPerResource = calendar.DefaultMaxPerResource
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		sessions:       sessions,
		protocols:      protocols,
		resources:      resources,
		generator:      generator,
		events:         events,
		logger:         logger.With().Str("component", "scheduler").Logger(),
		layout:         opts.Layout,
		maxPerResource: opts.MaxPerResource,
		loc:            opts.Location,
		now:            opts.Now,
	}
}

// Today is the current date in the clinic's timezone.
func (s *Service) Today() civil.Date {
	return civil.DateOf(s.now().In(s.loc))
}

// -- Plans --

// PlanResult is a generated plan annotated against the sessions already booked.
type PlanResult struct {
	Protocol      string             `json:"protocol"`
	Sessions      []session.Session  `json:"sessions"`
	CareSheet     []protocol.CareDay `json:"care_sheet"`
	ConflictCount int                `json:"conflict_count"`
	Committed     bool               `json:"committed"`
}

func (s *Service) buildPlan(ctx context.Context, templateID string, cfg planner.Config) (*protocol.Template, []session.Session, error) {
	if strings.TrimSpace(templateID) == "" {
		return nil, nil, fmt.Errorf("%w: a protocol template must be selected", planner.ErrInvalidConfiguration)
	}
	tpl, err := s.protocols.GetByID(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Therapist, err = s.resources.ResolveTherapist(cfg.Therapist); err != nil {
		return nil, nil, err
	}
	if cfg.Room, err = s.resources.ResolveRoom(cfg.Room); err != nil {
		return nil, nil, err
	}
	plan, err := s.generator.Generate(*tpl, cfg)
	if err != nil {
		return nil, nil, err
	}
	return tpl, plan, nil
}

// annotatePlan runs detection over the plan together with the booked sessions on its
// dates and returns only the plan's sessions.
func (s *Service) annotatePlan(ctx context.Context, plan []session.Session) ([]session.Session, int, error) {
	if len(plan) == 0 {
		return []session.Session{}, 0, nil
	}
	booked, err := s.sessionsOn(ctx, datesOf(plan))
	if err != nil {
		return nil, 0, err
	}
	inPlan := make(map[uuid.UUID]bool, len(plan))
	for _, p := range plan {
		inPlan[p.ID] = true
	}
	others := make([]session.Session, 0, len(booked)+len(plan))
	for _, b := range booked {
		if !inPlan[b.ID] {
			others = append(others, b)
		}
	}
	annotated := conflict.Detect(append(others, plan...))
	out := make([]session.Session, 0, len(plan))
	count := 0
	for _, a := range annotated {
		if inPlan[a.ID] {
			out = append(out, a)
			if len(a.Conflicts) > 0 {
				count++
			}
		}
	}
	return out, count, nil
}

// PreviewPlan generates a plan without storing it.
func (s *Service) PreviewPlan(ctx context.Context, templateID string, cfg planner.Config) (*PlanResult, error) {
	tpl, plan, err := s.buildPlan(ctx, templateID, cfg)
	if err != nil {
		return nil, err
	}
	annotated, count, err := s.annotatePlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &PlanResult{Protocol: tpl.Name, Sessions: annotated, CareSheet: protocol.CareSheet(*tpl), ConflictCount: count}, nil
}

// CommitPlan generates a plan and appends it to the store in one step. Conflicts are
// reported, not rejected; staff resolve them on the calendar.
func (s *Service) CommitPlan(ctx context.Context, templateID string, cfg planner.Config) (*PlanResult, error) {
	tpl, plan, err := s.buildPlan(ctx, templateID, cfg)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.appendLocked(ctx, plan); err != nil {
		return nil, err
	}
	annotated, count, err := s.annotatePlan(ctx, plan)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("protocol", tpl.Name).
		Str("patient", strings.TrimSpace(cfg.PatientName)).
		Int("sessions", len(plan)).
		Int("conflicts", count).
		Msg("plan committed")
	s.publish(ctx, "plan_committed", annotated)
	return &PlanResult{Protocol: tpl.Name, Sessions: annotated, CareSheet: protocol.CareSheet(*tpl), ConflictCount: count, Committed: true}, nil
}

// Append stores already generated sessions.
func (s *Service) Append(ctx context.Context, sessions []session.Session) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.appendLocked(ctx, sessions); err != nil {
		return err
	}
	s.publish(ctx, "appended", sessions)
	return nil
}

func (s *Service) appendLocked(ctx context.Context, sessions []session.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	batch := make([]*session.Session, len(sessions))
	for i := range sessions {
		if err := sessions[i].CheckTimes(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidSession, sessions[i].Title, err)
		}
		batch[i] = &sessions[i]
	}
	return s.sessions.CreateBatch(ctx, batch)
}

// -- Single sessions --

// prepare fills derived fields and validates a manually entered session. Exactly one of
// EndTime and DurationMinutes may be omitted; when both are given they must agree.
func (s *Service) prepare(sess *session.Session) error {
	sess.PatientName = strings.TrimSpace(sess.PatientName)
	sess.TherapyName = strings.TrimSpace(sess.TherapyName)
	if sess.PatientName == "" {
		return fmt.Errorf("%w: patient_name is required", ErrInvalidSession)
	}
	if sess.TherapyName == "" {
		return fmt.Errorf("%w: therapy_name is required", ErrInvalidSession)
	}
	if strings.TrimSpace(sess.Title) == "" {
		sess.Title = sess.TherapyName
		if sess.Day != nil {
			sess.Title = fmt.Sprintf("%s - Day %d", sess.TherapyName, *sess.Day)
		}
	}
	if sess.Status == "" {
		sess.Status = session.StatusScheduled
	}
	if !sess.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidSession, sess.Status)
	}

	switch {
	case sess.EndTime == 0 && sess.DurationMinutes <= 0:
		return fmt.Errorf("%w: end_time or duration_minutes is required", ErrInvalidSession)
	case sess.EndTime == 0:
		end, err := sess.StartTime.Add(sess.DurationMinutes)
		if err != nil {
			return err
		}
		sess.EndTime = end
	case sess.DurationMinutes == 0:
		sess.DurationMinutes = sess.EndTime.Sub(sess.StartTime)
	}
	if err := sess.CheckTimes(); err != nil {
		if errors.Is(err, session.ErrCrossesMidnight) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	var err error
	if sess.Therapist, err = s.resources.ResolveTherapist(sess.Therapist); err != nil {
		return err
	}
	if sess.Room, err = s.resources.ResolveRoom(sess.Room); err != nil {
		return err
	}
	return nil
}

// CheckSession reports the clashes a session would have without storing it.
func (s *Service) CheckSession(ctx context.Context, sess *session.Session) ([]conflict.Conflict, error) {
	if err := s.prepare(sess); err != nil {
		return nil, err
	}
	booked, err := s.sessionsOn(ctx, []civil.Date{sess.Date})
	if err != nil {
		return nil, err
	}
	found := conflict.Check(booked, *sess)
	if found == nil {
		found = []conflict.Conflict{}
	}
	return found, nil
}

func (s *Service) CreateSession(ctx context.Context, sess *session.Session) (*session.Session, error) {
	if err := s.prepare(sess); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	annotated, err := s.annotateOne(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("session_id", sess.ID.String()).Int("conflicts", len(annotated.Conflicts)).Msg("session created")
	s.publish(ctx, "created", []session.Session{*annotated})
	return annotated, nil
}

// UpdateSession replaces a stored session. sess.VersionID must match the stored version.
func (s *Service) UpdateSession(ctx context.Context, sess *session.Session) (*session.Session, error) {
	if err := s.prepare(sess); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev, err := s.sessions.GetByID(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}
	annotated, err := s.annotateOne(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("session_id", sess.ID.String()).Int("version_id", sess.VersionID).Msg("session updated")
	s.publish(ctx, "updated", []session.Session{*prev, *annotated})
	return annotated, nil
}

func (s *Service) DeleteSession(ctx context.Context, id uuid.UUID) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("session_id", id.String()).Msg("session deleted")
	s.publish(ctx, "deleted", []session.Session{*prev})
	return nil
}

// -- Queries --

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	return s.annotateOne(ctx, id)
}

// ListSessions returns the matching sessions with conflicts computed against every
// session on the same dates, not only the matching ones.
func (s *Service) ListSessions(ctx context.Context, f session.Filter) ([]session.Session, error) {
	matched, err := s.sessions.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return []session.Session{}, nil
	}
	list := deref(matched)
	all, err := s.sessionsOn(ctx, datesOf(list))
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]session.Session, len(all))
	for _, a := range conflict.Detect(all) {
		byID[a.ID] = a
	}
	out := make([]session.Session, 0, len(list))
	for _, m := range list {
		if a, ok := byID[m.ID]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// Conflicts lists the conflicting sessions on date.
func (s *Service) Conflicts(ctx context.Context, date civil.Date) ([]session.Session, error) {
	all, err := s.sessionsOn(ctx, []civil.Date{date})
	if err != nil {
		return nil, err
	}
	return conflict.Conflicting(conflict.Detect(all)), nil
}

func (s *Service) Calendar(ctx context.Context, ref civil.Date, mode calendar.Mode) (calendar.Grid, error) {
	days := calendar.Window(ref, mode, s.layout.WeekStart)
	all, err := s.sessionsOn(ctx, days)
	if err != nil {
		return calendar.Grid{}, err
	}
	return calendar.ArrangeCalendar(conflict.Detect(all), ref, mode, s.layout), nil
}

func (s *Service) Resources(ctx context.Context, ref civil.Date) (calendar.ResourceView, error) {
	all, err := s.sessionsOn(ctx, []civil.Date{ref})
	if err != nil {
		return calendar.ResourceView{}, err
	}
	return calendar.ArrangeResources(conflict.Detect(all), ref,
		s.resources.TherapistRefs(), s.resources.RoomRefs(), s.maxPerResource), nil
}

func (s *Service) annotateOne(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	target, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	all, err := s.sessionsOn(ctx, []civil.Date{target.Date})
	if err != nil {
		return nil, err
	}
	for _, a := range conflict.Detect(all) {
		if a.ID == id {
			return &a, nil
		}
	}
	annotated := target.Clone()
	annotated.Conflicts = []string{}
	return &annotated, nil
}

// sessionsOn loads every stored session dated within the span of dates.
func (s *Service) sessionsOn(ctx context.Context, dates []civil.Date) ([]session.Session, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	from, to := dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(from) {
			from = d
		}
		if d.After(to) {
			to = d
		}
	}
	list, err := s.sessions.List(ctx, session.Filter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	return deref(list), nil
}

type changePayload struct {
	Dates         []string `json:"dates"`
	ConflictCount int      `json:"conflict_count"`
}

// publish notifies the sessions topic and the calendar topic of every touched date.
// Delivery failures are logged; the mutation has already succeeded.
func (s *Service) publish(ctx context.Context, action string, touched []session.Session) {
	dates := datesOf(touched)
	ids := make([]string, 0, len(touched))
	seen := make(map[uuid.UUID]bool, len(touched))
	for _, t := range touched {
		if !seen[t.ID] {
			seen[t.ID] = true
			ids = append(ids, t.ID.String())
		}
	}

	payload := changePayload{Dates: make([]string, len(dates))}
	for i, d := range dates {
		payload.Dates[i] = d.String()
		if found, err := s.Conflicts(ctx, d); err == nil {
			payload.ConflictCount += len(found)
		}
	}
	data, _ := json.Marshal(payload)

	topics := []string{websocket.TopicSessions}
	for _, d := range dates {
		topics = append(topics, websocket.CalendarTopic(d))
	}
	now := s.now().UTC()
	for _, topic := range topics {
		ev := websocket.Event{
			Type:       websocket.EventSessionsChanged,
			Topic:      topic,
			Action:     action,
			SessionIDs: ids,
			Timestamp:  now,
			Data:       data,
		}
		if err := s.events.Publish(ctx, ev); err != nil {
			s.logger.Warn().Err(err).Str("topic", topic).Msg("failed to publish session event")
		}
	}
}

func datesOf(sessions []session.Session) []civil.Date {
	seen := make(map[civil.Date]bool)
	var out []civil.Date
	for _, s := range sessions {
		if !seen[s.Date] {
			seen[s.Date] = true
			out = append(out, s.Date)
		}
	}
	return out
}

func deref(list []*session.Session) []session.Session {
	out := make([]session.Session, len(list))
	for i, p := range list {
		out[i] = *p
	}
	return out
}
