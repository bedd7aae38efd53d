package scheduler

import (
	"errors"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ayurcare/panchakarma/internal/domain/protocol"
	"github.com/ayurcare/panchakarma/internal/domain/resource"
	"github.com/ayurcare/panchakarma/internal/domain/session"
	"github.com/ayurcare/panchakarma/internal/platform/calendar"
	"github.com/ayurcare/panchakarma/internal/platform/planner"
	"github.com/ayurcare/panchakarma/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/sessions", h.ListSessions)
	api.GET("/sessions/:id", h.GetSession)
	api.POST("/sessions", h.CreateSession)
	api.POST("/sessions/check", h.CheckSession)
	api.PUT("/sessions/:id", h.UpdateSession)
	api.DELETE("/sessions/:id", h.DeleteSession)

	api.POST("/plans/preview", h.PreviewPlan)
	api.POST("/plans", h.CommitPlan)

	api.GET("/calendar", h.GetCalendar)
	api.GET("/calendar/resources", h.GetResources)
	api.GET("/conflicts", h.ListConflicts)
}

// sessionRequest is the body of session create, update and check calls.
type sessionRequest struct {
	Title           string              `json:"title"`
	PatientName     string              `json:"patient_name" validate:"required"`
	TherapyName     string              `json:"therapy_name" validate:"required"`
	Therapist       session.ResourceRef `json:"therapist"`
	Room            session.ResourceRef `json:"room"`
	Date            string              `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string              `json:"start_time" validate:"required"`
	EndTime         string              `json:"end_time"`
	DurationMinutes int                 `json:"duration_minutes" validate:"gte=0"`
	Status          string              `json:"status" validate:"omitempty,oneof=scheduled in-progress completed cancelled"`
	Protocol        *string             `json:"protocol"`
	Day             *int                `json:"day" validate:"omitempty,gte=1"`
	Color           *string             `json:"color" validate:"omitempty,hexcolor"`
	VersionID       int                 `json:"version_id"`
}

func (r sessionRequest) toSession() (*session.Session, error) {
	date, err := civil.ParseDate(r.Date)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	start, err := session.ParseClock(r.StartTime)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "start_time: "+err.Error())
	}
	var end session.Clock
	if strings.TrimSpace(r.EndTime) != "" {
		if end, err = session.ParseClock(r.EndTime); err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "end_time: "+err.Error())
		}
	}
	return &session.Session{
		Title:           r.Title,
		PatientName:     r.PatientName,
		TherapyName:     r.TherapyName,
		Therapist:       r.Therapist,
		Room:            r.Room,
		Date:            date,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: r.DurationMinutes,
		Status:          session.Status(r.Status),
		Protocol:        r.Protocol,
		Day:             r.Day,
		Color:           r.Color,
		VersionID:       r.VersionID,
	}, nil
}

func (h *Handler) bindSession(c echo.Context) (*session.Session, error) {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return nil, err
	}
	return req.toSession()
}

// planRequest selects a protocol and carries the per-patient plan configuration.
type planRequest struct {
	ProtocolID  string              `json:"protocol_id" validate:"required"`
	PatientName string              `json:"patient_name" validate:"required"`
	StartDate   string              `json:"start_date" validate:"required"`
	Therapist   session.ResourceRef `json:"therapist"`
	Room        session.ResourceRef `json:"room"`
	TimeWindow  string              `json:"time_window"`
	Color       *string             `json:"color" validate:"omitempty,hexcolor"`
}

func (h *Handler) bindPlan(c echo.Context) (string, planner.Config, error) {
	var req planRequest
	if err := c.Bind(&req); err != nil {
		return "", planner.Config{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return "", planner.Config{}, err
	}
	return req.ProtocolID, planner.Config{
		PatientName: req.PatientName,
		StartDate:   req.StartDate,
		Therapist:   req.Therapist,
		Room:        req.Room,
		TimeWindow:  planner.TimeWindow(req.TimeWindow),
		Color:       req.Color,
	}, nil
}

// -- Sessions --

func (h *Handler) ListSessions(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListSessions(c.Request().Context(), f)
	if err != nil {
		return httpError(err)
	}
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(items, pg), len(items), pg.Limit, pg.Offset))
}

func (h *Handler) GetSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := h.svc.GetSession(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) CreateSession(c echo.Context) error {
	s, err := h.bindSession(c)
	if err != nil {
		return err
	}
	created, err := h.svc.CreateSession(c.Request().Context(), s)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) CheckSession(c echo.Context) error {
	s, err := h.bindSession(c)
	if err != nil {
		return err
	}
	found, err := h.svc.CheckSession(c.Request().Context(), s)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"conflicts": found})
}

func (h *Handler) UpdateSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := h.bindSession(c)
	if err != nil {
		return err
	}
	if s.VersionID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "version_id is required")
	}
	s.ID = id
	updated, err := h.svc.UpdateSession(c.Request().Context(), s)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSession(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Plans --

func (h *Handler) PreviewPlan(c echo.Context) error {
	id, cfg, err := h.bindPlan(c)
	if err != nil {
		return err
	}
	res, err := h.svc.PreviewPlan(c.Request().Context(), id, cfg)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) CommitPlan(c echo.Context) error {
	id, cfg, err := h.bindPlan(c)
	if err != nil {
		return err
	}
	res, err := h.svc.CommitPlan(c.Request().Context(), id, cfg)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

// -- Views --

func (h *Handler) GetCalendar(c echo.Context) error {
	ref, err := h.dateParam(c, "date")
	if err != nil {
		return err
	}
	mode, err := calendar.ParseMode(c.QueryParam("mode"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	grid, err := h.svc.Calendar(c.Request().Context(), ref, mode)
	if err != nil {
		return httpError(err)
	}
	cur := calendar.NewCursor(ref, mode)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"grid": grid,
		"prev": cur.Prev().Date,
		"next": cur.Next().Date,
	})
}

func (h *Handler) GetResources(c echo.Context) error {
	ref, err := h.dateParam(c, "date")
	if err != nil {
		return err
	}
	view, err := h.svc.Resources(c.Request().Context(), ref)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) ListConflicts(c echo.Context) error {
	ref, err := h.dateParam(c, "date")
	if err != nil {
		return err
	}
	items, err := h.svc.Conflicts(c.Request().Context(), ref)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// dateParam reads a YYYY-MM-DD query parameter, defaulting to today in clinic time.
func (h *Handler) dateParam(c echo.Context, name string) (civil.Date, error) {
	v := c.QueryParam(name)
	if v == "" {
		return h.svc.Today(), nil
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return civil.Date{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+": expected YYYY-MM-DD")
	}
	return d, nil
}

func filterFromQuery(c echo.Context) (session.Filter, error) {
	var f session.Filter
	for name, dst := range map[string]**civil.Date{"date": &f.Date, "from": &f.From, "to": &f.To} {
		if v := c.QueryParam(name); v != "" {
			d, err := civil.ParseDate(v)
			if err != nil {
				return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
			}
			*dst = &d
		}
	}
	for name, dst := range map[string]**uuid.UUID{"therapist_id": &f.TherapistID, "room_id": &f.RoomID} {
		if v := c.QueryParam(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
			}
			*dst = &id
		}
	}
	f.PatientName = c.QueryParam("patient")
	if v := c.QueryParam("status"); v != "" {
		f.Status = session.Status(v)
		if !f.Status.Valid() {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
	}
	return f, nil
}

// httpError maps domain errors onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, protocol.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrVersionConflict), errors.Is(err, session.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrCrossesMidnight),
		errors.Is(err, resource.ErrUnknownResource),
		errors.Is(err, protocol.ErrInvalidTemplate):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, planner.ErrInvalidConfiguration), errors.Is(err, ErrInvalidSession):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
