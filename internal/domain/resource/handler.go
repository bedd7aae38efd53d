package resource

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	reg *Registry
}

func NewHandler(reg *Registry) *Handler {
	return &Handler{reg: reg}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/therapists", h.ListTherapists)
	api.GET("/rooms", h.ListRooms)
}

func (h *Handler) ListTherapists(c echo.Context) error {
	return c.JSON(http.StatusOK, h.reg.Therapists())
}

func (h *Handler) ListRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, h.reg.Rooms())
}
