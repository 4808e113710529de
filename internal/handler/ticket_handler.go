package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nearbytix/nearbytix/internal/dto"
	"github.com/nearbytix/nearbytix/internal/middleware"
	"github.com/nearbytix/nearbytix/internal/models"
	"github.com/nearbytix/nearbytix/internal/service"
)

type TicketHandler struct {
	svc service.TicketService
}

func NewTicketHandler(svc service.TicketService) *TicketHandler {
	return &TicketHandler{svc: svc}
}

// RegisterRoutes mounts the ticket endpoints. The extra middleware (rate
// limiting on reserve) is supplied by the caller so tests can skip it.
func (h *TicketHandler) RegisterRoutes(e *echo.Echo, jwtSecret string, reserveMw ...echo.MiddlewareFunc) {
	tickets := e.Group("/api/v1/tickets", middleware.JWTAuth(jwtSecret))
	tickets.POST("", h.ReserveTicket, reserveMw...)
	tickets.POST("/:id/pay", h.PayTicket)
	tickets.GET("/:id", h.GetTicket)
	tickets.GET("", h.ListMyTickets)
}

func (h *TicketHandler) ReserveTicket(c echo.Context) error {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var req dto.ReserveTicketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.EventID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "event_id is required")
	}

	ticket, err := h.svc.ReserveTicket(c.Request().Context(), callerID, req.EventID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound), errors.Is(err, service.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrSoldOut):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusCreated, dto.ToTicketResponse(ticket))
}

func (h *TicketHandler) PayTicket(c echo.Context) error {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid ticket id")
	}

	ticket, err := h.svc.PayTicket(c.Request().Context(), ticketID, callerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTicketNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrForbidden):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrTicketExpired):
			return echo.NewHTTPError(http.StatusGone, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, dto.ToTicketResponse(ticket))
}

func (h *TicketHandler) GetTicket(c echo.Context) error {
	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid ticket id")
	}

	ticket, err := h.svc.GetTicket(c.Request().Context(), ticketID)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, dto.ToTicketResponse(ticket))
}

func (h *TicketHandler) ListMyTickets(c echo.Context) error {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	skip, limit := pagination(c, 100)
	status, err := statusFilter(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tickets, err := h.svc.ListUserTickets(c.Request().Context(), callerID, status, skip, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, dto.ToTicketListResponse(tickets, skip, limit))
}

func pagination(c echo.Context, defaultLimit int) (skip, limit int) {
	skip, _ = strconv.Atoi(c.QueryParam("skip"))
	if skip < 0 {
		skip = 0
	}
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 1000 {
		limit = defaultLimit
	}
	return skip, limit
}

func statusFilter(c echo.Context) (*models.TicketStatus, error) {
	s := c.QueryParam("status")
	if s == "" {
		return nil, nil
	}
	status := models.TicketStatus(s)
	switch status {
	case models.TicketReserved, models.TicketPaid, models.TicketExpired:
		return &status, nil
	default:
		return nil, fmt.Errorf("invalid status %q", s)
	}
}
