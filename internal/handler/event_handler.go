package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nearbytix/nearbytix/internal/dto"
	"github.com/nearbytix/nearbytix/internal/middleware"
	"github.com/nearbytix/nearbytix/internal/models"
	"github.com/nearbytix/nearbytix/internal/service"
)

type EventHandler struct {
	svc       service.EventService
	ticketSvc service.TicketService
}

func NewEventHandler(svc service.EventService, ticketSvc service.TicketService) *EventHandler {
	return &EventHandler{svc: svc, ticketSvc: ticketSvc}
}

func (h *EventHandler) RegisterRoutes(e *echo.Echo, jwtSecret string) {
	events := e.Group("/api/v1/events")
	events.GET("", h.ListEvents)
	events.GET("/:id", h.GetEvent)
	events.GET("/:id/tickets", h.ListEventTickets)

	authed := e.Group("/api/v1/events", middleware.JWTAuth(jwtSecret))
	authed.POST("", h.CreateEvent)
	authed.PUT("/:id", h.UpdateEvent)
}

func (h *EventHandler) CreateEvent(c echo.Context) error {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var req dto.CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" || req.Venue.VenueName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title and venue_name are required")
	}

	event := &models.Event{
		CreatorID:    callerID,
		Title:        req.Title,
		Description:  req.Description,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		TotalTickets: req.TotalTickets,
		Latitude:     req.Venue.Latitude,
		Longitude:    req.Venue.Longitude,
		VenueName:    req.Venue.VenueName,
		AddressLine1: req.Venue.AddressLine1,
		AddressLine2: req.Venue.AddressLine2,
		City:         req.Venue.City,
		State:        req.Venue.State,
		Country:      req.Venue.Country,
		PostalCode:   req.Venue.PostalCode,
	}

	if err := h.svc.CreateEvent(c.Request().Context(), event); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTicketCount), errors.Is(err, service.ErrInvalidTimeRange):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusCreated, dto.ToEventResponse(event))
}

func (h *EventHandler) GetEvent(c echo.Context) error {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}

	event, err := h.svc.GetEvent(c.Request().Context(), eventID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, dto.ToEventResponse(event))
}

func (h *EventHandler) ListEvents(c echo.Context) error {
	skip, limit := pagination(c, 100)
	upcomingOnly, _ := strconv.ParseBool(c.QueryParam("upcoming_only"))

	events, err := h.svc.ListEvents(c.Request().Context(), skip, limit, upcomingOnly)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := make([]dto.EventResponse, len(events))
	for i := range events {
		resp[i] = dto.ToEventResponse(&events[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *EventHandler) UpdateEvent(c echo.Context) error {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}

	var req dto.UpdateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	event, err := h.svc.UpdateEvent(c.Request().Context(), eventID, callerID, func(e *models.Event) {
		if req.Title != nil {
			e.Title = *req.Title
		}
		if req.Description != nil {
			e.Description = *req.Description
		}
		if req.StartTime != nil {
			e.StartTime = *req.StartTime
		}
		if req.EndTime != nil {
			e.EndTime = *req.EndTime
		}
		if req.TotalTickets != nil {
			e.TotalTickets = *req.TotalTickets
		}
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrNotEventCreator):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrInvalidTicketCount), errors.Is(err, service.ErrInvalidTimeRange):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, dto.ToEventResponse(event))
}

func (h *EventHandler) ListEventTickets(c echo.Context) error {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}

	skip, limit := pagination(c, 100)
	status, err := statusFilter(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	tickets, err := h.ticketSvc.ListEventTickets(c.Request().Context(), eventID, status, skip, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, dto.ToTicketListResponse(tickets, skip, limit))
}
