package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/nearbytix/nearbytix/internal/dto"
	"github.com/nearbytix/nearbytix/internal/middleware"
	"github.com/nearbytix/nearbytix/internal/service"
)

type RecommendationHandler struct {
	svc             service.RecommendationService
	authSvc         service.AuthService
	defaultRadiusKM float64
}

func NewRecommendationHandler(svc service.RecommendationService, authSvc service.AuthService, defaultRadiusKM float64) *RecommendationHandler {
	return &RecommendationHandler{svc: svc, authSvc: authSvc, defaultRadiusKM: defaultRadiusKM}
}

func (h *RecommendationHandler) RegisterRoutes(e *echo.Echo, jwtSecret string) {
	e.GET("/api/v1/recommendations", h.GetRecommendations, middleware.JWTAuth(jwtSecret))
}

// GetRecommendations returns upcoming events near the caller's stored
// location, closest first.
func (h *RecommendationHandler) GetRecommendations(c echo.Context) error {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	user, err := h.authSvc.GetUser(c.Request().Context(), callerID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !user.HasLocation() {
		return echo.NewHTTPError(http.StatusBadRequest,
			"no location on file, update it via /api/v1/users/me/location")
	}

	radiusKM := h.defaultRadiusKM
	if s := c.QueryParam("radius"); s != "" {
		r, err := strconv.ParseFloat(s, 64)
		if err != nil || r < 1 || r > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "radius must be between 1 and 500 km")
		}
		radiusKM = r
	}
	skip, limit := pagination(c, 20)

	recs, err := h.svc.NearbyEvents(c.Request().Context(), *user.Latitude, *user.Longitude, radiusKM, skip, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, dto.ToRecommendationListResponse(recs, radiusKM))
}
