package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearbytix/nearbytix/internal/dto"
	"github.com/nearbytix/nearbytix/internal/middleware"
	"github.com/nearbytix/nearbytix/internal/models"
	"github.com/nearbytix/nearbytix/internal/service"
)

// --- Mock RecommendationService ---

type mockRecommendationService struct {
	nearbyFn func(ctx context.Context, latitude, longitude, radiusKM float64, skip, limit int) ([]service.RecommendedEvent, error)
}

func (m *mockRecommendationService) NearbyEvents(ctx context.Context, latitude, longitude, radiusKM float64, skip, limit int) ([]service.RecommendedEvent, error) {
	return m.nearbyFn(ctx, latitude, longitude, radiusKM, skip, limit)
}

func newRecommendationServer(svc service.RecommendationService, authSvc service.AuthService) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	NewRecommendationHandler(svc, authSvc, 50).RegisterRoutes(e, testJWTSecret)
	return e
}

func locatedUser(id uuid.UUID) *models.User {
	lat, lng := 38.7223, -9.1393
	return &models.User{ID: id, Latitude: &lat, Longitude: &lng}
}

func TestGetRecommendations(t *testing.T) {
	userID := uuid.New()
	authSvc := &mockAuthService{
		getUserFn: func(_ context.Context, id uuid.UUID) (*models.User, error) {
			return locatedUser(id), nil
		},
	}
	svc := &mockRecommendationService{
		nearbyFn: func(_ context.Context, lat, lng, radiusKM float64, skip, limit int) ([]service.RecommendedEvent, error) {
			assert.Equal(t, 38.7223, lat)
			assert.Equal(t, -9.1393, lng)
			assert.Equal(t, 50.0, radiusKM)
			return []service.RecommendedEvent{
				{Event: *sampleEvent(uuid.New()), DistanceKM: 3.1},
			}, nil
		},
	}
	e := newRecommendationServer(svc, authSvc)

	rec := doRequest(e, http.MethodGet, "/api/v1/recommendations", bearerFor(t, userID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.RecommendationListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, 3.1, resp.Recommendations[0].DistanceKM)
	assert.Equal(t, 50.0, resp.RadiusKM)
}

func TestGetRecommendations_CustomRadius(t *testing.T) {
	authSvc := &mockAuthService{
		getUserFn: func(_ context.Context, id uuid.UUID) (*models.User, error) {
			return locatedUser(id), nil
		},
	}
	svc := &mockRecommendationService{
		nearbyFn: func(_ context.Context, _, _, radiusKM float64, _, _ int) ([]service.RecommendedEvent, error) {
			assert.Equal(t, 10.0, radiusKM)
			return nil, nil
		},
	}
	e := newRecommendationServer(svc, authSvc)

	rec := doRequest(e, http.MethodGet, "/api/v1/recommendations?radius=10", bearerFor(t, uuid.New()), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetRecommendations_RadiusOutOfRange(t *testing.T) {
	authSvc := &mockAuthService{
		getUserFn: func(_ context.Context, id uuid.UUID) (*models.User, error) {
			return locatedUser(id), nil
		},
	}
	e := newRecommendationServer(&mockRecommendationService{}, authSvc)

	rec := doRequest(e, http.MethodGet, "/api/v1/recommendations?radius=9000", bearerFor(t, uuid.New()), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRecommendations_NoLocation(t *testing.T) {
	authSvc := &mockAuthService{
		getUserFn: func(_ context.Context, id uuid.UUID) (*models.User, error) {
			return &models.User{ID: id}, nil
		},
	}
	e := newRecommendationServer(&mockRecommendationService{}, authSvc)

	rec := doRequest(e, http.MethodGet, "/api/v1/recommendations", bearerFor(t, uuid.New()), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
