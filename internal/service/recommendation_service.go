package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nearbytix/nearbytix/internal/models"
)

// RecommendedEvent is an event annotated with its distance from the caller.
type RecommendedEvent struct {
	models.Event
	DistanceKM float64 `gorm:"column:distance_km" json:"distance_km"`
}

type RecommendationService interface {
	NearbyEvents(ctx context.Context, latitude, longitude, radiusKM float64, skip, limit int) ([]RecommendedEvent, error)
}

type recommendationService struct {
	db              *gorm.DB
	defaultRadiusKM float64
	now             func() time.Time
}

func NewRecommendationService(db *gorm.DB, defaultRadiusKM float64) RecommendationService {
	return &recommendationService{
		db:              db,
		defaultRadiusKM: defaultRadiusKM,
		now:             time.Now,
	}
}

// NearbyEvents returns upcoming, not-sold-out events within radiusKM of the
// given point, closest first. Distance is computed in the database with the
// haversine formula over the stored venue coordinates.
func (s *recommendationService) NearbyEvents(ctx context.Context, latitude, longitude, radiusKM float64, skip, limit int) ([]RecommendedEvent, error) {
	if radiusKM <= 0 {
		radiusKM = s.defaultRadiusKM
	}

	// Rounding can push the acos argument a hair outside [-1, 1], which
	// postgres rejects; the clamp keeps it in range.
	const query = `
		SELECT * FROM (
			SELECT events.*,
				6371 * acos(GREATEST(-1.0, LEAST(1.0,
					cos(radians(?)) * cos(radians(latitude)) *
					cos(radians(longitude) - radians(?)) +
					sin(radians(?)) * sin(radians(latitude))
				))) AS distance_km
			FROM events
			WHERE start_time > ?
			  AND tickets_sold < total_tickets
		) nearby
		WHERE distance_km <= ?
		ORDER BY distance_km ASC
		OFFSET ? LIMIT ?`

	var results []RecommendedEvent
	err := s.db.WithContext(ctx).
		Raw(query, latitude, longitude, latitude, s.now(), radiusKM, skip, limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
