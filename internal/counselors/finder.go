// Package counselors looks up mental health professionals near the user.
package counselors

import (
	"context"
	"errors"

	"github.com/xaenox/hopeconnect/internal/models"
	"go.uber.org/zap"
)

// DefaultQuery is used when the user does not name what they look for.
const DefaultQuery = "Mental health counselors"

// ErrLocationUnavailable is shown to the user as a blocking alert.
var ErrLocationUnavailable = errors.New("Unable to retrieve your location. Please allow location access.")

// Locator yields the user's current position.
type Locator interface {
	Locate(ctx context.Context) (models.Coordinates, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (models.Coordinates, error)

func (f LocatorFunc) Locate(ctx context.Context) (models.Coordinates, error) {
	return f(ctx)
}

// Fixed always reports the same position.
type Fixed models.Coordinates

func (c Fixed) Locate(ctx context.Context) (models.Coordinates, error) {
	return models.Coordinates(c), nil
}

// PlaceSearcher is the part of the gateway the finder needs.
type PlaceSearcher interface {
	FindNearbyPlaces(ctx context.Context, query string, at *models.Coordinates) models.PlacesResult
}

type Finder struct {
	places PlaceSearcher
	logger *zap.Logger
}

func NewFinder(places PlaceSearcher, logger *zap.Logger) *Finder {
	return &Finder{
		places: places,
		logger: logger,
	}
}

// Nearby resolves the user's location and searches around it. Without a
// location no search is made and ErrLocationUnavailable is returned. A result
// with a summary but no places is returned unchanged.
func (f *Finder) Nearby(ctx context.Context, locator Locator, query string) (models.PlacesResult, error) {
	if locator == nil {
		return models.PlacesResult{}, ErrLocationUnavailable
	}

	at, err := locator.Locate(ctx)
	if err != nil {
		f.logger.Warn("Location lookup failed", zap.Error(err))
		return models.PlacesResult{}, ErrLocationUnavailable
	}

	if query == "" {
		query = DefaultQuery
	}

	res := f.places.FindNearbyPlaces(ctx, query, &at)
	f.logger.Info("Nearby search finished",
		zap.String("query", query),
		zap.Int("places", len(res.Places)))
	return res, nil
}
