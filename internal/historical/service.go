package historical

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
)

const (
	// BoxDegrees is the half-width of the lat/lon box used to match a location.
	BoxDegrees = 0.1

	// MaxRows is the number of most recent rows returned.
	MaxRows = 180
)

// ServiceConfig holds configuration for the historical service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger
}

// Service answers location queries against the dataset.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

// NewService creates a new historical data service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}
}

// Nearby returns up to MaxRows records, oldest first, within BoxDegrees of
// (lat, lon). When nothing falls inside the box the whole dataset is used.
func (s *Service) Nearby(ctx context.Context, lat, lon float64) ([]Record, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]Record, 0, len(all))
	for _, rec := range all {
		if within(rec.Lat, lat) && within(rec.Lon, lon) {
			matched = append(matched, rec)
		}
	}

	if len(matched) == 0 {
		s.logger.Debug().
			Float64("lat", lat).
			Float64("lon", lon).
			Int("rows", len(all)).
			Msg("no historical rows near location, using full dataset")
		matched = all
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Date.Before(matched[j].Date)
	})

	if len(matched) > MaxRows {
		matched = matched[len(matched)-MaxRows:]
	}

	return matched, nil
}

func within(v, center float64) bool {
	return v >= center-BoxDegrees && v <= center+BoxDegrees
}
