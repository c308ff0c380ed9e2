package historical

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository reads the dataset from the air_quality_history table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a read-only repository over pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// All implements Repository.
func (r *PostgresRepository) All(ctx context.Context) ([]Record, error) {
	query := `
		SELECT date, city, lat, lon, aqi, pm25, pm10, co2, temperature, humidity, wind_speed
		FROM air_quality_history
		ORDER BY date
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var rec Record
		err := row.Scan(
			&rec.Date,
			&rec.City,
			&rec.Lat,
			&rec.Lon,
			&rec.AQI,
			&rec.PM25,
			&rec.PM10,
			&rec.CO2,
			&rec.Temperature,
			&rec.Humidity,
			&rec.WindSpeed,
		)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning history: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: air_quality_history is empty", ErrDataFileMissing)
	}

	return records, nil
}
