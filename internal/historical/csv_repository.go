package historical

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var csvColumns = []string{
	"date", "city", "lat", "lon", "aqi", "pm25", "pm10",
	"co2", "temperature", "humidity", "wind_speed",
}

// CSVRepository reads the dataset from a CSV file with a header row.
// The file is parsed on first successful load and kept in memory; a missing
// file is retried on the next call.
type CSVRepository struct {
	path string

	mu      sync.Mutex
	records []Record
	loaded  bool
}

// NewCSVRepository creates a repository for the CSV file at path.
func NewCSVRepository(path string) *CSVRepository {
	return &CSVRepository{path: path}
}

// Path returns the dataset location.
func (r *CSVRepository) Path() string {
	return r.path
}

// Load parses the file if it has not been loaded yet.
func (r *CSVRepository) Load(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}

	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDataFileMissing, r.path)
		}
		return fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	records, err := ParseCSV(f)
	if err != nil {
		return err
	}

	r.records = records
	r.loaded = true
	return nil
}

// All implements Repository.
func (r *CSVRepository) All(ctx context.Context) ([]Record, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out, nil
}

// ParseCSV decodes dataset rows. Columns are located by header name, so their
// order does not matter; all columns listed in the dataset schema are required.
func ParseCSV(src io.Reader) ([]Record, error) {
	reader := csv.NewReader(src)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range csvColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("dataset missing column %q", col)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}

		rec, err := parseRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

func parseRow(row []string, index map[string]int) (Record, error) {
	field := func(name string) string {
		return strings.TrimSpace(row[index[name]])
	}

	date, err := parseDate(field("date"))
	if err != nil {
		return Record{}, err
	}

	rec := Record{Date: date, City: field("city")}

	numbers := []struct {
		name string
		dst  *float64
	}{
		{"lat", &rec.Lat},
		{"lon", &rec.Lon},
		{"aqi", &rec.AQI},
		{"pm25", &rec.PM25},
		{"pm10", &rec.PM10},
		{"co2", &rec.CO2},
		{"temperature", &rec.Temperature},
		{"humidity", &rec.Humidity},
		{"wind_speed", &rec.WindSpeed},
	}
	for _, n := range numbers {
		v, err := strconv.ParseFloat(field(n.name), 64)
		if err != nil {
			return Record{}, fmt.Errorf("column %s: %w", n.name, err)
		}
		*n.dst = v
	}

	return rec, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{DateLayout, time.DateTime, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
