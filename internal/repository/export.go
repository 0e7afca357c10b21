package repository

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/models"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

var exportHeader = []string{
	"id",
	"location",
	"region",
	"country",
	"condition",
	"temperature_c",
	"wind_speed_kph",
	"precipitation_mm",
	"date",
}

// ParseExportFormat accepts "csv" or "json" in any case.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", ErrInvalidFormat
	}
}

func (f ExportFormat) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

func (f ExportFormat) Filename() string {
	return "weather_data." + string(f)
}

// Export writes every observation to w in id order. Nothing is written for
// an unknown format.
func (s *SQLDB) Export(ctx context.Context, w io.Writer, format ExportFormat) error {
	switch format {
	case FormatCSV:
		return s.exportCSV(ctx, w)
	case FormatJSON:
		return s.exportJSON(ctx, w)
	default:
		return ErrInvalidFormat
	}
}

func (s *SQLDB) exportCSV(ctx context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("error writing csv header: %w", err)
	}

	err := s.each(ctx, func(o models.Observation) error {
		return cw.Write([]string{
			strconv.FormatInt(o.ID, 10),
			o.Location,
			o.Region,
			o.Country,
			o.Condition,
			formatFloat(o.TemperatureC),
			formatFloat(o.WindSpeedKph),
			formatFloat(o.PrecipitationMm),
			o.Date.String(),
		})
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// exportJSON streams a 4-space indented array, one record at a time.
func (s *SQLDB) exportJSON(ctx context.Context, w io.Writer) error {
	const indent = "    "

	first := true
	err := s.each(ctx, func(o models.Observation) error {
		b, err := json.MarshalIndent(o, indent, indent)
		if err != nil {
			return fmt.Errorf("error encoding observation %d: %w", o.ID, err)
		}
		sep := ",\n" + indent
		if first {
			sep = "[\n" + indent
			first = false
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	})
	if err != nil {
		return err
	}

	tail := "\n]\n"
	if first {
		tail = "[]\n"
	}
	_, err = io.WriteString(w, tail)
	return err
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
