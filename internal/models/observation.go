package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DateLayout is how observation timestamps are rendered in every payload and export.
const DateLayout = "2006-01-02 15:04:05"

// Observation is one weather reading for one place at one reported local time.
type Observation struct {
	ID              int64     `json:"id,omitempty"` // assigned by the store, never reused
	Location        string    `json:"location"`
	Region          string    `json:"region"`
	Country         string    `json:"country"`
	Condition       string    `json:"condition"` // the only mutable field
	TemperatureC    float64   `json:"temperature_c"`
	WindSpeedKph    float64   `json:"wind_speed_kph"`
	PrecipitationMm float64   `json:"precipitation_mm"`
	Date            LocalTime `json:"date"` // localized time reported by the source, not insert time
}

// LocalTime is a wall-clock timestamp without a meaningful zone.
type LocalTime struct {
	time.Time
}

var localTimeLayouts = []string{
	DateLayout,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

// ParseLocalTime accepts the layouts the weather source and the supported databases produce.
func ParseLocalTime(s string) (LocalTime, error) {
	for _, layout := range localTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return LocalTime{Time: t}, nil
		}
	}
	return LocalTime{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func (t LocalTime) String() string {
	return t.Format(DateLayout)
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *LocalTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the timestamp as a native time value.
func (t LocalTime) Value() (driver.Value, error) {
	return t.Time, nil
}

// Scan accepts native timestamps, textual timestamps, and numeric epoch
// seconds left behind by older writers. Epochs are rendered in the host's
// local zone.
func (t *LocalTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
	case int64:
		t.Time = time.Unix(v, 0).Local()
	case float64:
		sec := int64(v)
		t.Time = time.Unix(sec, int64((v-float64(sec))*1e9)).Local()
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	case nil:
		t.Time = time.Time{}
	default:
		return fmt.Errorf("cannot scan %T into LocalTime", src)
	}
	return nil
}

func (t *LocalTime) scanString(s string) error {
	if epoch, err := strconv.ParseFloat(s, 64); err == nil {
		return t.Scan(epoch)
	}
	parsed, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
