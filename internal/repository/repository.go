package repository

import (
	"context"
	"errors"
	"io"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidFormat = errors.New("invalid format. Use 'csv' or 'json'")
)

// InsertOutcome reports what InsertIfNew did.
type InsertOutcome int

const (
	OutcomeInserted InsertOutcome = iota + 1
	OutcomeExists
)

func (o InsertOutcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeExists:
		return "exists"
	default:
		return "unknown"
	}
}

type ObservationRepository interface {
	EnsureSchema(ctx context.Context) error
	// InsertIfNew stores obs unless a row with the same (location, date)
	// already exists. On insert obs.ID is set.
	InsertIfNew(ctx context.Context, obs *models.Observation) (InsertOutcome, error)
	Exists(ctx context.Context, location string, date models.LocalTime) (bool, error)
	ListAll(ctx context.Context) ([]models.Observation, error)
	// DeleteByID succeeds whether or not the id exists.
	DeleteByID(ctx context.Context, id int64) error
	// UpdateCondition returns ErrNotFound when no row has the id.
	UpdateCondition(ctx context.Context, id int64, condition string) error
	Export(ctx context.Context, w io.Writer, format ExportFormat) error
	Ping(ctx context.Context) error
}
