package ports

import (
	"context"

	"toxstat/domain/core"
	"toxstat/domain/tox"
)

// GroupStatsSource supplies grouped dose-cohort records per endpoint. The
// upstream extraction collaborator (SEND domain parsing, subject pooling)
// lives behind this port; the engine only ever sees validated group
// sequences.
type GroupStatsSource interface {
	ListEndpoints(ctx context.Context, studyID core.StudyID) ([]tox.Endpoint, error)
	GetEndpoint(ctx context.Context, endpointID core.EndpointID) (*tox.Endpoint, error)
}

// SubjectObservationSource supplies per-subject (outcome, covariate) pairs
// for endpoints that need covariate adjustment. Separate from
// GroupStatsSource because most endpoints never materialize subject-level
// data.
type SubjectObservationSource interface {
	ListObservations(ctx context.Context, endpointID core.EndpointID) ([]SubjectObservation, error)
}

// SubjectObservation is one subject's outcome and covariate measurement.
type SubjectObservation struct {
	SubjectID core.ID `json:"subject_id"`
	DoseLevel int     `json:"dose_level"`
	Outcome   float64 `json:"outcome"`
	Covariate float64 `json:"covariate"`
}
