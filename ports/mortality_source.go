package ports

import (
	"context"

	"toxstat/domain/core"
	"toxstat/domain/tox"
)

// MortalitySource reports the external mortality aggregation for a study.
// Returns a nil summary when the study recorded no disposition data.
type MortalitySource interface {
	GetMortalitySummary(ctx context.Context, studyID core.StudyID) (*tox.MortalitySummary, error)
}
