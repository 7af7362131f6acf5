package ports

import (
	"context"

	"toxstat/domain/core"
	"toxstat/domain/tox"
)

// MetadataSource resolves dose-level labels and administered dose values for
// derivation traces. Ordered ascending by dose level, control first.
type MetadataSource interface {
	GetDoseGroups(ctx context.Context, studyID core.StudyID) ([]tox.DoseGroupMeta, error)
}
