package pipeline

import (
	"github.com/joseph-ayodele/deeds-tracker/internal/entity"
	"github.com/joseph-ayodele/deeds-tracker/internal/metrics"
)

// Fault stages.
const (
	StageArchive   = "archive"
	StageClean     = "clean"
	StageExtract   = "extract"
	StageValidate  = "validate"
	StageNormalize = "normalize"
	StagePersist   = "persist"
)

// Result is the outcome of one stage: a value that is always usable plus the
// faults recorded while producing it.
type Result[T any] struct {
	Value  T
	Faults []entity.Fault
}

func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail records a fault and keeps v as the fallback value.
func (r *Result[T]) Fail(stage string, chunk, record int, err error) {
	r.Faults = append(r.Faults, newFault(stage, chunk, record, err))
}

func newFault(stage string, chunk, record int, err error) entity.Fault {
	metrics.PipelineFaultsTotal.WithLabelValues(stage).Inc()
	return entity.Fault{Stage: stage, Chunk: chunk, Record: record, Message: err.Error()}
}
