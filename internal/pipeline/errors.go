package pipeline

import "fmt"

// ProcessingError wraps an unexpected failure inside a pipeline stage,
// preserving the original cause for diagnostics.
type ProcessingError struct {
	Stage Stage
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed at stage %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
