package pipeline

// Stage tracks a run's progress through the pipeline. Transitions are strictly
// forward; a stage failure halts the run without advancing.
type Stage int

const (
	StageCollecting Stage = iota
	StagePreprocessed
	StageStandardized
	StageScored
	StageDecided
)

func (s Stage) String() string {
	switch s {
	case StageCollecting:
		return "collecting"
	case StagePreprocessed:
		return "preprocessed"
	case StageStandardized:
		return "standardized"
	case StageScored:
		return "scored"
	case StageDecided:
		return "decided"
	}
	return "unknown"
}
