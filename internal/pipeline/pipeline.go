// Package pipeline runs the anomaly-scoring sequence for one device's
// training window: feature table, preprocessing, standardization, isolation
// forest, decision. Each run is single-pass and stateless; every stage is a
// pure transform over the frame.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sleepsift/sleepsift-cli/internal/iforest"
	"github.com/sleepsift/sleepsift-cli/internal/sleep"
)

// Params configures one run.
type Params struct {
	// Contamination is the expected anomaly fraction, in (0, 1). Validated
	// eagerly by the configuration layer; the model revalidates on fit.
	Contamination float64
	// ForceOutlierDate optionally marks one date (YYYY-MM-DD) as an outlier
	// regardless of model output.
	ForceOutlierDate string
	// Workers bounds parallel tree construction; 0 means all cores.
	Workers int
}

// Result is the terminal output of a successful run.
type Result struct {
	RunID      string
	Stage      Stage
	Frame      *sleep.Frame
	Preprocess PreprocessSummary
	Decision   Decision
}

// Run executes the full pipeline over the raw day records. Errors are one of
// *sleep.InsufficientDataError or *ProcessingError; no partial results are
// emitted.
func Run(days []sleep.Day, p Params) (*Result, error) {
	frame, err := sleep.BuildFrame(days)
	if err != nil {
		return nil, err
	}
	stage := StageCollecting

	X := frame.Matrix()
	summary := Preprocess(X)
	stage = StagePreprocessed

	Z := Standardize(X)
	stage = StageStandardized

	model, err := iforest.Fit(Z, p.Contamination, iforest.Options{Workers: p.Workers})
	if err != nil {
		if errors.Is(err, iforest.ErrTooFewSamples) {
			return nil, &sleep.InsufficientDataError{
				Reason: fmt.Sprintf("%d day rows (need at least %d)", len(Z), iforest.MinSamples),
			}
		}
		return nil, &ProcessingError{Stage: stage, Err: err}
	}
	labels := model.Predict(Z)
	scores := model.DecisionFunction(Z)
	stage = StageScored

	dec := decide(frame, labels, scores, p.ForceOutlierDate)
	stage = StageDecided

	return &Result{
		RunID:      uuid.NewString(),
		Stage:      stage,
		Frame:      frame,
		Preprocess: summary,
		Decision:   dec,
	}, nil
}
