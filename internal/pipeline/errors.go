package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Stage names one of the three completion calls.
type Stage string

const (
	StagePlanning    Stage = "planning"
	StageGeneration  Stage = "generation"
	StageExplanation Stage = "explanation"

	// StagePersistence is reported for failures that happen after all three
	// completion calls succeeded, while saving the version.
	StagePersistence Stage = "persistence"
)

// StageError reports which completion call failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s FAILED: %v", strings.ToUpper(string(e.Stage)), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// PersistenceError reports that the generated version could not be saved.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("PERSISTENCE FAILED: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FailedStage returns the stage an error from Generate or Run belongs to, or
// "" when err is neither a StageError nor a PersistenceError.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return StagePersistence
	}
	return ""
}
