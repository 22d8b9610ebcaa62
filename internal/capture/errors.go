package capture

import (
	"errors"
	"fmt"
)

var ErrAlreadyStarted = errors.New("capture: session already started")

// Stage names the pipeline step an error came from, so callers can tell a
// lost device apart from a full disk
type Stage string

const (
	StageDevice   Stage = "device"
	StageDownmix  Stage = "downmix"
	StageResample Stage = "resample"
	StageWrite    Stage = "write"
	StageFinalize Stage = "finalize"
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
