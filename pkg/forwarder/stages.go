package forwarder

import (
	"errors"
	"time"
)

// Stage identifies one step of a pipeline run.
type Stage string

const (
	StageLoadWatermark    Stage = "load_watermark"
	StageFetch            Stage = "fetch"
	StageCompute          Stage = "compute"
	StageForward          Stage = "forward"
	StageNotify           Stage = "notify"
	StagePersistWatermark Stage = "persist_watermark"
)

// ErrWatermarkHeld marks a persist stage that was deliberately skipped: in
// exactly-once mode a failed append keeps the watermark where it was so the
// next run re-delivers the batch.
var ErrWatermarkHeld = errors.New("watermark held for redelivery after failed append")

// StageResult records how one stage of a run went. A nil Err is a clean
// stage; a non-nil Err on a non-aborting stage means the run degraded and
// carried on.
type StageResult struct {
	Stage Stage
	Err   error
}

// Failed reports whether the stage recorded an error.
func (r StageResult) Failed() bool {
	return r.Err != nil
}

// RunReport is the full account of one pipeline run. Run never returns an
// error: failure detail lives here and in the notification channel.
type RunReport struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	// PreviousWatermark is the value the run started from, after any
	// fail-open degradation to zero.
	PreviousWatermark int64
	// NewWatermark is the value durably persisted by this run. Equal to
	// PreviousWatermark when nothing was written.
	NewWatermark int64

	// Forwarded is the number of records submitted to the stream sink.
	Forwarded int
	// Skipped counts candidates dropped for unparsable sequence ids.
	Skipped int
	// Aborted is true when the run terminated early at the fetch stage.
	Aborted bool

	Stages []StageResult
}

// StageErr returns the recorded error for a stage, or nil if the stage ran
// clean or never ran.
func (r RunReport) StageErr(stage Stage) error {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Err
		}
	}
	return nil
}
