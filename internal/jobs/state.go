package jobs

import (
	"fmt"
	"time"
)

// The transitions below are the only code that changes stage statuses.
// Each keeps three properties: at most one stage is active, stages after an
// error end cancelled, and the job status follows from its stages.

func (j *Job) beginStage(i int, now time.Time) error {
	if i < 0 || i >= len(j.Stages) {
		return fmt.Errorf("stage index %d out of range", i)
	}
	for k, s := range j.Stages {
		if s.Status == StageActive {
			return fmt.Errorf("stage %s already active", j.Stages[k].ID)
		}
		if s.Status == StageError {
			return fmt.Errorf("job %s already failed at stage %s", j.ID, s.ID)
		}
	}
	st := &j.Stages[i]
	if st.Status != StagePending {
		return fmt.Errorf("stage %s is %s, not pending", st.ID, st.Status)
	}
	for k := 0; k < i; k++ {
		if j.Stages[k].Status != StageCompleted {
			return fmt.Errorf("stage %s started before %s completed", st.ID, j.Stages[k].ID)
		}
	}
	st.Status = StageActive
	st.Progress = 0
	st.StartedAt = &now
	j.Status = StatusProcessing
	j.UpdatedAt = now
	return nil
}

func (j *Job) setStageProgress(i int, pct int, now time.Time) {
	if i < 0 || i >= len(j.Stages) || j.Stages[i].Status != StageActive {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 99 {
		pct = 99
	}
	j.Stages[i].Progress = pct
	j.UpdatedAt = now
}

func (j *Job) completeStage(i int, now time.Time) error {
	if i < 0 || i >= len(j.Stages) || j.Stages[i].Status != StageActive {
		return fmt.Errorf("stage %d is not active", i)
	}
	st := &j.Stages[i]
	st.Status = StageCompleted
	st.Progress = 100
	stopClock(st, now)
	j.UpdatedAt = now
	j.deriveStatus(now)
	return nil
}

// failStage marks stage i as error and cancels every stage still pending. It
// returns the indexes it cancelled. A pending stage i is failed directly,
// which is how a job that never got to run is recorded.
func (j *Job) failStage(i int, detail string, now time.Time) []int {
	if i < 0 || i >= len(j.Stages) {
		return nil
	}
	st := &j.Stages[i]
	if st.Status == StageActive || st.Status == StagePending {
		st.Status = StageError
		st.Detail = detail
		stopClock(st, now)
	}
	var cancelled []int
	for k := i + 1; k < len(j.Stages); k++ {
		if j.Stages[k].Status == StagePending {
			j.Stages[k].Status = StageCancelled
			cancelled = append(cancelled, k)
		}
	}
	if j.Error == "" {
		j.Error = detail
	}
	j.UpdatedAt = now
	j.deriveStatus(now)
	return cancelled
}

func (j *Job) deriveStatus(now time.Time) {
	allDone := len(j.Stages) > 0
	for _, s := range j.Stages {
		if s.Status == StageError {
			j.Status = StatusError
			j.markFinished(now)
			return
		}
		if s.Status != StageCompleted {
			allDone = false
		}
	}
	if allDone {
		j.Status = StatusCompleted
		j.markFinished(now)
	}
}

func (j *Job) markFinished(now time.Time) {
	if j.CompletedAt == nil {
		j.CompletedAt = &now
	}
}

func stopClock(st *Stage, now time.Time) {
	st.CompletedAt = &now
	if st.StartedAt != nil {
		d := now.Sub(*st.StartedAt).Milliseconds()
		st.DurationMs = &d
	}
}
