package pipeline

import (
	"fmt"
	"time"
)

// StageTimer records per-stage wall time for a pipeline run.
type StageTimer struct {
	start  time.Time
	stages []stageTime
}

type stageTime struct {
	name     string
	duration time.Duration
}

// NewStageTimer starts timing a run.
func NewStageTimer() *StageTimer {
	return &StageTimer{start: time.Now()}
}

// Mark closes the current stage and starts the next.
func (t *StageTimer) Mark(name string) time.Duration {
	d := time.Since(t.start)
	t.stages = append(t.stages, stageTime{name: name, duration: d})
	t.start = time.Now()
	return d
}

// Summary formats all recorded stages.
func (t *StageTimer) Summary() string {
	s := ""
	for i, st := range t.stages {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%s", st.name, st.duration.Round(time.Millisecond))
	}
	return s
}
