// Package observ times the stages of the descriptor pipeline.
package observ

import (
	"fmt"
	"strings"
	"time"
)

// Stage is one timed step of a pipeline run. Besides the duration it
// records how many things the step processed (types built, records
// captured, bytes written), so a slow run shows where the volume is.
type Stage struct {
	Name  string
	Dur   time.Duration
	Count int
	Unit  string

	start time.Time
}

// Stop freezes the stage's duration and records what it processed. Unit
// names the counted thing; an empty unit hides the count.
func (s *Stage) Stop(count int, unit string) {
	s.Dur = time.Since(s.start)
	s.Count = count
	s.Unit = unit
}

// Timer collects the stages of one pipeline run.
type Timer struct {
	stages []*Stage
}

func NewTimer() *Timer { return &Timer{stages: make([]*Stage, 0, 4)} }

// Start opens a stage. The caller stops it when the step is done;
// a stage that is never stopped reports a zero duration.
func (t *Timer) Start(name string) *Stage {
	s := &Stage{Name: name, start: time.Now()}
	t.stages = append(t.stages, s)
	return s
}

// Summary renders the run as an aligned table with a trailing total.
func (t *Timer) Summary() string {
	var b strings.Builder
	b.WriteString("timings:\n")
	var total time.Duration
	for _, s := range t.stages {
		total += s.Dur
		fmt.Fprintf(&b, "  %-12s %8.2f ms", s.Name, millis(s.Dur))
		if s.Unit != "" {
			fmt.Fprintf(&b, "  %d %s", s.Count, s.Unit)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "  %-12s %8.2f ms\n", "total", millis(total))
	return b.String()
}

// StageReport is the serializable form of one stage.
type StageReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Count      int     `json:"count,omitempty"`
	Unit       string  `json:"unit,omitempty"`
}

// Report aggregates the run in milliseconds.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Stages  []StageReport `json:"stages"`
}

func (t *Timer) Report() Report {
	if len(t.stages) == 0 {
		return Report{}
	}
	r := Report{Stages: make([]StageReport, len(t.stages))}
	var total time.Duration
	for i, s := range t.stages {
		total += s.Dur
		r.Stages[i] = StageReport{
			Name:       s.Name,
			DurationMS: millis(s.Dur),
			Count:      s.Count,
			Unit:       s.Unit,
		}
	}
	r.TotalMS = millis(total)
	return r
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
