package main

import (
	"fmt"
	"time"

	"shape-studio/tools/csg"
)

// State is a step of the refinement state machine
type State int

const (
	StateInit State = iota
	StateExecute
	StateRender
	StatePropose
	StateCompare
	StateContinue
	StateConverged
	StateExhausted
	StateFailed
)

var stateNames = [...]string{
	StateInit:      "INIT",
	StateExecute:   "EXECUTE",
	StateRender:    "RENDER",
	StatePropose:   "PROPOSE",
	StateCompare:   "COMPARE",
	StateContinue:  "CONTINUE",
	StateConverged: "CONVERGED",
	StateExhausted: "EXHAUSTED",
	StateFailed:    "FAILED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether the loop stops in this state
func (s State) Terminal() bool {
	return s == StateConverged || s == StateExhausted || s == StateFailed
}

// Succeeded reports whether the state is a normal end of the loop
func (s State) Succeeded() bool {
	return s == StateConverged || s == StateExhausted
}

// MarshalYAML writes the state by name
func (s State) MarshalYAML() (any, error) {
	return s.String(), nil
}

// StudioConfig holds configuration for the refinement loop
type StudioConfig struct {
	OutputDir     string
	MaxIterations int
	Target        TargetConfig
	SampleCells   int  // grid resolution for the symmetric-difference signal
	Metrics       bool // write metrics.prom into the run directory
}

// IterationRecord describes one pass of the loop. It is written once and
// never changed.
type IterationRecord struct {
	Index     int                `yaml:"index"`
	Program   string             `yaml:"program"`
	Views     string             `yaml:"views"`
	Vertices  int                `yaml:"vertices"`
	Faces     int                `yaml:"faces"`
	Volume    float64            `yaml:"volume"`
	Error     *csg.Discrepancy   `yaml:"error,omitempty"`
	VolumeGap *float64           `yaml:"volume_gap,omitempty"` // |volume - target volume|
	Durations map[string]float64 `yaml:"durations_seconds"`
}

// Outcome is the result of one run of the loop
type Outcome struct {
	RunID     string            `yaml:"run_id"`
	Dir       string            `yaml:"dir"`
	State     State             `yaml:"state"`
	Accepted  int               `yaml:"accepted_iterations"`
	Max       int               `yaml:"max_iterations"`
	Records   []IterationRecord `yaml:"iterations"`
	FinalMesh string            `yaml:"final_mesh,omitempty"`
	Started   time.Time         `yaml:"started"`
	Elapsed   float64           `yaml:"elapsed_seconds"`
	Error     string            `yaml:"error,omitempty"`
}
