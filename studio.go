package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"shape-studio/tools/csg"
	"shape-studio/tools/logger"
	"shape-studio/tools/mesh"
	"shape-studio/tools/render"
)

// Executor turns program text into a solid
type Executor interface {
	Execute(ctx context.Context, program string) (*csg.Solid, error)
}

// Renderer writes the six views of a mesh into a directory
type Renderer interface {
	Render(m *mesh.Mesh, dir string) (*render.ViewSet, error)
}

// Proposer returns a complete replacement program
type Proposer interface {
	Propose(ctx context.Context, program string, target, current *render.ViewSet) (string, error)
}

// Loop stages, used in errors, records and metrics
const (
	StageExecute = "execute"
	StageRender  = "render"
	StagePropose = "propose"
	StagePersist = "persist"
)

// ErrRunning is returned when Run is called while a run is in progress
var ErrRunning = errors.New("a refinement run is already in progress")

// IterationError is a failure inside one pass of the loop
type IterationError struct {
	Iteration int
	Stage     string
	Program   string
	Err       error
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("iteration %d: %s failed: %v", e.Iteration, e.Stage, e.Err)
}

func (e *IterationError) Unwrap() error {
	return e.Err
}

// Reference is the fixed target of a run
type Reference struct {
	Views  *render.ViewSet
	Shape  *csg.Shape // nil unless the target is a program
	Mesh   *mesh.Mesh // nil when only views are given
	Volume float64
}

// Studio orchestrates the refinement loop
type Studio struct {
	config   StudioConfig
	executor Executor
	renderer Renderer
	proposer Proposer
	store    *ProgramStore
	log      *logger.Logger

	running atomic.Bool
	newID   func() string
	now     func() time.Time
}

// NewStudio creates a studio around its collaborators. The renderer and
// store are process-wide; the studio runs at most one loop at a time.
func NewStudio(config StudioConfig, executor Executor, renderer Renderer, proposer Proposer, store *ProgramStore, log *logger.Logger) (*Studio, error) {
	if config.OutputDir == "" {
		config.OutputDir = defaultOutputDir
	}
	if config.MaxIterations < 1 {
		return nil, &ConfigError{Field: "max_iterations", Err: fmt.Errorf("must be at least 1, got %d", config.MaxIterations)}
	}
	if executor == nil || renderer == nil || proposer == nil || store == nil {
		return nil, errors.New("studio needs an executor, renderer, proposer and program store")
	}
	if log == nil {
		log = logger.Default()
	}
	return &Studio{
		config:   config,
		executor: executor,
		renderer: renderer,
		proposer: proposer,
		store:    store,
		log:      log.WithPrefix("studio"),
		newID:    uuid.NewString,
		now:      time.Now,
	}, nil
}

// Run drives the loop until it converges, exhausts its iteration budget or
// fails. The outcome is returned in every case; the error is non-nil
// exactly when the state is FAILED.
func (s *Studio) Run(ctx context.Context) (*Outcome, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunning
	}
	defer s.running.Store(false)

	start := s.now()
	id := s.newID()
	out := &Outcome{
		RunID:   id,
		Dir:     filepath.Join(s.config.OutputDir, start.Format("20060102-150405")+"_"+shortID(id)),
		State:   StateInit,
		Max:     s.config.MaxIterations,
		Started: start,
		Records: []IterationRecord{},
	}
	metrics := newRunMetrics()

	s.log.Info("═══════════════════════════════════════════════════════════════")
	s.log.Info("Starting refinement run %s", id)
	s.log.Info("Program: %s", s.store.Path())
	s.log.Info("Output folder: %s", out.Dir)
	s.log.Info("═══════════════════════════════════════════════════════════════")

	err := s.loop(ctx, out, metrics)
	if err != nil {
		out.State = StateFailed
		out.Error = err.Error()
	}
	out.Elapsed = s.now().Sub(start).Seconds()
	metrics.finish(out.State)
	s.persistOutcome(out, metrics)

	s.log.Outcome(out.State.String(), out.Accepted, out.Max, s.now().Sub(start))
	return out, err
}

func (s *Studio) loop(ctx context.Context, out *Outcome, metrics *runMetrics) error {
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	program, err := s.store.Load()
	if err != nil {
		return &ConfigError{Field: "program", Err: err}
	}
	s.log.Program("initial program", program)

	target, err := s.establishTarget(ctx, out.Dir)
	if err != nil {
		return err
	}

	var last *csg.Solid
	for iteration := 0; ; {
		if err := ctx.Err(); err != nil {
			return &IterationError{Iteration: iteration, Stage: StageExecute, Program: program, Err: err}
		}
		s.log.Iteration(iteration, s.config.MaxIterations)
		dir := filepath.Join(out.Dir, fmt.Sprintf("iteration_%03d", iteration))
		rec := IterationRecord{Index: iteration, Durations: map[string]float64{}}
		fail := func(stage string, err error) error {
			return &IterationError{Iteration: iteration, Stage: stage, Program: program, Err: err}
		}

		out.State = StateExecute
		started := s.now()
		solid, err := s.executor.Execute(ctx, program)
		s.timed(&rec, metrics, StageExecute, started)
		if err != nil {
			s.keepFailedProgram(out.Dir, iteration, program)
			return fail(StageExecute, err)
		}
		last = solid
		s.log.Execution(len(solid.Mesh.Vertices), len(solid.Mesh.Faces), solid.Volume())

		out.State = StateRender
		started = s.now()
		views, err := s.renderer.Render(solid.Mesh, dir)
		s.timed(&rec, metrics, StageRender, started)
		if err != nil {
			return fail(StageRender, err)
		}
		if err := os.WriteFile(filepath.Join(dir, "program.go"), []byte(program), 0o644); err != nil {
			return fail(StagePersist, err)
		}
		rec.Program = filepath.Join(dir, "program.go")
		rec.Views = views.Dir
		s.measure(&rec, solid, target, metrics)

		out.State = StatePropose
		started = s.now()
		next, err := s.proposer.Propose(ctx, program, target.Views, views)
		s.timed(&rec, metrics, StagePropose, started)
		if werr := s.writeRecord(dir, rec); werr != nil {
			s.log.Warn("failed to write iteration record: %v", werr)
		}
		out.Records = append(out.Records, rec)
		if err != nil {
			return fail(StagePropose, err)
		}

		out.State = StateCompare
		if next == program {
			s.log.Info("✓ Proposal is identical to the current program")
			out.State = StateConverged
			break
		}
		if err := s.store.Save(next); err != nil {
			return fail(StagePersist, err)
		}
		s.log.Program("accepted program", next)
		program = next
		iteration++
		out.Accepted = iteration
		metrics.accepted.Inc()

		if iteration == s.config.MaxIterations {
			s.log.Info("Iteration budget of %d reached", s.config.MaxIterations)
			out.State = StateExhausted
			break
		}
		out.State = StateContinue
	}

	if last != nil {
		path := filepath.Join(out.Dir, "final.obj")
		if err := mesh.SaveOBJ(path, last.Mesh); err != nil {
			s.log.Warn("failed to export final mesh: %v", err)
		} else {
			out.FinalMesh = path
		}
	}
	return nil
}

// establishTarget builds the read-only reference for the run. Without
// target views, the reference solid is rendered into <run>/target.
func (s *Studio) establishTarget(ctx context.Context, runDir string) (*Reference, error) {
	cfg := s.config.Target
	ref := &Reference{}

	switch {
	case cfg.Program != "":
		data, err := os.ReadFile(cfg.Program)
		if err != nil {
			return nil, &ConfigError{Field: "target.program", Err: err}
		}
		solid, err := s.executor.Execute(ctx, string(data))
		if err != nil {
			return nil, &ConfigError{Field: "target.program", Err: err}
		}
		ref.Shape, ref.Mesh, ref.Volume = solid.Shape, solid.Mesh, solid.Volume()
	case cfg.Mesh != "":
		m, err := mesh.LoadOBJ(cfg.Mesh)
		if err != nil {
			return nil, &ConfigError{Field: "target.mesh", Err: err}
		}
		ref.Mesh, ref.Volume = m, m.Volume()
	}

	if cfg.Views != "" {
		vs, err := render.LoadViewSet(cfg.Views)
		if err != nil {
			return nil, &ConfigError{Field: "target.views", Err: err}
		}
		ref.Views = vs
		return ref, nil
	}
	if ref.Mesh == nil {
		return nil, &ConfigError{Field: "target", Err: errors.New("one of views, program or mesh is required")}
	}
	vs, err := s.renderer.Render(ref.Mesh, filepath.Join(runDir, "target"))
	if err != nil {
		return nil, fmt.Errorf("failed to render target: %w", err)
	}
	ref.Views = vs
	s.log.Info("Target rendered to %s", vs.Dir)
	return ref, nil
}

// measure fills the diagnostic quality signal of rec
func (s *Studio) measure(rec *IterationRecord, solid *csg.Solid, target *Reference, metrics *runMetrics) {
	rec.Vertices = len(solid.Mesh.Vertices)
	rec.Faces = len(solid.Mesh.Faces)
	rec.Volume = solid.Volume()
	metrics.volume.Set(rec.Volume)

	if target.Mesh != nil {
		gap := math.Abs(rec.Volume - target.Volume)
		rec.VolumeGap = &gap
	}
	if target.Shape != nil && solid.Shape != nil {
		d := csg.SymmetricDifference(solid.Shape, target.Shape, s.config.SampleCells)
		rec.Error = &d
		metrics.discrepancy.Set(d.Total())
		s.log.Info("📐 Symmetric difference: %.6g (current-target %.6g, target-current %.6g)",
			d.Total(), d.CurrentMinusTarget, d.TargetMinusCurrent)
	}
}

func (s *Studio) timed(rec *IterationRecord, metrics *runMetrics, stage string, started time.Time) {
	d := s.now().Sub(started)
	rec.Durations[stage] = d.Seconds()
	metrics.observe(stage, d)
}

func (s *Studio) writeRecord(dir string, rec IterationRecord) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "record.yaml"), data, 0o644)
}

// keepFailedProgram saves a program that did not execute next to the run's
// iterations for inspection
func (s *Studio) keepFailedProgram(runDir string, iteration int, program string) {
	path := filepath.Join(runDir, fmt.Sprintf("iteration_%03d_failed.go", iteration))
	if err := os.WriteFile(path, []byte(program), 0o644); err != nil {
		s.log.Warn("failed to save failed program: %v", err)
		return
	}
	s.log.Warn("Failed program saved to: %s", path)
}

func (s *Studio) persistOutcome(out *Outcome, metrics *runMetrics) {
	if _, err := os.Stat(out.Dir); err != nil {
		return
	}
	data, err := yaml.Marshal(out)
	if err == nil {
		err = os.WriteFile(filepath.Join(out.Dir, "run.yaml"), data, 0o644)
	}
	if err != nil {
		s.log.Warn("failed to write run summary: %v", err)
	}
	if s.config.Metrics {
		if err := metrics.write(filepath.Join(out.Dir, "metrics.prom")); err != nil {
			s.log.Warn("failed to write metrics: %v", err)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
