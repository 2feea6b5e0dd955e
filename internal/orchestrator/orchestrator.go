// Package orchestrator sequences the two-stage workflow pipeline:
// generate (compile + emit) then execute, with status persisted around
// every transition.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/uiflow/internal/compiler"
	"github.com/rendis/uiflow/internal/logging"
	"github.com/rendis/uiflow/internal/robot"
	"github.com/rendis/uiflow/internal/runner"
	"github.com/rendis/uiflow/internal/status"
	"github.com/rendis/uiflow/internal/store"
	"github.com/rendis/uiflow/internal/validation"
	"github.com/rendis/uiflow/pkg/schema"
)

// RobotRunner is the interface the orchestrator uses to execute a
// generated script. Satisfied by runner.Runner.
type RobotRunner interface {
	Run(ctx context.Context, artifactPath string) (*runner.Outcome, error)
}

// Orchestrator runs the generate -> execute pipeline for named workflows.
// Run is a synchronous unit of work: the caller blocks until both stages
// finish or one fails.
type Orchestrator struct {
	artifactsDir string
	validator    *validation.GraphValidator
	statuses     *status.Store
	history      store.Store
	runner       RobotRunner
	logger       *slog.Logger
}

// New creates an Orchestrator. history may be nil; run-history recording
// is then skipped.
func New(artifactsDir string, statuses *status.Store, history store.Store, r RobotRunner, logger *slog.Logger) (*Orchestrator, error) {
	v, err := validation.NewGraphValidator()
	if err != nil {
		return nil, fmt.Errorf("build graph validator: %w", err)
	}
	return &Orchestrator{
		artifactsDir: artifactsDir,
		validator:    v,
		statuses:     statuses,
		history:      history,
		runner:       r,
		logger:       logger,
	}, nil
}

// DocumentPath returns the stored graph document path for a workflow name.
func (o *Orchestrator) DocumentPath(workflow string) string {
	return filepath.Join(o.artifactsDir, workflow+".json")
}

// Run executes the full pipeline for the named workflow.
// Status transitions: running on entry, then completed or failed. The
// failed write always happens before the error propagates; failures are
// never swallowed. Stage 2 starts only after stage 1 has returned, so it
// can never race a stale or partial artifact.
func (o *Orchestrator) Run(ctx context.Context, workflow string) error {
	runID := uuid.New().String()
	ctx = logging.WithRunID(logging.WithWorkflow(ctx, workflow), runID)
	started := time.Now().UTC()

	if err := o.statuses.Set(workflow, schema.RunStatusRunning); err != nil {
		return err
	}
	o.recordStart(ctx, runID, workflow, started)
	o.logger.InfoContext(ctx, "run started")

	outcome, err := o.pipeline(ctx, workflow)
	if err != nil {
		// The failed status write is never skipped on the failure path.
		if serr := o.statuses.Set(workflow, schema.RunStatusFailed); serr != nil {
			o.logger.ErrorContext(ctx, "failed to persist failed status", slog.String("error", serr.Error()))
		}
		o.recordFinish(ctx, runID, schema.RunStatusFailed, schema.CodeOf(err), exitCode(outcome))
		o.logger.ErrorContext(ctx, "run failed", slog.String("error", err.Error()))
		return err
	}

	if err := o.statuses.Set(workflow, schema.RunStatusCompleted); err != nil {
		return err
	}
	o.recordFinish(ctx, runID, schema.RunStatusCompleted, "", exitCode(outcome))
	o.logger.InfoContext(ctx, "run completed", slog.Duration("duration", time.Since(started)))
	return nil
}

// pipeline runs stage 1 (generate) and stage 2 (execute) in order.
func (o *Orchestrator) pipeline(ctx context.Context, workflow string) (*runner.Outcome, error) {
	artifactPath, err := o.generate(ctx, workflow)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, artifactPath)
}

// generate is stage 1: load the stored graph document, validate, compile
// to a plan, emit the Robot script, and publish the artifact.
func (o *Orchestrator) generate(ctx context.Context, workflow string) (string, error) {
	data, err := os.ReadFile(o.DocumentPath(workflow))
	if os.IsNotExist(err) {
		return "", schema.NewErrorf(schema.ErrCodeNotFound, "workflow %s has no stored graph document", workflow)
	}
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeGeneration, "read workflow document: %v", err).WithCause(err)
	}

	if err := o.validator.ValidateDocument(data); err != nil {
		return "", err
	}

	var graph schema.WorkflowGraph
	if err := json.Unmarshal(data, &graph); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "decode workflow document: %v", err).WithCause(err)
	}

	plan, err := compiler.Compile(&graph)
	if err != nil {
		return "", err
	}

	script := robot.Emit(plan)
	path, err := robot.WriteArtifact(o.artifactsDir, script)
	if err != nil {
		return "", err
	}

	o.logger.InfoContext(ctx, "script generated",
		slog.String("artifact", path),
		slog.Int("nodes", len(plan.Nodes)),
	)
	return path, nil
}

// execute is stage 2: run the engine against the freshly generated
// artifact and interpret its exit code.
func (o *Orchestrator) execute(ctx context.Context, artifactPath string) (*runner.Outcome, error) {
	outcome, err := o.runner.Run(ctx, artifactPath)
	if err != nil {
		return outcome, err
	}
	if outcome.ExitCode != 0 {
		return outcome, schema.NewErrorf(schema.ErrCodeExecution,
			"robot exited with code %d", outcome.ExitCode)
	}
	return outcome, nil
}

func (o *Orchestrator) recordStart(ctx context.Context, runID, workflow string, started time.Time) {
	if o.history == nil {
		return
	}
	err := o.history.CreateRun(ctx, &store.Run{
		ID:        runID,
		Workflow:  workflow,
		Status:    schema.RunStatusRunning,
		StartedAt: started,
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to record run start", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) recordFinish(ctx context.Context, runID string, st schema.RunStatus, errCode string, exit int) {
	if o.history == nil {
		return
	}
	err := o.history.FinishRun(ctx, runID, store.RunUpdate{
		Status:     st,
		ErrorCode:  errCode,
		ExitCode:   exit,
		FinishedAt: time.Now().UTC(),
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to record run finish", slog.String("error", err.Error()))
	}
}

func exitCode(outcome *runner.Outcome) int {
	if outcome == nil {
		return 0
	}
	return outcome.ExitCode
}
