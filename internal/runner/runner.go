// Package runner invokes the Robot Framework engine against a generated
// script and captures its outcome.
package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/rendis/uiflow/pkg/schema"
)

const defaultMaxOutputSize = 10 * 1024 * 1024 // 10MB

// Config configures the Runner.
type Config struct {
	// Binary is the robot executable. Defaults to "robot" on PATH.
	Binary string
	// OutputDir is where robot writes its logs and reports (-d flag).
	OutputDir string
	// Timeout bounds one execution. Zero means unbounded, inheriting
	// whatever the engine does, including hangs.
	Timeout time.Duration
	// MaxOutputSize caps each captured stream.
	MaxOutputSize int64
}

// Outcome is the raw result of one engine invocation. The Runner does not
// interpret exit code semantics; that is the orchestrator's job.
type Outcome struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
	Killed   bool          `json:"killed"`
}

// Runner executes generated scripts as engine subprocesses.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Runner, applying config defaults.
func New(cfg Config, logger *slog.Logger) *Runner {
	if cfg.Binary == "" {
		cfg.Binary = "robot"
	}
	if cfg.MaxOutputSize <= 0 {
		cfg.MaxOutputSize = defaultMaxOutputSize
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Run blocks until the engine exits (or the configured timeout kills it)
// and returns the captured outcome. A process that ran and exited nonzero
// is not an error here; an engine that could not be started at all is
// ErrCodeExecution, and a timeout kill is ErrCodeTimeout.
func (r *Runner) Run(ctx context.Context, artifactPath string) (*Outcome, error) {
	execCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, r.cfg.Binary, "-d", r.cfg.OutputDir, artifactPath)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, limit: r.cfg.MaxOutputSize}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: r.cfg.MaxOutputSize}

	r.logger.Info("executing robot script",
		slog.String("binary", r.cfg.Binary),
		slog.String("artifact", artifactPath),
	)

	start := time.Now()
	runErr := cmd.Run()
	outcome := &Outcome{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// Non-exit error (e.g. binary not found).
			return nil, schema.NewErrorf(schema.ErrCodeExecution, "start robot: %v", runErr).WithCause(runErr)
		}
		outcome.ExitCode = exitErr.ExitCode()
		if execCtx.Err() == context.DeadlineExceeded {
			outcome.Killed = true
			return outcome, schema.NewErrorf(schema.ErrCodeTimeout,
				"robot execution exceeded %s", r.cfg.Timeout).WithCause(runErr)
		}
	}

	r.logger.Info("robot execution finished",
		slog.Int("exit_code", outcome.ExitCode),
		slog.Duration("duration", outcome.Duration),
	)
	return outcome, nil
}

// limitedWriter wraps a writer and silently discards bytes beyond the
// limit. Write always reports the full len(p) consumed to prevent the
// subprocess from blocking on a full pipe.
type limitedWriter struct {
	w       io.Writer
	limit   int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return total, nil
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := lw.w.Write(p)
	lw.written += int64(n)
	if err != nil {
		return total, err
	}
	return total, nil
}
