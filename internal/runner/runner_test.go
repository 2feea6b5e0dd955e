package runner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rendis/uiflow/pkg/schema"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEngine writes a shell script standing in for the robot binary. It
// receives the same argv shape (-d <dir> <artifact>).
func fakeEngine(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robot")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_CapturesOutput(t *testing.T) {
	bin := fakeEngine(t, `echo "pass"; echo "warn" >&2; exit 0`)
	r := New(Config{Binary: bin, OutputDir: t.TempDir()}, discard())

	outcome, err := r.Run(context.Background(), "generated.robot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.ExitCode != 0 {
		t.Errorf("exit code: got %d, want 0", outcome.ExitCode)
	}
	if strings.TrimSpace(outcome.Stdout) != "pass" {
		t.Errorf("stdout: got %q", outcome.Stdout)
	}
	if strings.TrimSpace(outcome.Stderr) != "warn" {
		t.Errorf("stderr: got %q", outcome.Stderr)
	}
	if outcome.Killed {
		t.Error("killed must be false")
	}
}

func TestRun_PassesArtifactAndOutputDir(t *testing.T) {
	bin := fakeEngine(t, `echo "$@"`)
	outDir := t.TempDir()
	r := New(Config{Binary: bin, OutputDir: outDir}, discard())

	outcome, err := r.Run(context.Background(), "/tmp/generated.robot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "-d " + outDir + " /tmp/generated.robot"
	if strings.TrimSpace(outcome.Stdout) != want {
		t.Errorf("argv: got %q, want %q", strings.TrimSpace(outcome.Stdout), want)
	}
}

func TestRun_NonzeroExitIsNotAnError(t *testing.T) {
	bin := fakeEngine(t, `echo "test failed" >&2; exit 3`)
	r := New(Config{Binary: bin, OutputDir: t.TempDir()}, discard())

	outcome, err := r.Run(context.Background(), "generated.robot")
	if err != nil {
		t.Fatalf("nonzero exit must be reported via outcome, got error: %v", err)
	}
	if outcome.ExitCode != 3 {
		t.Errorf("exit code: got %d, want 3", outcome.ExitCode)
	}
}

func TestRun_MissingBinary(t *testing.T) {
	r := New(Config{Binary: filepath.Join(t.TempDir(), "nope"), OutputDir: t.TempDir()}, discard())

	_, err := r.Run(context.Background(), "generated.robot")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	fe, ok := err.(*schema.FlowError)
	if !ok || fe.Code != schema.ErrCodeExecution {
		t.Errorf("expected %s, got %v", schema.ErrCodeExecution, err)
	}
}

func TestRun_TimeoutKillsProcess(t *testing.T) {
	bin := fakeEngine(t, `sleep 30`)
	r := New(Config{Binary: bin, OutputDir: t.TempDir(), Timeout: 100 * time.Millisecond}, discard())

	start := time.Now()
	outcome, err := r.Run(context.Background(), "generated.robot")
	if time.Since(start) > 5*time.Second {
		t.Fatal("run did not respect timeout")
	}
	if err == nil {
		t.Fatal("expected timeout error")
	}
	fe, ok := err.(*schema.FlowError)
	if !ok || fe.Code != schema.ErrCodeTimeout {
		t.Errorf("expected %s, got %v", schema.ErrCodeTimeout, err)
	}
	if outcome == nil || !outcome.Killed {
		t.Error("outcome must report the kill")
	}
}

func TestRun_OutputCapped(t *testing.T) {
	bin := fakeEngine(t, `i=0; while [ $i -lt 100 ]; do echo "0123456789"; i=$((i+1)); done`)
	r := New(Config{Binary: bin, OutputDir: t.TempDir(), MaxOutputSize: 64}, discard())

	outcome, err := r.Run(context.Background(), "generated.robot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Stdout) > 64 {
		t.Errorf("stdout not capped: %d bytes", len(outcome.Stdout))
	}
	if outcome.ExitCode != 0 {
		t.Errorf("capped output must not fail the process, exit=%d", outcome.ExitCode)
	}
}
