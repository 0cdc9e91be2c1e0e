package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Local runs submissions as host subprocesses in their own process group.
// It offers no isolation beyond the timeout, a scrubbed environment and a
// private temp directory; use Docker for untrusted traffic.
type Local struct {
	limits Limits
	Python string
	CC     string
}

func NewLocal(limits Limits) *Local {
	return &Local{limits: limits, Python: "python3", CC: "gcc"}
}

func (l *Local) Execute(ctx context.Context, language, code string) Result {
	ctx, span := tracer.Start(ctx, "sandbox.local.execute", trace.WithAttributes(
		attribute.String("sandbox.backend", "local"),
		attribute.String("sandbox.language", language),
		attribute.Int("sandbox.code_bytes", len(code)),
	))
	defer span.End()

	var res Result
	switch language {
	case LangPython:
		res = l.runPython(ctx, code)
	case LangC:
		res = l.runC(ctx, code)
	default:
		res = unsupported(language)
	}

	span.SetAttributes(
		attribute.Bool("sandbox.success", res.Success),
		attribute.Int("sandbox.exit_code", res.ExitCode),
	)
	if !res.Success {
		span.SetStatus(codes.Error, "submission failed")
	}
	return res
}

func (l *Local) runPython(ctx context.Context, code string) Result {
	dir, err := os.MkdirTemp("", "submission-py-*")
	if err != nil {
		return failed(err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "main.py")
	if err := os.WriteFile(src, []byte(code), 0o600); err != nil {
		return failed(err)
	}
	return l.run(ctx, dir, l.Python, src)
}

func (l *Local) runC(ctx context.Context, code string) Result {
	dir, err := os.MkdirTemp("", "submission-c-*")
	if err != nil {
		return failed(err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "program.c")
	bin := filepath.Join(dir, "program")
	if err := os.WriteFile(src, []byte(code), 0o600); err != nil {
		return failed(err)
	}

	// Compilation is bounded only by the session, not by the run timeout.
	cc := exec.CommandContext(ctx, l.CC, src, "-o", bin)
	configureProcess(cc)
	cc.Dir = dir
	cc.Env = submissionEnv(dir)
	stderr := newCapBuffer(l.limits.MaxOutput)
	cc.Stderr = stderr
	if err := cc.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return compileError(stderr.Bytes(), exitErr.ExitCode(), l.limits)
		}
		if ctx.Err() != nil {
			return cancelled()
		}
		return failed(err)
	}
	return l.run(ctx, dir, bin)
}

func (l *Local) run(ctx context.Context, dir, name string, args ...string) Result {
	runCtx, cancel := context.WithTimeout(ctx, l.limits.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	configureProcess(cmd)
	cmd.WaitDelay = time.Second
	cmd.Dir = dir
	cmd.Env = submissionEnv(dir)
	stdout, stderr := newCapBuffer(l.limits.MaxOutput), newCapBuffer(l.limits.MaxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return timedOut(l.limits)
	case ctx.Err() != nil:
		return cancelled()
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return failed(err)
	}
	return finish(stdout.Bytes(), stderr.Bytes(), cmd.ProcessState.ExitCode(), l.limits)
}

// submissionEnv is the whole environment a submission or its compiler sees.
// Nothing from the server process is inherited.
func submissionEnv(dir string) []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"LANG=C.UTF-8",
	}
}

func cancelled() Result {
	return Result{Success: false, Output: "Execution cancelled", ExitCode: -1}
}
