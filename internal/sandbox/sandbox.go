// Package sandbox compiles and runs untrusted submissions under a wall-clock
// timeout and an output cap.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
)

const (
	LangPython = "python"
	LangC      = "c"

	outputTruncated = "\n... (output truncated)"
	errorTruncated  = "\n... (error truncated)"
)

var tracer = otel.Tracer("github.com/yoockh/yoointerview/internal/sandbox")

// Result is what the client sees for a run. Failures of the submitted code
// are results, never errors.
type Result struct {
	Success  bool   `json:"success"`
	Output   string `json:"output"`
	ExitCode int    `json:"return_code"`
}

type Executor interface {
	Execute(ctx context.Context, language, code string) Result
}

type Limits struct {
	Timeout   time.Duration
	MaxOutput int // characters per stream
}

func DefaultLimits() Limits {
	return Limits{Timeout: 10 * time.Second, MaxOutput: 5000}
}

// Truncate cuts s to max characters and appends suffix when anything was cut.
func Truncate(s string, max int, suffix string) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + suffix
		}
		n++
	}
	return s
}

func Supported(language string) bool {
	return language == LangPython || language == LangC
}

func unsupported(language string) Result {
	return Result{Success: false, Output: fmt.Sprintf("Unsupported language: %s", language), ExitCode: -1}
}

func timedOut(l Limits) Result {
	return Result{
		Success:  false,
		Output:   fmt.Sprintf("Execution timed out after %d seconds", int(l.Timeout.Round(time.Second)/time.Second)),
		ExitCode: -1,
	}
}

func failed(err error) Result {
	return Result{Success: false, Output: "Execution error: " + err.Error(), ExitCode: -1}
}

func compileError(stderr []byte, exitCode int, l Limits) Result {
	msg := Truncate(decode(stderr), l.MaxOutput, errorTruncated)
	return Result{Success: false, Output: "Compilation error:\n" + msg, ExitCode: exitCode}
}

// finish reports stdout when the program printed anything, stderr otherwise.
func finish(stdout, stderr []byte, exitCode int, l Limits) Result {
	out := Truncate(decode(stdout), l.MaxOutput, outputTruncated)
	if out == "" {
		out = Truncate(decode(stderr), l.MaxOutput, errorTruncated)
	}
	return Result{Success: exitCode == 0, Output: out, ExitCode: exitCode}
}

func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// capBuffer keeps the first limit bytes written to it and silently drops
// the rest, so a runaway program cannot exhaust memory.
type capBuffer struct {
	buf   bytes.Buffer
	limit int
}

func newCapBuffer(maxChars int) *capBuffer {
	// Enough bytes for maxChars runes plus one more to detect overflow.
	return &capBuffer{limit: (maxChars + 1) * utf8.UTFMax}
}

func (c *capBuffer) Write(p []byte) (int, error) {
	if room := c.limit - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

func (c *capBuffer) Bytes() []byte { return c.buf.Bytes() }
