package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	sandboxUser = "65534:65534" // nobody
	workdir     = "/sandbox"

	// outputDrainTimeout bounds the wait for the attach stream after exit.
	outputDrainTimeout = 2 * time.Second
)

type DockerOptions struct {
	PythonImage string
	CImage      string
	Runtime     string // "" = runc, "runsc" = gVisor
	MemoryBytes int64
	NanoCPUs    int64
	PidsLimit   int64
}

// Docker runs every submission in a throwaway container with no network,
// no capabilities, a read-only root filesystem and cgroup limits. Images
// must already be present on the host.
type Docker struct {
	cli    *client.Client
	limits Limits
	opts   DockerOptions
}

func NewDocker(limits Limits, opts DockerOptions) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if opts.MemoryBytes <= 0 {
		opts.MemoryBytes = 256 << 20
	}
	if opts.NanoCPUs <= 0 {
		opts.NanoCPUs = 1_000_000_000
	}
	if opts.PidsLimit <= 0 {
		opts.PidsLimit = 64
	}
	return &Docker{cli: cli, limits: limits, opts: opts}, nil
}

func (d *Docker) Close() error { return d.cli.Close() }

func (d *Docker) Execute(ctx context.Context, language, code string) Result {
	ctx, span := tracer.Start(ctx, "sandbox.docker.execute", trace.WithAttributes(
		attribute.String("sandbox.backend", "docker"),
		attribute.String("sandbox.language", language),
		attribute.String("sandbox.runtime", d.opts.Runtime),
	))
	defer span.End()

	if !Supported(language) {
		return unsupported(language)
	}

	dir, err := os.MkdirTemp("", "submission-*")
	if err != nil {
		return failed(err)
	}
	defer os.RemoveAll(dir)
	// The container user must be able to read the source and, for C, write
	// the binary.
	if err := os.Chmod(dir, 0o777); err != nil {
		return failed(err)
	}

	var res Result
	switch language {
	case LangPython:
		res = d.runPython(ctx, dir, code)
	case LangC:
		res = d.runC(ctx, dir, code)
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

func (d *Docker) runPython(ctx context.Context, dir, code string) Result {
	if err := os.WriteFile(filepath.Join(dir, "main.py"), []byte(code), 0o644); err != nil {
		return failed(err)
	}
	out, err := d.runContainer(ctx, d.opts.PythonImage, []string{"python3", workdir + "/main.py"}, dir, true, d.limits.Timeout)
	return d.result(ctx, out, err)
}

func (d *Docker) runC(ctx context.Context, dir, code string) Result {
	if err := os.WriteFile(filepath.Join(dir, "program.c"), []byte(code), 0o644); err != nil {
		return failed(err)
	}

	cc, err := d.runContainer(ctx, d.opts.CImage, []string{"gcc", workdir + "/program.c", "-o", workdir + "/program"}, dir, false, 0)
	if err != nil {
		return d.result(ctx, cc, err)
	}
	if cc.exitCode != 0 {
		return compileError(cc.stderr, cc.exitCode, d.limits)
	}

	out, err := d.runContainer(ctx, d.opts.CImage, []string{workdir + "/program"}, dir, true, d.limits.Timeout)
	return d.result(ctx, out, err)
}

func (d *Docker) result(ctx context.Context, out containerOutput, err error) Result {
	switch {
	case out.timedOut:
		return timedOut(d.limits)
	case ctx.Err() != nil:
		return cancelled()
	case err != nil:
		return failed(err)
	}
	return finish(out.stdout, out.stderr, out.exitCode, d.limits)
}

type containerOutput struct {
	stdout, stderr []byte
	exitCode       int
	timedOut       bool
}

func (d *Docker) hostConfig(dir string, readOnly bool) *container.HostConfig {
	pids := d.opts.PidsLimit
	return &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		Tmpfs:          map[string]string{"/tmp": "rw,exec,nosuid,size=64m"},
		Runtime:        d.opts.Runtime,
		LogConfig:      container.LogConfig{Type: "none"},
		Resources: container.Resources{
			Memory:     d.opts.MemoryBytes,
			MemorySwap: d.opts.MemoryBytes,
			NanoCPUs:   d.opts.NanoCPUs,
			PidsLimit:  &pids,
		},
		Mounts: []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   dir,
			Target:   workdir,
			ReadOnly: readOnly,
		}},
	}
}

func (d *Docker) runContainer(ctx context.Context, image string, cmd []string, dir string, readOnly bool, timeout time.Duration) (containerOutput, error) {
	var out containerOutput

	cfg := &container.Config{
		Image:           image,
		Cmd:             cmd,
		User:            sandboxUser,
		WorkingDir:      workdir,
		NetworkDisabled: true,
		Env:             []string{"HOME=/tmp", "PYTHONDONTWRITEBYTECODE=1"},
		AttachStdout:    true,
		AttachStderr:    true,
	}
	resp, err := d.cli.ContainerCreate(ctx, cfg, d.hostConfig(dir, readOnly), nil, nil, "")
	if errdefs.IsNotFound(err) {
		return out, fmt.Errorf("sandbox image %s is not present on the host: %w", image, err)
	}
	if err != nil {
		return out, fmt.Errorf("create container: %w", err)
	}
	cleanupCtx := context.WithoutCancel(ctx)
	defer func() {
		rmCtx, cancel := context.WithTimeout(cleanupCtx, 10*time.Second)
		defer cancel()
		_ = d.cli.ContainerRemove(rmCtx, resp.ID, container.RemoveOptions{Force: true})
	}()

	// Output is streamed straight into capped buffers; the log driver is
	// disabled so nothing reaches the host disk.
	hj, err := d.cli.ContainerAttach(ctx, resp.ID, container.AttachOptions{Stream: true, Stdout: true, Stderr: true})
	if err != nil {
		return out, fmt.Errorf("attach container: %w", err)
	}
	defer hj.Close()

	stdout, stderr := newCapBuffer(d.limits.MaxOutput), newCapBuffer(d.limits.MaxOutput)
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdout, stderr, hj.Reader)
		copied <- err
	}()

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return out, fmt.Errorf("start container: %w", err)
	}

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	statusCh, errCh := d.cli.ContainerWait(waitCtx, resp.ID, container.WaitConditionNotRunning)
	select {
	case st := <-statusCh:
		out.exitCode = int(st.StatusCode)
	case err := <-errCh:
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			out.timedOut = true
		}
		killCtx, cancel := context.WithTimeout(cleanupCtx, 5*time.Second)
		defer cancel()
		_ = d.cli.ContainerKill(killCtx, resp.ID, "SIGKILL")
		if out.timedOut {
			return out, nil
		}
		return out, fmt.Errorf("wait container: %w", err)
	}

	select {
	case err := <-copied:
		if err != nil {
			return out, fmt.Errorf("read output: %w", err)
		}
	case <-time.After(outputDrainTimeout):
		return out, errors.New("read output: stream did not close")
	}
	out.stdout, out.stderr = stdout.Bytes(), stderr.Bytes()
	return out, nil
}
