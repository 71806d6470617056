// Package local is the reference Environment backend: it runs commands
// directly on the host instead of inside a container or VM, for specs
// declaring `environment.type: local` (spec.md §6).
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/nullbridge/testforge/internal/environment"
)

type backend struct {
	name         string
	distribution string
}

// New provisions a local Environment. It satisfies environment.Factory and
// is registered under (registry.KindEnvironment, "local").
func New(ctx context.Context, opts environment.Options) (environment.Environment, error) {
	return &backend{name: opts.SpecName, distribution: opts.Distribution}, nil
}

func (b *backend) Name() string         { return b.name }
func (b *backend) Distribution() string { return b.distribution }

func (b *backend) Execute(ctx context.Context, command string, timeout time.Duration) (environment.ExecResult, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shell, shellArgs, err := determineShell()
	if err != nil {
		return environment.ExecResult{}, err
	}

	cmd := exec.CommandContext(runCtx, shell, append(shellArgs, command)...)
	cmd.Env = os.Environ()

	streamed, runErr := runStreaming(cmd)

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return environment.ExecResult{}, fmt.Errorf("running command: %w", runErr)
	}

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	return environment.ExecResult{
		Stdout:   streamed.Stdout,
		Stderr:   streamed.Stderr,
		ExitCode: exitCode,
		Success:  runErr == nil,
	}, nil
}

func (b *backend) FileExists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (b *backend) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (b *backend) WriteFile(ctx context.Context, path string, content []byte) error {
	return os.WriteFile(path, content, 0o644)
}

func (b *backend) CopyFile(ctx context.Context, source, destination string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return err
	}
	return os.WriteFile(destination, data, 0o644)
}

func (b *backend) Destroy(ctx context.Context) error {
	return nil // nothing to tear down; the host is not owned by this environment
}

// streamResult captures stdout/stderr emitted by a streaming command run.
type streamResult struct {
	Stdout string
	Stderr string
}

// runStreaming wires the command's stdout/stderr through a buffer so
// Execute can return captured output even on failure.
func runStreaming(cmd *exec.Cmd) (streamResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = io.MultiWriter(io.Discard, &stdoutBuf)
	cmd.Stderr = io.MultiWriter(io.Discard, &stderrBuf)

	err := cmd.Run()

	return streamResult{
		Stdout: strings.TrimSpace(stdoutBuf.String()),
		Stderr: strings.TrimSpace(stderrBuf.String()),
	}, err
}

func determineShell() (string, []string, error) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}, nil
	}
	if path, err := exec.LookPath("bash"); err == nil {
		return path, []string{"-c"}, nil
	}
	if path, err := exec.LookPath("sh"); err == nil {
		return path, []string{"-c"}, nil
	}
	return "", nil, fmt.Errorf("no suitable shell found")
}
