package environment

import (
	"context"
	"fmt"
	"strings"

	"github.com/nullbridge/testforge/internal/errs"
	"github.com/nullbridge/testforge/internal/logging"
	"github.com/nullbridge/testforge/internal/spec"
)

// installCommand returns the package-manager invocation for distribution,
// or ok=false for an unrecognized one (spec.md §4.6 "per-distribution
// install policies").
func installCommand(distribution string, packages []string) (string, bool) {
	joined := strings.Join(packages, " ")
	switch strings.ToLower(distribution) {
	case "arch":
		return "pacman -S --noconfirm " + joined, true
	case "ubuntu", "debian":
		return "apt-get install -y " + joined, true
	case "fedora":
		return "dnf install -y " + joined, true
	default:
		return "", false
	}
}

// RunSetup drives an environment's ordered setup sequence: package installs
// per distribution, then file copies, then commands. Any non-zero exit is
// fatal for the test (spec.md §4.6 step 2).
func RunSetup(ctx context.Context, env Environment, setup spec.Setup, log *logging.Logger) error {
	if log == nil {
		log = logging.Noop()
	}

	if len(setup.Packages) > 0 {
		cmd, ok := installCommand(env.Distribution(), setup.Packages)
		if !ok {
			log.Warn("unknown distribution, skipping package install", "distribution", env.Distribution())
		} else if err := runSetupCommand(ctx, env, cmd); err != nil {
			return err
		}
	}

	for _, f := range setup.Files {
		if err := env.CopyFile(ctx, f.Source, f.Destination); err != nil {
			return errs.NewEnvironmentError("", fmt.Sprintf("copying %s to %s", f.Source, f.Destination), err, false)
		}
	}

	for _, command := range setup.Commands {
		if err := runSetupCommand(ctx, env, command); err != nil {
			return err
		}
	}

	return nil
}

func runSetupCommand(ctx context.Context, env Environment, command string) error {
	result, err := env.Execute(ctx, command, 0)
	if err != nil {
		return errs.NewEnvironmentError("", fmt.Sprintf("running setup command %q", command), err, false)
	}
	if !result.Success {
		return errs.NewEnvironmentError("", fmt.Sprintf("setup command %q exited %d", command, result.ExitCode),
			fmt.Errorf("%s", primaryOutput(result)), false)
	}
	return nil
}

// RunCleanup drives the cleanup command sequence, run only when
// cleanup.always is set or the test passed. Cleanup failures are logged as
// warnings and never escalate the test's own status (spec.md §4.6
// step 4) — teardown is best-effort, unlike setup.
func RunCleanup(ctx context.Context, env Environment, cleanup spec.Cleanup, testPassed bool, log *logging.Logger) {
	if log == nil {
		log = logging.Noop()
	}
	if !cleanup.Always && !testPassed {
		return
	}

	for _, command := range cleanup.Commands {
		result, err := env.Execute(ctx, command, 0)
		switch {
		case err != nil:
			log.Warn("cleanup command failed", "command", command, "error", err.Error())
		case !result.Success:
			log.Warn("cleanup command exited non-zero", "command", command, "exit_code", result.ExitCode)
		}
	}
}

// Destroy tears down env; failures are logged as warnings and never fail
// the test (spec.md §4.6 step 4).
func Destroy(ctx context.Context, env Environment, log *logging.Logger) {
	if log == nil {
		log = logging.Noop()
	}
	if err := env.Destroy(ctx); err != nil {
		log.Warn("environment destroy failed", "environment", env.Name(), "error", err.Error())
	}
}

func primaryOutput(r ExecResult) string {
	if strings.TrimSpace(r.Stderr) != "" {
		return r.Stderr
	}
	return r.Stdout
}
