// Package installer invokes the system package installer.
package installer

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/pkgtools/aptrewind/types"
)

// Installer applies one rollback action to the running system.
// Implementations are not reentrant: dpkg holds a system-wide lock, so at
// most one Apply may be in flight process-wide.
type Installer interface {
	Apply(ctx context.Context, action types.ResolvedAction) error
}

// commandRunner runs one external command; swapped out in tests.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Dpkg applies actions by shelling out to dpkg. A mutex enforces the
// one-in-flight invariant even if callers misbehave.
type Dpkg struct {
	mu  sync.Mutex
	run commandRunner
}

// NewDpkg creates the dpkg-backed installer.
func NewDpkg() *Dpkg {
	return &Dpkg{run: runCommand}
}

// Apply installs the downloaded artifact or purges the package.
func (d *Dpkg) Apply(ctx context.Context, action types.ResolvedAction) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch action.Kind {
	case types.ActionInstallVersion:
		if action.LocalPath == "" {
			return fmt.Errorf("no local artifact for %s %s", action.Key(), action.TargetVersion)
		}
		output, err := d.run(ctx, "dpkg", "-i", action.LocalPath)
		if err != nil {
			return fmt.Errorf("dpkg -i %s failed: %w (output: %s)", action.LocalPath, err, string(output))
		}
		return nil

	case types.ActionRemoveCompletely:
		output, err := d.run(ctx, "dpkg", "-P", action.Key())
		if err != nil {
			return fmt.Errorf("dpkg -P %s failed: %w (output: %s)", action.Key(), err, string(output))
		}
		return nil

	case types.ActionNoOp:
		return nil

	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}
