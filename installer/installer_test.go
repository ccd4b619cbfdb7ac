package installer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgtools/aptrewind/types"
)

func TestDpkg_Apply(t *testing.T) {
	var commands [][]string
	d := &Dpkg{run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		commands = append(commands, append([]string{name}, args...))
		return nil, nil
	}}

	ctx := context.Background()

	err := d.Apply(ctx, types.ResolvedAction{
		RollbackAction: types.RollbackAction{
			Package: "htop", Architecture: "amd64",
			Kind: types.ActionInstallVersion, TargetVersion: "3.2.1-1",
		},
		LocalPath: "/tmp/dl/htop_3.2.1-1_amd64.deb",
	})
	require.NoError(t, err)

	err = d.Apply(ctx, types.ResolvedAction{
		RollbackAction: types.RollbackAction{
			Package: "curl", Architecture: "amd64",
			Kind: types.ActionRemoveCompletely,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"dpkg", "-i", "/tmp/dl/htop_3.2.1-1_amd64.deb"},
		{"dpkg", "-P", "curl:amd64"},
	}, commands)
}

func TestDpkg_ApplyInstallWithoutArtifact(t *testing.T) {
	d := &Dpkg{run: func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		t.Fatal("dpkg must not run without a local artifact")
		return nil, nil
	}}

	err := d.Apply(context.Background(), types.ResolvedAction{
		RollbackAction: types.RollbackAction{
			Package: "htop", Kind: types.ActionInstallVersion, TargetVersion: "3.2.1-1",
		},
	})
	assert.Error(t, err)
}

func TestDpkg_ApplyWrapsCommandOutput(t *testing.T) {
	d := &Dpkg{run: func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte("dependency problems"), fmt.Errorf("exit status 1")
	}}

	err := d.Apply(context.Background(), types.ResolvedAction{
		RollbackAction: types.RollbackAction{Package: "curl", Kind: types.ActionRemoveCompletely},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency problems")
}
