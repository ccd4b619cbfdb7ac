package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgtools/aptrewind/types"
)

func newTestEngine(t *testing.T, protected ...string) *Engine {
	t.Helper()
	e := NewEngine(zerolog.Nop(), protected)
	require.NoError(t, e.LoadDefault(context.Background()))
	return e
}

func TestEvaluateAction_EssentialPackageRemoval(t *testing.T) {
	e := newTestEngine(t)

	verdict, err := e.EvaluateAction(context.Background(), types.RollbackAction{
		Package: "libc6", Architecture: "amd64", Kind: types.ActionRemoveCompletely,
	})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	require.Len(t, verdict.Denials, 1)
	assert.Contains(t, verdict.Denials[0], "essential")
}

func TestEvaluateAction_EssentialInstallIsAllowed(t *testing.T) {
	e := newTestEngine(t)

	// Installing an older libc is allowed; only removal is blocked
	verdict, err := e.EvaluateAction(context.Background(), types.RollbackAction{
		Package: "libc6", Architecture: "amd64",
		Kind: types.ActionInstallVersion, TargetVersion: "2.36-9",
	})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
}

func TestEvaluateAction_ConfiguredProtection(t *testing.T) {
	e := newTestEngine(t, "openssh-server")

	verdict, err := e.EvaluateAction(context.Background(), types.RollbackAction{
		Package: "openssh-server", Architecture: "amd64",
		Kind: types.ActionInstallVersion, TargetVersion: "1:9.2p1-2",
	})
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
}

func TestEvaluateAction_KernelWarning(t *testing.T) {
	e := newTestEngine(t)

	verdict, err := e.EvaluateAction(context.Background(), types.RollbackAction{
		Package: "linux-image-amd64", Architecture: "amd64",
		Kind: types.ActionInstallVersion, TargetVersion: "6.1.90-1",
	})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	require.Len(t, verdict.Warnings, 1)
	assert.Contains(t, verdict.Warnings[0], "kernel")
}

func TestFilterPlan(t *testing.T) {
	e := newTestEngine(t)

	plan := []types.RollbackAction{
		{Package: "dpkg", Kind: types.ActionRemoveCompletely},
		{Package: "htop", Kind: types.ActionInstallVersion, TargetVersion: "3.2.1-1"},
	}

	allowed, vetoed, err := e.FilterPlan(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, allowed, 1)
	assert.Equal(t, "htop", allowed[0].Package)
	require.Len(t, vetoed, 1)
	assert.Equal(t, "dpkg", vetoed[0].Action.Package)
}

func TestLoadPolicy_BadRego(t *testing.T) {
	e := NewEngine(zerolog.Nop(), nil)
	err := e.LoadPolicy(context.Background(), "bad.rego", "this is not rego")
	assert.Error(t, err)
}
