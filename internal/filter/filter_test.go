package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgtools/aptrewind/types"
)

func TestShouldInclude(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		pkg     string
		want    bool
	}{
		{"empty filter includes all", nil, nil, "htop", true},
		{"include match", []string{"lib*"}, nil, "libssl3", true},
		{"include miss", []string{"lib*"}, nil, "htop", false},
		{"exclude match", nil, []string{"linux-image-*"}, "linux-image-amd64", false},
		{"exclude miss", nil, []string{"linux-image-*"}, "htop", true},
		{"exclude beats include", []string{"lib*"}, []string{"libc6"}, "libc6", false},
		{"exact name", []string{"htop"}, nil, "htop", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.include, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.ShouldInclude(tt.pkg))
		})
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New([]string{"lib[ssl"}, nil)
	assert.Error(t, err)
}

func TestFilterSnapshot(t *testing.T) {
	snap := types.NewSnapshot(time.Now())
	snap.Packages["htop:amd64"] = types.PackageState{Package: "htop", Architecture: "amd64", Version: "3.2.1-1", Present: true}
	snap.Packages["libssl3:amd64"] = types.PackageState{Package: "libssl3", Architecture: "amd64", Version: "3.0.9-1", Present: true}

	f, err := New([]string{"lib*"}, nil)
	require.NoError(t, err)

	filtered := f.FilterSnapshot(snap)
	assert.Len(t, filtered.Packages, 1)
	assert.Contains(t, filtered.Packages, "libssl3:amd64")

	// Original untouched
	assert.Len(t, snap.Packages, 2)
}

func TestFilterSnapshot_EmptyFilterPassesThrough(t *testing.T) {
	snap := types.NewSnapshot(time.Now())
	snap.Packages["htop:amd64"] = types.PackageState{Package: "htop", Architecture: "amd64", Present: true}

	f, err := New(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, snap, f.FilterSnapshot(snap))
}
