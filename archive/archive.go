// Package archive talks to the remote historical package archive.
package archive

import (
	"context"

	"github.com/pkgtools/aptrewind/types"
)

// Archive is the remote archive capability: look up the artifacts that ever
// existed for a package version, and fetch one to local disk. The archive is
// unreliable by nature; empty lookup results are expected, not exceptional.
type Archive interface {
	// Lookup returns every known artifact for (name, version, arch),
	// possibly none. A missing version is an empty result, not an error.
	Lookup(ctx context.Context, name, version, arch string) ([]types.ArtifactRef, error)

	// Fetch downloads the artifact into destDir and returns the local path.
	// Already-downloaded artifacts are reused.
	Fetch(ctx context.Context, ref types.ArtifactRef, destDir string) (string, error)
}
