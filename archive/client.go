package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pkgtools/aptrewind/types"
)

// DefaultBaseURL is the Debian snapshot archive.
const DefaultBaseURL = "http://snapshot.debian.org"

const defaultTimeout = 30 * time.Second

// SnapshotClient queries snapshot.debian.org through its machine-readable
// API. It implements Archive.
type SnapshotClient struct {
	baseURL string
	client  *http.Client
}

// NewSnapshotClient creates a client for the given archive base URL.
// An empty baseURL selects snapshot.debian.org.
func NewSnapshotClient(baseURL string) *SnapshotClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &SnapshotClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// binfilesResponse mirrors /mr/package/<name>/<version>/binfiles?fileinfo=1.
type binfilesResponse struct {
	Result []struct {
		Hash         string `json:"hash"`
		Architecture string `json:"architecture"`
	} `json:"result"`
	FileInfo map[string][]struct {
		Name        string `json:"name"`
		ArchiveName string `json:"archive_name"`
		Path        string `json:"path"`
		FirstSeen   string `json:"first_seen"`
		Size        int64  `json:"size"`
	} `json:"fileinfo"`
}

// Lookup returns all artifact locations the snapshot archive knows for
// (name, version, arch). Binary-all packages match any architecture. An
// unknown package or version yields an empty result and no error: very old
// snapshots really are pruned upstream.
func (c *SnapshotClient) Lookup(ctx context.Context, name, version, arch string) ([]types.ArtifactRef, error) {
	endpoint := fmt.Sprintf("%s/mr/package/%s/%s/binfiles?fileinfo=1",
		c.baseURL, url.PathEscape(name), url.PathEscape(version))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build archive request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive lookup for %s %s failed: %w", name, version, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive lookup for %s %s: unexpected status %s", name, version, resp.Status)
	}

	var parsed binfilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("archive lookup for %s %s: bad response: %w", name, version, err)
	}

	return c.refsFromBinfiles(parsed, arch), nil
}

func (c *SnapshotClient) refsFromBinfiles(parsed binfilesResponse, arch string) []types.ArtifactRef {
	var refs []types.ArtifactRef
	for _, result := range parsed.Result {
		if result.Architecture != arch && result.Architecture != "all" {
			continue
		}
		for _, info := range parsed.FileInfo[result.Hash] {
			refs = append(refs, types.ArtifactRef{
				URL: fmt.Sprintf("%s/archive/%s/%s%s/%s",
					c.baseURL, info.ArchiveName, info.FirstSeen, info.Path, info.Name),
				Hash:     result.Hash,
				Size:     info.Size,
				Archive:  info.ArchiveName,
				Filename: info.Name,
			})
		}
	}
	return refs
}

// Fetch downloads the artifact into destDir, reusing a previous download of
// the same filename if one is already there.
func (c *SnapshotClient) Fetch(ctx context.Context, ref types.ArtifactRef, destDir string) (string, error) {
	if ref.Filename == "" {
		return "", fmt.Errorf("artifact reference has no filename")
	}
	dest := filepath.Join(destDir, ref.Filename)

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build fetch request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch of %s failed: %w", ref.Filename, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch of %s: unexpected status %s", ref.Filename, resp.Status)
	}

	// Download to a temp name first so a partial file never looks complete.
	tmp, err := os.CreateTemp(destDir, ref.Filename+".part-*")
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("fetch of %s interrupted: %w", ref.Filename, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finalize download: %w", err)
	}
	return dest, nil
}
