package archive

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgtools/aptrewind/types"
)

const binfilesBody = `{
  "package": "htop",
  "version": "3.2.1-1",
  "result": [
    {"hash": "abc123", "architecture": "amd64"},
    {"hash": "def456", "architecture": "arm64"}
  ],
  "fileinfo": {
    "abc123": [
      {"name": "htop_3.2.1-1_amd64.deb", "archive_name": "debian", "path": "/pool/main/h/htop", "first_seen": "20240301T000000Z", "size": 342},
      {"name": "htop_3.2.1-1_amd64.deb", "archive_name": "debian-debug", "path": "/pool/main/h/htop", "first_seen": "20240302T000000Z", "size": 342}
    ],
    "def456": [
      {"name": "htop_3.2.1-1_arm64.deb", "archive_name": "debian", "path": "/pool/main/h/htop", "first_seen": "20240301T000000Z", "size": 339}
    ]
  }
}`

func TestSnapshotClient_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mr/package/htop/3.2.1-1/binfiles", r.URL.Path)
		assert.Equal(t, "fileinfo=1", r.URL.RawQuery)
		fmt.Fprint(w, binfilesBody)
	}))
	defer server.Close()

	client := NewSnapshotClient(server.URL)
	refs, err := client.Lookup(context.Background(), "htop", "3.2.1-1", "amd64")
	require.NoError(t, err)

	// Both mirrors of the amd64 build, nothing from the arm64 one
	require.Len(t, refs, 2)
	assert.Equal(t, "htop_3.2.1-1_amd64.deb", refs[0].Filename)
	assert.Equal(t, "abc123", refs[0].Hash)
	assert.Equal(t,
		server.URL+"/archive/debian/20240301T000000Z/pool/main/h/htop/htop_3.2.1-1_amd64.deb",
		refs[0].URL)
}

func TestSnapshotClient_LookupUnknownVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	refs, err := NewSnapshotClient(server.URL).Lookup(context.Background(), "ghost", "0.0.1", "amd64")
	require.NoError(t, err) // pruned snapshots are expected, not exceptional
	assert.Empty(t, refs)
}

func TestSnapshotClient_LookupServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewSnapshotClient(server.URL).Lookup(context.Background(), "htop", "3.2.1-1", "amd64")
	assert.Error(t, err)
}

func TestSnapshotClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "deb-bytes")
	}))
	defer server.Close()

	client := NewSnapshotClient(server.URL)
	dir := t.TempDir()

	ref := refFor(server.URL, "htop_3.2.1-1_amd64.deb")
	path, err := client.Fetch(context.Background(), ref, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "htop_3.2.1-1_amd64.deb"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "deb-bytes", string(content))

	// No leftover partial files
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSnapshotClient_FetchReusesExistingDownload(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, "deb-bytes")
	}))
	defer server.Close()

	client := NewSnapshotClient(server.URL)
	dir := t.TempDir()
	ref := refFor(server.URL, "htop_3.2.1-1_amd64.deb")

	_, err := client.Fetch(context.Background(), ref, dir)
	require.NoError(t, err)
	_, err = client.Fetch(context.Background(), ref, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func refFor(baseURL, filename string) types.ArtifactRef {
	return types.ArtifactRef{
		URL:      baseURL + "/archive/debian/20240301T000000Z/pool/main/h/htop/" + filename,
		Filename: filename,
	}
}
