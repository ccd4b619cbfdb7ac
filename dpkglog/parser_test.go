package dpkglog

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgtools/aptrewind/types"
)

const dpkgLogSample = `2024-03-01 10:00:00 startup archives unpack
2024-03-01 10:00:01 install htop:amd64 <none> 3.2.1-1
2024-03-01 10:00:02 status unpacked htop:amd64 3.2.1-1
2024-03-01 10:00:03 status half-configured htop:amd64 3.2.1-1
2024-03-01 10:00:04 status installed htop:amd64 3.2.1-1
2024-03-02 09:00:00 upgrade htop:amd64 3.2.1-1 3.3.0-1
2024-03-03 08:00:00 remove curl:amd64 7.88.1-10 <none>
2024-03-03 08:00:01 purge curl:amd64 7.88.1-10 <none>
this line is garbage
2024-03-04 12:00:00 upgrade zlib1g:amd64 1:1.2.13-2 1:1.2.11-1
`

func TestParse_DpkgGrammar(t *testing.T) {
	result, err := Parse([]Source{
		ReaderSource{SourceName: "dpkg.log", SourceGrammar: GrammarDpkg, Content: dpkgLogSample},
	})
	require.NoError(t, err)

	// Garbage line is a warning, not an error
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Reason, "dpkg.log grammar")

	kinds := make([]types.EventKind, 0, len(result.Events))
	for _, ev := range result.Events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []types.EventKind{
		types.EventInstall,
		types.EventConfigureHalf,
		types.EventConfigureFull,
		types.EventUpgrade,
		types.EventRemove,
		types.EventPurge,
		types.EventDowngrade, // 1:1.2.13-2 -> 1:1.2.11-1 goes backwards
	}, kinds)

	install := result.Events[0]
	assert.Equal(t, "htop", install.Package)
	assert.Equal(t, "amd64", install.Architecture)
	assert.Empty(t, install.VersionBefore)
	assert.Equal(t, "3.2.1-1", install.VersionAfter)
}

const aptHistorySample = `Start-Date: 2024-03-01  10:00:01
Commandline: apt install htop vim
Requested-By: admin (1000)
Install: htop:amd64 (3.2.1-1), vim:amd64 (2:9.0.1378-2, automatic)
End-Date: 2024-03-01  10:00:05

Start-Date: 2024-03-05  11:00:00
Upgrade: vim:amd64 (2:9.0.1378-2, 2:9.0.1400-1)
Downgrade: htop:amd64 (3.3.0-1, 3.2.1-1)
Remove: curl:amd64 (7.88.1-10)
End-Date: 2024-03-05  11:00:02
`

func TestParse_AptHistoryGrammar(t *testing.T) {
	result, err := Parse([]Source{
		ReaderSource{SourceName: "history.log", SourceGrammar: GrammarAptHistory, Content: aptHistorySample},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Events, 5)

	vim := result.Events[1]
	assert.Equal(t, types.EventInstall, vim.Kind)
	assert.Equal(t, "vim", vim.Package)
	assert.Equal(t, "2:9.0.1378-2", vim.VersionAfter)

	upgrade := result.Events[2]
	assert.Equal(t, types.EventUpgrade, upgrade.Kind)
	assert.Equal(t, "2:9.0.1378-2", upgrade.VersionBefore)
	assert.Equal(t, "2:9.0.1400-1", upgrade.VersionAfter)

	downgrade := result.Events[3]
	assert.Equal(t, types.EventDowngrade, downgrade.Kind)

	remove := result.Events[4]
	assert.Equal(t, types.EventRemove, remove.Kind)
	assert.Equal(t, "7.88.1-10", remove.VersionBefore)
}

func TestParse_MergesOverlappingSources(t *testing.T) {
	older := `2024-01-01 08:00:00 install aaa:amd64 <none> 1.0
2024-01-03 08:00:00 install ccc:amd64 <none> 1.0
`
	newer := `2024-01-02 08:00:00 install bbb:amd64 <none> 1.0
2024-01-04 08:00:00 install ddd:amd64 <none> 1.0
`
	result, err := Parse([]Source{
		ReaderSource{SourceName: "dpkg.log", SourceGrammar: GrammarDpkg, Content: newer},
		ReaderSource{SourceName: "dpkg.log.1", SourceGrammar: GrammarDpkg, Content: older},
	})
	require.NoError(t, err)

	names := make([]string, 0, len(result.Events))
	for _, ev := range result.Events {
		names = append(names, ev.Package)
	}
	// Interleaved by timestamp, not concatenated
	assert.Equal(t, []string{"aaa", "bbb", "ccc", "ddd"}, names)

	for i := 1; i < len(result.Events); i++ {
		assert.False(t, result.Events[i].Before(result.Events[i-1]), "events out of order at %d", i)
	}
}

func TestParse_SameSecondTieBreak(t *testing.T) {
	// dpkg and apt both report the operation at second resolution; the
	// dpkg status log must order first.
	dpkg := "2024-06-01 12:00:00 install foo:amd64 <none> 1.0\n"
	apt := `Start-Date: 2024-06-01  12:00:00
Install: foo:amd64 (1.0)
End-Date: 2024-06-01  12:00:00
`
	result, err := Parse([]Source{
		ReaderSource{SourceName: "history.log", SourceGrammar: GrammarAptHistory, Content: apt},
		ReaderSource{SourceName: "dpkg.log", SourceGrammar: GrammarDpkg, Content: dpkg},
	})
	require.NoError(t, err)
	require.Len(t, result.Events, 2)
	assert.Equal(t, 0, result.Events[0].SourcePriority)
	assert.Equal(t, 1, result.Events[1].SourcePriority)
}

func TestFileSource_GzipRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dpkg.log.2.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("2023-12-25 09:00:00 install tree:amd64 <none> 2.1.0-1\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	result, err := Parse([]Source{FileSource{Path: path, FileGrammar: GrammarDpkg}})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "tree", result.Events[0].Package)
	assert.Equal(t, time.Date(2023, 12, 25, 9, 0, 0, 0, time.Local), result.Events[0].Timestamp)
}

func TestDiscoverSources(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dpkg.log"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dpkg.log.1"), nil, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "apt"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apt", "history.log"), nil, 0o644))

	sources, err := DiscoverSources(dir)
	require.NoError(t, err)
	assert.Len(t, sources, 3)

	_, err = DiscoverSources(filepath.Join(dir, "empty"))
	assert.Error(t, err)
}
