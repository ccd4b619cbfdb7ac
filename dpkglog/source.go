// Package dpkglog parses Debian package-manager logs into a single
// time-ordered stream of package events.
package dpkglog

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Grammar selects which log format a source is parsed with.
type Grammar string

const (
	// GrammarDpkg is the native dpkg.log status-change format.
	GrammarDpkg Grammar = "dpkg"
	// GrammarAptHistory is the apt history.log transaction format.
	GrammarAptHistory Grammar = "apt-history"
)

// Source priorities for the same-timestamp tie-break. The dpkg status log
// is the lower-level, authoritative record and always orders first.
const (
	priorityDpkg       = 0
	priorityAptHistory = 1
)

// Source supplies raw log content for one log file or stream.
type Source interface {
	Name() string
	Grammar() Grammar
	Priority() int
	Open() (io.ReadCloser, error)
}

// FileSource reads a log file from disk, transparently decompressing
// rotated .gz files.
type FileSource struct {
	Path        string
	FileGrammar Grammar
}

func (f FileSource) Name() string     { return f.Path }
func (f FileSource) Grammar() Grammar { return f.FileGrammar }

func (f FileSource) Priority() int {
	if f.FileGrammar == GrammarAptHistory {
		return priorityAptHistory
	}
	return priorityDpkg
}

func (f FileSource) Open() (io.ReadCloser, error) {
	file, err := os.Open(f.Path) // #nosec G304 -- log paths come from config
	if err != nil {
		return nil, fmt.Errorf("failed to open log source: %w", err)
	}
	if !strings.HasSuffix(f.Path, ".gz") {
		return file, nil
	}
	gz, err := gzip.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open compressed log source: %w", err)
	}
	return &gzipReadCloser{gz: gz, file: file}, nil
}

type gzipReadCloser struct {
	gz   *gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	if err := g.gz.Close(); err != nil {
		_ = g.file.Close()
		return err
	}
	return g.file.Close()
}

// ReaderSource wraps an in-memory reader, used by tests and callers that
// already hold log content.
type ReaderSource struct {
	SourceName    string
	SourceGrammar Grammar
	Content       string
}

func (r ReaderSource) Name() string     { return r.SourceName }
func (r ReaderSource) Grammar() Grammar { return r.SourceGrammar }

func (r ReaderSource) Priority() int {
	if r.SourceGrammar == GrammarAptHistory {
		return priorityAptHistory
	}
	return priorityDpkg
}

func (r ReaderSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(r.Content)), nil
}

// DiscoverSources finds all dpkg and apt history logs under logDir,
// including rotated and gzip-compressed generations.
func DiscoverSources(logDir string) ([]Source, error) {
	var sources []Source

	dpkgLogs, err := filepath.Glob(filepath.Join(logDir, "dpkg.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob dpkg logs: %w", err)
	}
	for _, path := range dpkgLogs {
		sources = append(sources, FileSource{Path: path, FileGrammar: GrammarDpkg})
	}

	aptLogs, err := filepath.Glob(filepath.Join(logDir, "apt", "history.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob apt history logs: %w", err)
	}
	for _, path := range aptLogs {
		sources = append(sources, FileSource{Path: path, FileGrammar: GrammarAptHistory})
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Name() < sources[j].Name() })

	if len(sources) == 0 {
		return nil, fmt.Errorf("no package logs found under %s", logDir)
	}
	return sources, nil
}
