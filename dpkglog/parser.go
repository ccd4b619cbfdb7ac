package dpkglog

import (
	"bufio"
	"container/heap"
	"fmt"
	"strings"
	"time"

	"github.com/pkgtools/aptrewind/types"
)

// Result is the parsed, merged event stream plus accumulated diagnostics.
type Result struct {
	Events   []types.PackageEvent
	Warnings []types.ParseWarning
}

// Parse reads every source, parses it with its declared grammar and merges
// the per-source streams into one globally ascending sequence. Each source
// is expected to be chronologically ordered on its own (log files are
// append-only); overlapping time ranges across sources are handled by the
// merge, not by concatenation. Malformed lines become ParseWarnings and
// never abort the run.
func Parse(sources []Source) (*Result, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no log sources given")
	}

	result := &Result{}
	streams := make([][]types.PackageEvent, 0, len(sources))

	for _, src := range sources {
		events, warnings, err := parseSource(src)
		if err != nil {
			return nil, err
		}
		result.Warnings = append(result.Warnings, warnings...)
		if len(events) > 0 {
			streams = append(streams, events)
		}
	}

	result.Events = mergeStreams(streams)

	// Renumber sequences globally. Two rotated files of the same grammar
	// share a priority and both count lines from 1, so per-source sequences
	// alone don't make the ordering key unique.
	for i := range result.Events {
		result.Events[i].Sequence = int64(i + 1)
	}
	return result, nil
}

// parseSource parses one source with its declared grammar.
func parseSource(src Source) ([]types.PackageEvent, []types.ParseWarning, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rc.Close() }()

	switch src.Grammar() {
	case GrammarDpkg:
		return scanDpkg(src, bufio.NewScanner(rc))
	case GrammarAptHistory:
		return scanAptHistory(src, bufio.NewScanner(rc))
	default:
		return nil, nil, fmt.Errorf("unknown log grammar %q for %s", src.Grammar(), src.Name())
	}
}

func scanDpkg(src Source, scanner *bufio.Scanner) ([]types.PackageEvent, []types.ParseWarning, error) {
	var events []types.PackageEvent
	var warnings []types.ParseWarning
	var seq int64
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ev, ok := parseDpkgLine(line)
		if !ok {
			warnings = append(warnings, types.ParseWarning{
				Source: src.Name(),
				Line:   lineNo,
				Text:   line,
				Reason: "line matches no known dpkg.log grammar",
			})
			continue
		}
		if ev == nil {
			continue
		}
		seq++
		ev.Sequence = seq
		ev.SourcePriority = src.Priority()
		events = append(events, *ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", src.Name(), err)
	}
	return events, warnings, nil
}

func scanAptHistory(src Source, scanner *bufio.Scanner) ([]types.PackageEvent, []types.ParseWarning, error) {
	var events []types.PackageEvent
	var warnings []types.ParseWarning
	var seq int64
	var block *historyBlock
	lineNo := 0

	flush := func(b historyBlock) {
		blockEvents, badLines := parseHistoryBlock(b)
		for _, ev := range blockEvents {
			seq++
			ev.Sequence = seq
			ev.SourcePriority = src.Priority()
			events = append(events, ev)
		}
		for _, bad := range badLines {
			warnings = append(warnings, types.ParseWarning{
				Source: src.Name(),
				Line:   bad,
				Text:   b.lines[bad-b.startLine],
				Reason: "line matches no known history.log grammar",
			})
		}
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if after, ok := strings.CutPrefix(line, "Start-Date: "); ok {
			if block != nil {
				flush(*block)
			}
			ts, err := time.ParseInLocation(aptTimeLayout, after, time.Local)
			if err != nil {
				warnings = append(warnings, types.ParseWarning{
					Source: src.Name(),
					Line:   lineNo,
					Text:   line,
					Reason: "unparseable Start-Date",
				})
				block = nil
				continue
			}
			block = &historyBlock{start: ts, startLine: lineNo + 1}
			continue
		}

		if line == "" {
			if block != nil {
				flush(*block)
				block = nil
			}
			continue
		}

		if block == nil {
			warnings = append(warnings, types.ParseWarning{
				Source: src.Name(),
				Line:   lineNo,
				Text:   line,
				Reason: "content outside a transaction block",
			})
			continue
		}
		block.lines = append(block.lines, line)
	}
	if block != nil {
		flush(*block)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", src.Name(), err)
	}
	return events, warnings, nil
}

// mergeStreams performs a k-way merge of per-source ascending event streams
// into one globally ascending stream. Ties on timestamp break by source
// priority, then per-source sequence, keeping replays deterministic no
// matter how many rotated logs cover the same period.
func mergeStreams(streams [][]types.PackageEvent) []types.PackageEvent {
	total := 0
	h := make(mergeHeap, 0, len(streams))
	for _, s := range streams {
		total += len(s)
		h = append(h, mergeCursor{events: s})
	}
	heap.Init(&h)

	merged := make([]types.PackageEvent, 0, total)
	for h.Len() > 0 {
		cur := h[0]
		merged = append(merged, cur.head())
		if cur.advance() {
			h[0] = cur
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}
	return merged
}

type mergeCursor struct {
	events []types.PackageEvent
	pos    int
}

func (c mergeCursor) head() types.PackageEvent { return c.events[c.pos] }

func (c *mergeCursor) advance() bool {
	c.pos++
	return c.pos < len(c.events)
}

type mergeHeap []mergeCursor

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].head().Before(h[j].head()) }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)         { *h = append(*h, x.(mergeCursor)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
