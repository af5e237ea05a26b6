package retrieval

import (
	"fmt"
	"log/slog"
	"strings"
)

// entrySeparator joins document contents inside the assembled block.
const entrySeparator = "\n\n"

// Assembler merges retrieval hits into a single size-bounded context block.
type Assembler struct {
	maxChars int
	logger   *slog.Logger
}

// NewAssembler creates an Assembler with a character budget for the
// serialized block.
func NewAssembler(maxChars int, logger *slog.Logger) (*Assembler, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("maxChars must be positive, got %d", maxChars)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{maxChars: maxChars, logger: logger}, nil
}

// Assemble deduplicates hits by ID (first occurrence wins), then joins
// their contents in order. When the serialized block would exceed the
// budget, whole entries are dropped worst-first (highest hops, then
// lowest score, then latest position) so no document is ever cut
// mid-string. An empty input produces an empty block.
func (a *Assembler) Assemble(hits []Hit) string {
	if len(hits) == 0 {
		return ""
	}

	entries := dedupeByID(hits)

	size := blockSize(entries)
	for size > a.maxChars && len(entries) > 0 {
		victim := worstEntry(entries)
		a.logger.Debug("dropping entry over context budget",
			"id", entries[victim].ID, "hops", entries[victim].Hops, "score", entries[victim].Score)
		entries = append(entries[:victim], entries[victim+1:]...)
		size = blockSize(entries)
	}
	if len(entries) == 0 {
		return ""
	}

	contents := make([]string, len(entries))
	for i, e := range entries {
		contents[i] = e.Content
	}
	return strings.Join(contents, entrySeparator)
}

// MaxChars returns the configured character budget.
func (a *Assembler) MaxChars() int {
	return a.maxChars
}

func dedupeByID(hits []Hit) []Hit {
	seen := make(map[string]struct{}, len(hits))
	entries := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if _, dup := seen[h.ID]; dup {
			continue
		}
		seen[h.ID] = struct{}{}
		entries = append(entries, h)
	}
	return entries
}

// worstEntry picks the index to drop: highest hops first, then lowest
// score, then latest position.
func worstEntry(entries []Hit) int {
	worst := 0
	for i := 1; i < len(entries); i++ {
		switch {
		case entries[i].Hops > entries[worst].Hops:
			worst = i
		case entries[i].Hops == entries[worst].Hops && entries[i].Score <= entries[worst].Score:
			worst = i
		}
	}
	return worst
}

func blockSize(entries []Hit) int {
	if len(entries) == 0 {
		return 0
	}
	size := len(entrySeparator) * (len(entries) - 1)
	for _, e := range entries {
		size += len(e.Content)
	}
	return size
}
