package memory

import (
	"context"
	"fmt"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/sheets"
)

var _ sheets.SnapshotExporter = (*Exporter)(nil)

// Export is one stored export.
type Export struct {
	Title string
	Rows  [][]string
}

// Exporter keeps exports in process, keyed by title. Re-exporting a period
// replaces the previous content.
type Exporter struct {
	mu      sync.Mutex
	exports map[string]Export
	writes  int
}

func New() *Exporter {
	return &Exporter{exports: map[string]Export{}}
}

func (e *Exporter) ExportSnapshot(ctx context.Context, ownerID string, snap core.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title := sheets.Title(ownerID, snap)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.exports[title] = Export{Title: title, Rows: sheets.Rows(snap)}
	e.writes++
	return fmt.Sprintf("mem:%s", title), nil
}

// Get returns the export stored under title.
func (e *Exporter) Get(title string) (Export, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exp, ok := e.exports[title]
	return exp, ok
}

// Writes counts every ExportSnapshot call that stored something.
func (e *Exporter) Writes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writes
}
