package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tnanh/mira/internal/graph"
	"github.com/tnanh/mira/internal/vector"
)

const snapshotDir = "snapshots"

// Snapshot is a diagnostics export of the whole memory system.
type Snapshot struct {
	ExportTimestamp    time.Time              `json:"export_timestamp"`
	VectorStats        vector.Stats           `json:"vector_db_stats"`
	GraphStats         graph.Stats            `json:"knowledge_graph_stats"`
	PersonalitySummary map[string]graph.Trait `json:"personality_summary"`
	Settings           Settings               `json:"memory_settings"`
	Patterns           PatternReport          `json:"conversation_patterns"`
}

// ExportSnapshot writes a snapshot to path and returns the path actually
// written. An empty path picks a timestamped file under the data directory.
func (o *Orchestrator) ExportSnapshot(ctx context.Context, path string) (string, error) {
	if path == "" {
		stamp := time.Now().Format("20060102_150405")
		path = filepath.Join(o.dataDir, snapshotDir, fmt.Sprintf("memory_snapshot_%s.json", stamp))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	snap := Snapshot{
		ExportTimestamp:    time.Now(),
		PersonalitySummary: map[string]graph.Trait{},
		Settings:           o.Settings(),
		Patterns:           o.AnalyzePatterns(ctx, 30),
	}
	if o.vectors != nil {
		if vs, err := o.vectors.Stats(ctx); err == nil {
			snap.VectorStats = vs
		}
	}
	if o.knowledge != nil {
		snap.GraphStats = o.knowledge.Stats()
	}
	if o.personality != nil {
		snap.PersonalitySummary = o.personality.Summary()
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	o.obs.Log().Info().Str("path", path).Msg("memory snapshot exported")
	return path, nil
}

// ListSnapshots returns the paths of all exported snapshots under the data
// directory, newest-named last.
func (o *Orchestrator) ListSnapshots() ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(o.dataDir), snapshotDir+"/**/*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = filepath.Join(o.dataDir, m)
	}
	sort.Strings(paths)
	return paths, nil
}
