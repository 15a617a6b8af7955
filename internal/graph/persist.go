package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	graphFile    = "graph.json"
	metadataFile = "metadata.json"
)

// snapshot is the on-disk form of the whole graph. The structure is dumped in
// full on every mutation; incremental persistence is not worth the complexity
// at single-user scale.
type snapshot struct {
	Nodes []*Entity   `json:"nodes"`
	Edges []*Relation `json:"edges"`
}

func (g *Graph) ensureDir() error {
	return os.MkdirAll(g.dir, 0750)
}

// load restores the graph and metadata sidecar from disk. Any failure leaves
// the graph empty: persisted state is a cache of conversations already had,
// not a source of truth worth crashing over.
func (g *Graph) load() {
	data, err := os.ReadFile(filepath.Join(g.dir, graphFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			g.log.Warn().Str("dir", g.dir).Err(err).Msg("failed to read graph snapshot, starting empty")
		}
	} else {
		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			g.log.Warn().Str("dir", g.dir).Err(err).Msg("corrupt graph snapshot, starting empty")
		} else {
			for _, e := range snap.Nodes {
				if e.Properties == nil {
					e.Properties = make(map[string]any)
				}
				g.nodes[e.ID] = e
			}
			for _, rel := range snap.Edges {
				g.out[rel.Source] = append(g.out[rel.Source], rel)
				g.in[rel.Target] = append(g.in[rel.Target], rel)
				g.edges++
			}
			g.log.Info().Int("nodes", len(g.nodes)).Int("edges", g.edges).Msg("loaded graph snapshot")
		}
	}

	metaData, err := os.ReadFile(filepath.Join(g.dir, metadataFile))
	if err != nil {
		return
	}
	if err := json.Unmarshal(metaData, &g.meta); err != nil {
		g.log.Warn().Str("dir", g.dir).Err(err).Msg("corrupt graph metadata, resetting")
		g.meta = make(map[string]*TypeMeta)
	}
}

// save writes the full snapshot and the metadata sidecar. Callers must hold
// g.mu. Writes go through a temp file and rename so a crash mid-write never
// leaves a truncated snapshot behind.
func (g *Graph) save() error {
	snap := snapshot{
		Nodes: make([]*Entity, 0, len(g.nodes)),
		Edges: make([]*Relation, 0, g.edges),
	}
	for _, e := range g.nodes {
		snap.Nodes = append(snap.Nodes, e)
	}
	for _, rels := range g.out {
		snap.Edges = append(snap.Edges, rels...)
	}

	if err := writeJSONAtomic(filepath.Join(g.dir, graphFile), snap); err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	if err := writeJSONAtomic(filepath.Join(g.dir, metadataFile), g.meta); err != nil {
		return fmt.Errorf("failed to save graph metadata: %w", err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
