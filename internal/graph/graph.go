// Package graph implements the knowledge graph behind the assistant's
// long-term memory: typed entities connected by typed, directed relations.
// Parallel edges between the same pair are kept, so repeated co-occurrence
// accumulates history instead of overwriting it.
package graph

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/tnanh/mira/internal/observe"
)

// Entity is a node in the knowledge graph: a person, place, date, trait or
// the user themselves. Identity is the ID; Type changes only on explicit
// re-add.
type Entity struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Relation is a directed, typed edge. Multiple relations may exist between
// the same pair of entities.
type Relation struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Weight     float64        `json:"weight"`
	CreatedAt  time.Time      `json:"created_at"`
}

// RelationView is a Relation tagged with its direction relative to the
// entity it was queried from.
type RelationView struct {
	Direction string `json:"direction"` // "outgoing" or "incoming"
	Relation
}

// TypeMeta tracks per-entity-type diagnostics, persisted as a JSON sidecar.
type TypeMeta struct {
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
}

const maxTypeExamples = 10

// Graph is an in-memory multi-edge directed graph with synchronous snapshot
// persistence. Every mutating call serializes the full structure before
// returning; write latency scales with graph size, which is acceptable for a
// single-user interactive tool.
type Graph struct {
	mu  sync.Mutex
	dir string
	log *bolt.Logger

	nodes map[string]*Entity
	out   map[string][]*Relation
	in    map[string][]*Relation
	edges int
	meta  map[string]*TypeMeta
}

// New opens (or creates) a graph rooted at dir. Corrupt or missing snapshot
// files are not fatal: the graph starts empty and logs a warning.
func New(dir string, obs *observe.Observer) (*Graph, error) {
	if obs == nil {
		obs = observe.Discard()
	}
	g := &Graph{
		dir:   dir,
		log:   obs.Log(),
		nodes: make(map[string]*Entity),
		out:   make(map[string][]*Relation),
		in:    make(map[string][]*Relation),
		meta:  make(map[string]*TypeMeta),
	}
	if err := g.ensureDir(); err != nil {
		return nil, fmt.Errorf("failed to create graph directory: %w", err)
	}
	g.load()
	return g, nil
}

// AddEntity inserts or updates an entity. Re-adding an existing ID merges the
// given properties over the stored ones, replaces the type, and bumps
// UpdatedAt; the node is never duplicated.
func (g *Graph) AddEntity(id, entityType string, properties map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.addEntityLocked(id, entityType, properties)
	return g.save()
}

func (g *Graph) addEntityLocked(id, entityType string, properties map[string]any) {
	now := time.Now()

	e, ok := g.nodes[id]
	if !ok {
		e = &Entity{
			ID:         id,
			Type:       entityType,
			Properties: make(map[string]any),
			CreatedAt:  now,
		}
		g.nodes[id] = e
	}
	e.Type = entityType
	e.UpdatedAt = now
	for k, v := range properties {
		e.Properties[k] = v
	}

	m, ok := g.meta[entityType]
	if !ok {
		m = &TypeMeta{}
		g.meta[entityType] = m
	}
	// Count tracks add calls per type, not live entities; re-adding an
	// entity bumps it again.
	m.Count++
	if !containsString(m.Examples, id) {
		m.Examples = append(m.Examples, id)
		if len(m.Examples) > maxTypeExamples {
			m.Examples = m.Examples[len(m.Examples)-maxTypeExamples:]
		}
	}
}

// AddRelationship adds a directed edge. Missing endpoints are auto-created as
// type "unknown". Each call appends a new edge even if an identical one
// already exists.
func (g *Graph) AddRelationship(source, target, relationType string, properties map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[source]; !ok {
		g.addEntityLocked(source, "unknown", nil)
	}
	if _, ok := g.nodes[target]; !ok {
		g.addEntityLocked(target, "unknown", nil)
	}

	rel := &Relation{
		Source:     source,
		Target:     target,
		Type:       relationType,
		Properties: properties,
		Weight:     1.0,
		CreatedAt:  time.Now(),
	}
	g.out[source] = append(g.out[source], rel)
	g.in[target] = append(g.in[target], rel)
	g.edges++

	return g.save()
}

// GetEntity returns a copy of the entity, or false if it does not exist.
func (g *Graph) GetEntity(id string) (Entity, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.nodes[id]
	if !ok {
		return Entity{}, false
	}
	return copyEntity(e), true
}

// Relationships returns all edges touching the entity, in both directions.
func (g *Graph) Relationships(id string) []RelationView {
	g.mu.Lock()
	defer g.mu.Unlock()

	var views []RelationView
	for _, rel := range g.out[id] {
		views = append(views, RelationView{Direction: "outgoing", Relation: *rel})
	}
	for _, rel := range g.in[id] {
		views = append(views, RelationView{Direction: "incoming", Relation: *rel})
	}
	return views
}

const maxPaths = 10

// FindPath returns up to 10 simple directed paths from source to target with
// at most maxHops edges.
func (g *Graph) FindPath(source, target string, maxHops int) [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[source]; !ok {
		return nil
	}
	if _, ok := g.nodes[target]; !ok {
		return nil
	}

	var paths [][]string
	onPath := map[string]bool{source: true}

	var walk func(node string, path []string)
	walk = func(node string, path []string) {
		if len(paths) >= maxPaths {
			return
		}
		if node == target {
			paths = append(paths, append([]string(nil), path...))
			return
		}
		if len(path)-1 >= maxHops {
			return
		}
		for _, next := range g.successorsLocked(node) {
			if onPath[next] {
				continue
			}
			onPath[next] = true
			walk(next, append(path, next))
			onPath[next] = false
		}
	}
	walk(source, []string{source})

	return paths
}

// Neighborhood holds entity IDs reachable in one hop (direct) and in two or
// more hops (indirect).
type Neighborhood struct {
	Direct   []string `json:"direct"`
	Indirect []string `json:"indirect"`
}

// Neighbors walks the graph ignoring edge direction and returns IDs within
// the given number of hops.
func (g *Graph) Neighbors(id string, hops int) Neighborhood {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := Neighborhood{Direct: []string{}, Indirect: []string{}}
	if _, ok := g.nodes[id]; !ok {
		return n
	}

	visited := map[string]bool{id: true}
	level := []string{id}

	for hop := 0; hop < hops; hop++ {
		var next []string
		for _, node := range level {
			for _, nb := range g.undirectedNeighborsLocked(node) {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				next = append(next, nb)
			}
		}
		sort.Strings(next)
		if hop == 0 {
			n.Direct = append(n.Direct, next...)
		} else {
			n.Indirect = append(n.Indirect, next...)
		}
		level = next
	}

	return n
}

// SearchResult is a scored entity match.
type SearchResult struct {
	EntityID   string         `json:"entity_id"`
	Type       string         `json:"type"`
	Score      int            `json:"score"`
	Properties map[string]any `json:"properties,omitempty"`
}

const maxSearchResults = 20

// Search ranks entities by case-insensitive substring match: +2 when the
// query matches the ID, +1 per matching string property value (the type tag
// counts as a property). entityType, when non-empty, filters results.
// Entities with no match at all are never returned.
func (g *Graph) Search(query, entityType string) []SearchResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	queryLower := strings.ToLower(query)

	var results []SearchResult
	for id, e := range g.nodes {
		if entityType != "" && e.Type != entityType {
			continue
		}

		score := 0
		if strings.Contains(strings.ToLower(id), queryLower) {
			score += 2
		}
		if strings.Contains(strings.ToLower(e.Type), queryLower) {
			score++
		}
		for _, v := range e.Properties {
			if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), queryLower) {
				score++
			}
		}

		if score > 0 {
			results = append(results, SearchResult{
				EntityID:   id,
				Type:       e.Type,
				Score:      score,
				Properties: copyProperties(e.Properties),
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].EntityID < results[j].EntityID
	})
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	return results
}

const (
	recentContextLimit = 5
	recentContextTrunc = 200
	keyMentionCount    = "mention_count"
	keyLastMentioned   = "last_mentioned"
	keyRecentContext   = "recent_context"
)

// UpdateFromConversation records that the entity was mentioned: bumps the
// mention counter, timestamps the sighting and appends a truncated snippet to
// a rolling five-item context window. Unknown IDs are ignored.
func (g *Graph) UpdateFromConversation(id, conversation string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.nodes[id]
	if !ok {
		return nil
	}

	count, _ := e.Properties[keyMentionCount].(int)
	if count == 0 {
		// Properties round-trip through JSON, so the counter may come back
		// as a float64.
		if f, ok := e.Properties[keyMentionCount].(float64); ok {
			count = int(f)
		}
	}
	e.Properties[keyMentionCount] = count + 1
	e.Properties[keyLastMentioned] = time.Now().Format(time.RFC3339)

	// Truncate by runes, not bytes: Vietnamese text must not be cut
	// mid-character.
	snippet := conversation
	if r := []rune(snippet); len(r) > recentContextTrunc {
		snippet = string(r[:recentContextTrunc])
	}
	window := toContextWindow(e.Properties[keyRecentContext])
	window = append(window, map[string]any{
		"conversation": snippet,
		"timestamp":    time.Now().Format(time.RFC3339),
	})
	if len(window) > recentContextLimit {
		window = window[len(window)-recentContextLimit:]
	}
	e.Properties[keyRecentContext] = window
	e.UpdatedAt = time.Now()

	return g.save()
}

// DegreeEntry is one row of the top-entities ranking.
type DegreeEntry struct {
	Entity string `json:"entity"`
	Degree int    `json:"degree"`
}

// Stats summarizes the graph for diagnostics and the insights view.
type Stats struct {
	Nodes       int                 `json:"nodes"`
	Edges       int                 `json:"edges"`
	Density     float64             `json:"density"`
	AvgDegree   float64             `json:"avg_degree"`
	TopEntities []DegreeEntry       `json:"top_entities"`
	EntityTypes map[string]TypeMeta `json:"entity_types"`
}

// Stats returns node/edge counts, density, average degree and the five
// highest-degree entities.
func (g *Graph) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Stats{
		Nodes:       len(g.nodes),
		Edges:       g.edges,
		EntityTypes: make(map[string]TypeMeta, len(g.meta)),
	}
	for t, m := range g.meta {
		s.EntityTypes[t] = *m
	}

	if s.Nodes > 1 {
		s.Density = float64(s.Edges) / float64(s.Nodes*(s.Nodes-1))
	}

	if s.Nodes > 0 {
		total := 0
		entries := make([]DegreeEntry, 0, s.Nodes)
		for id := range g.nodes {
			d := g.degreeLocked(id)
			total += d
			entries = append(entries, DegreeEntry{Entity: id, Degree: d})
		}
		s.AvgDegree = float64(total) / float64(s.Nodes)

		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Degree != entries[j].Degree {
				return entries[i].Degree > entries[j].Degree
			}
			return entries[i].Entity < entries[j].Entity
		})
		if len(entries) > 5 {
			entries = entries[:5]
		}
		s.TopEntities = entries
	}

	return s
}

// EntitiesOfType returns copies of all entities with the given type tag.
func (g *Graph) EntitiesOfType(entityType string) []Entity {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Entity
	for _, e := range g.nodes {
		if e.Type == entityType {
			out = append(out, copyEntity(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// degreeLocked counts edges in both directions, parallel edges included.
func (g *Graph) degreeLocked(id string) int {
	return len(g.out[id]) + len(g.in[id])
}

// successorsLocked returns unique direct successors, sorted for determinism.
func (g *Graph) successorsLocked(id string) []string {
	seen := make(map[string]bool)
	var succ []string
	for _, rel := range g.out[id] {
		if !seen[rel.Target] {
			seen[rel.Target] = true
			succ = append(succ, rel.Target)
		}
	}
	sort.Strings(succ)
	return succ
}

// undirectedNeighborsLocked returns unique neighbors in either direction.
func (g *Graph) undirectedNeighborsLocked(id string) []string {
	seen := make(map[string]bool)
	var nbs []string
	for _, rel := range g.out[id] {
		if !seen[rel.Target] {
			seen[rel.Target] = true
			nbs = append(nbs, rel.Target)
		}
	}
	for _, rel := range g.in[id] {
		if !seen[rel.Source] {
			seen[rel.Source] = true
			nbs = append(nbs, rel.Source)
		}
	}
	sort.Strings(nbs)
	return nbs
}

func copyEntity(e *Entity) Entity {
	out := *e
	out.Properties = copyProperties(e.Properties)
	return out
}

func copyProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func toContextWindow(v any) []map[string]any {
	switch w := v.(type) {
	case []map[string]any:
		return w
	case []any:
		// Snapshot round-trip decodes the window as []any.
		out := make([]map[string]any, 0, len(w))
		for _, item := range w {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
