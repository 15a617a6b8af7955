package graph

import (
	"fmt"
	"sort"
)

// Importance bundles the centrality measures for one entity.
type Importance struct {
	Degree      int     `json:"degree"`
	Betweenness float64 `json:"betweenness"`
	PageRank    float64 `json:"pagerank"`
}

// Betweenness is skipped on graphs of this size or larger; it is quadratic in
// the node count and this is an interactive tool.
const betweennessNodeLimit = 1000

// Importance computes degree, betweenness and PageRank centrality for the
// entity. Unknown IDs score zero everywhere.
func (g *Graph) Importance(id string) Importance {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return Importance{}
	}

	imp := Importance{Degree: g.degreeLocked(id)}

	if len(g.nodes) < betweennessNodeLimit {
		imp.Betweenness = g.betweennessLocked()[id]
	}
	if len(g.nodes) > 1 {
		imp.PageRank = g.pageRankLocked()[id]
	}

	return imp
}

// betweennessLocked runs Brandes' algorithm over the directed graph,
// with parallel edges collapsed. Normalized by 1/((n-1)(n-2)).
func (g *Graph) betweennessLocked() map[string]float64 {
	bc := make(map[string]float64, len(g.nodes))
	n := len(g.nodes)
	if n < 3 {
		return bc
	}

	for s := range g.nodes {
		var stack []string
		pred := make(map[string][]string)
		sigma := map[string]float64{s: 1}
		dist := map[string]int{s: 0}

		queue := []string{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range g.successorsLocked(v) {
				if _, seen := dist[w]; !seen {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}

		delta := make(map[string]float64)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				bc[w] += delta[w]
			}
		}
	}

	scale := 1.0 / (float64(n-1) * float64(n-2))
	for v := range bc {
		bc[v] *= scale
	}
	return bc
}

const (
	pageRankDamping = 0.85
	pageRankMaxIter = 100
	pageRankTol     = 1e-6
)

// pageRankLocked runs the power iteration with edge weights; parallel edges
// contribute their summed weight.
func (g *Graph) pageRankLocked() map[string]float64 {
	n := len(g.nodes)
	rank := make(map[string]float64, n)
	outWeight := make(map[string]float64, n)
	for id := range g.nodes {
		rank[id] = 1.0 / float64(n)
		for _, rel := range g.out[id] {
			outWeight[id] += rel.Weight
		}
	}

	for iter := 0; iter < pageRankMaxIter; iter++ {
		next := make(map[string]float64, n)

		// Dangling nodes spread their rank uniformly.
		danglingSum := 0.0
		for id := range g.nodes {
			if outWeight[id] == 0 {
				danglingSum += rank[id]
			}
		}

		base := (1-pageRankDamping)/float64(n) + pageRankDamping*danglingSum/float64(n)
		for id := range g.nodes {
			next[id] = base
		}
		for id := range g.nodes {
			if outWeight[id] == 0 {
				continue
			}
			share := pageRankDamping * rank[id] / outWeight[id]
			for _, rel := range g.out[id] {
				next[rel.Target] += share * rel.Weight
			}
		}

		diff := 0.0
		for id := range g.nodes {
			diff += abs(next[id] - rank[id])
		}
		rank = next
		if diff < pageRankTol*float64(n) {
			break
		}
	}

	return rank
}

// Clusters returns the connected components of the undirected projection,
// ignoring isolated entities. Components are named cluster_0, cluster_1, ...
// ordered by their smallest member ID so output is stable.
func (g *Graph) Clusters() map[string][]string {
	g.mu.Lock()
	defer g.mu.Unlock()

	visited := make(map[string]bool, len(g.nodes))
	var components [][]string

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if visited[id] {
			continue
		}
		var component []string
		queue := []string{id}
		visited[id] = true
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			component = append(component, v)
			for _, nb := range g.undirectedNeighborsLocked(v) {
				if !visited[nb] {
					visited[nb] = true
					queue = append(queue, nb)
				}
			}
		}
		if len(component) > 1 {
			sort.Strings(component)
			components = append(components, component)
		}
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})

	clusters := make(map[string][]string, len(components))
	for i, c := range components {
		clusters[fmt.Sprintf("cluster_%d", i)] = c
	}
	return clusters
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
