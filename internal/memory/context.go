package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tnanh/mira/internal/graph"
	"github.com/tnanh/mira/internal/vector"
)

// Fixed cutoff for knowledge snippets in the smart context; unlike the
// conversation threshold this one is not configurable.
const knowledgeSimilarityCutoff = 0.6

const smartContextSnippet = 100

// SmartContext renders a prompt-ready text block from the retrieval bundle.
// Conversation snippets make the cut only above the configured similarity
// threshold, knowledge snippets above the fixed 0.6 cutoff; personality and
// entity sections appear whenever non-empty, capped at the first few items.
func (o *Orchestrator) SmartContext(ctx context.Context, userInput string) string {
	bundle := o.Retrieve(ctx, userInput, 0)
	threshold := o.Settings().VectorSimilarityThreshold

	var parts []string

	if len(bundle.SimilarConversations) > 0 {
		var lines []string
		for _, conv := range capConversations(bundle.SimilarConversations, 2) {
			if conv.Similarity > threshold {
				lines = append(lines, fmt.Sprintf("- User asked: %s", truncateRunes(conv.UserInput, smartContextSnippet)))
				lines = append(lines, fmt.Sprintf("  AI responded: %s", truncateRunes(conv.AIResponse, smartContextSnippet)))
			}
		}
		if len(lines) > 0 {
			parts = append(parts, "Previous relevant conversations:")
			parts = append(parts, lines...)
		}
	}

	if len(bundle.RelevantKnowledge) > 0 {
		var lines []string
		for _, item := range capKnowledge(bundle.RelevantKnowledge, 2) {
			if item.Similarity > knowledgeSimilarityCutoff {
				lines = append(lines, fmt.Sprintf("- %s", truncateRunes(item.Content, 150)))
			}
		}
		if len(lines) > 0 {
			parts = append(parts, "\nRelevant knowledge:")
			parts = append(parts, lines...)
		}
	}

	if len(bundle.PersonalityInsights) > 0 {
		parts = append(parts, "\nUser personality insights:")
		for _, name := range sortedTraitNames(bundle.PersonalityInsights, 3) {
			parts = append(parts, fmt.Sprintf("- %s: %s", name, bundle.PersonalityInsights[name].Value))
		}
	}

	if len(bundle.RelatedEntities) > 0 {
		parts = append(parts, "\nRelated entities:")
		entities := bundle.RelatedEntities
		if len(entities) > 3 {
			entities = entities[:3]
		}
		for _, e := range entities {
			parts = append(parts, fmt.Sprintf("- %s: %s", e.EntityID, e.Type))
		}
	}

	return strings.Join(parts, "\n")
}

// patternTopics are the fixed probes used to gauge what the user talks about.
var patternTopics = []string{
	"work", "technology", "personal", "help", "question",
	"problem", "learn", "understand",
}

// TopicStat summarizes one topic probe.
type TopicStat struct {
	Count         int     `json:"count"`
	AvgSimilarity float64 `json:"avg_similarity"`
}

// PatternReport is the analytics view over the stored conversations.
type PatternReport struct {
	AnalysisPeriodDays int                  `json:"analysis_period_days"`
	TopicFrequency     map[string]TopicStat `json:"topic_frequency"`
	GraphStats         graph.Stats          `json:"knowledge_graph_stats"`
	TraitCount         int                  `json:"personality_traits_count"`
	DominantTraits     []string             `json:"dominant_traits"`
	Timestamp          time.Time            `json:"analysis_timestamp"`
}

// AnalyzePatterns probes the vector store with fixed topics and merges the
// hit counts with graph and personality statistics.
func (o *Orchestrator) AnalyzePatterns(ctx context.Context, days int) PatternReport {
	report := PatternReport{
		AnalysisPeriodDays: days,
		TopicFrequency:     make(map[string]TopicStat, len(patternTopics)),
		Timestamp:          time.Now(),
	}

	if o.vectors != nil {
		for _, topic := range patternTopics {
			results, err := o.vectors.SearchConversations(ctx, topic, 20)
			if err != nil {
				o.obs.Log().Warn().Str("topic", topic).Err(err).Msg("topic probe failed")
				continue
			}

			stat := TopicStat{}
			var sum float64
			for _, r := range results {
				sum += r.Similarity
				if r.Similarity > 0.5 {
					stat.Count++
				}
			}
			if len(results) > 0 {
				stat.AvgSimilarity = sum / float64(len(results))
			}
			report.TopicFrequency[topic] = stat
		}
	}

	if o.knowledge != nil {
		report.GraphStats = o.knowledge.Stats()
	}

	if o.personality != nil {
		summary := o.personality.Summary()
		report.TraitCount = len(summary)
		report.DominantTraits = sortedTraitNames(summary, 5)
	}

	return report
}

// Insights produces short human-readable observations about the memory
// system for UI display.
func (o *Orchestrator) Insights(ctx context.Context) []string {
	var insights []string

	if o.vectors != nil {
		stats, err := o.vectors.Stats(ctx)
		if err != nil {
			o.obs.Log().Warn().Err(err).Msg("vector stats failed")
		} else {
			if stats.Conversations > 50 {
				insights = append(insights, fmt.Sprintf("Stored %d conversations so far", stats.Conversations))
			}
			if stats.Knowledge > 10 {
				insights = append(insights, fmt.Sprintf("Accumulated %d knowledge items", stats.Knowledge))
			}
		}
	}

	if o.knowledge != nil {
		stats := o.knowledge.Stats()
		if stats.Nodes > 20 {
			insights = append(insights, fmt.Sprintf("Knowledge graph holds %d entities with %d connections", stats.Nodes, stats.Edges))
		}
	}

	if o.personality != nil {
		summary := o.personality.Summary()
		if len(summary) > 3 {
			names := sortedTraitNames(summary, 3)
			insights = append(insights, fmt.Sprintf("Recognized traits: %s", strings.Join(names, ", ")))
		}
	}

	patterns := o.AnalyzePatterns(ctx, 7)
	topTopics := topTopicsByCount(patterns.TopicFrequency, 2)
	if len(topTopics) > 0 {
		insights = append(insights, fmt.Sprintf("Frequent topics: %s", strings.Join(topTopics, ", ")))
	}

	return insights
}

// SystemStats is the combined statistics view for UI display.
type SystemStats struct {
	Vector      vector.Stats `json:"vector_store"`
	Knowledge   graph.Stats  `json:"knowledge_graph"`
	Personality graph.Stats  `json:"personality_graph"`
	Settings    Settings     `json:"settings"`
}

// Stats gathers statistics from every live subsystem.
func (o *Orchestrator) Stats(ctx context.Context) SystemStats {
	stats := SystemStats{Settings: o.Settings()}

	if o.vectors != nil {
		if vs, err := o.vectors.Stats(ctx); err == nil {
			stats.Vector = vs
		}
	}
	if o.knowledge != nil {
		stats.Knowledge = o.knowledge.Stats()
	}
	if o.personality != nil {
		stats.Personality = o.personality.Stats()
	}
	return stats
}

func capConversations(convs []vector.ConversationMatch, n int) []vector.ConversationMatch {
	if len(convs) > n {
		return convs[:n]
	}
	return convs
}

func capKnowledge(items []vector.KnowledgeMatch, n int) []vector.KnowledgeMatch {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func sortedTraitNames(traits map[string]graph.Trait, n int) []string {
	names := make([]string, 0, len(traits))
	for name := range traits {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > n {
		names = names[:n]
	}
	return names
}

func topTopicsByCount(freq map[string]TopicStat, n int) []string {
	type entry struct {
		topic string
		count int
	}
	entries := make([]entry, 0, len(freq))
	for topic, stat := range freq {
		if stat.Count > 0 {
			entries = append(entries, entry{topic, stat.Count})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].topic < entries[j].topic
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	topics := make([]string, len(entries))
	for i, e := range entries {
		topics[i] = e.topic
	}
	return topics
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
