package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tnanh/mira/internal/provider"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	dir, err := os.MkdirTemp("", "memory-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	o := New(dir, provider.NewStubProvider(), nil)
	t.Cleanup(func() { o.Close() })
	return o
}

func TestStore(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	result := o.Store(ctx, "Tôi thích lập trình với Golang", "Golang là một ngôn ngữ tuyệt vời cho backend.", map[string]any{"provider": "stub"})

	if !result.Processed {
		t.Error("Expected the turn to be processed")
	}
	if result.ConversationID == "" {
		t.Error("Expected a conversation ID")
	}
	if strings.HasPrefix(result.ConversationID, "local_") {
		t.Errorf("Expected a real ID with a healthy store, got %q", result.ConversationID)
	}

	t.Run("ConversationIndexed", func(t *testing.T) {
		bundle := o.Retrieve(ctx, "Tôi thích lập trình với Golang", 5)
		if len(bundle.SimilarConversations) != 1 {
			t.Fatalf("Expected 1 stored conversation, got %d", len(bundle.SimilarConversations))
		}
		if sim := bundle.SimilarConversations[0].Similarity; sim <= 0.5 {
			t.Errorf("Expected the original query to score high, got %f", sim)
		}
	})

	t.Run("EntitiesExtracted", func(t *testing.T) {
		bundle := o.Retrieve(ctx, "Golang", 5)
		found := false
		for _, e := range bundle.RelatedEntities {
			if e.EntityID == "entity_golang" {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected entity_golang in graph, got %+v", bundle.RelatedEntities)
		}
	})

	t.Run("TraitsLearned", func(t *testing.T) {
		bundle := o.Retrieve(ctx, "anything", 5)
		trait, ok := bundle.PersonalityInsights["interests"]
		if !ok {
			t.Fatalf("Expected 'interests' trait, got %+v", bundle.PersonalityInsights)
		}
		if trait.Value != "technology" {
			t.Errorf("Expected interests=technology, got %q", trait.Value)
		}
	})

	t.Run("KnowledgeExtracted", func(t *testing.T) {
		bundle := o.Retrieve(ctx, "Golang là một ngôn ngữ tuyệt vời cho backend", 5)
		if len(bundle.RelevantKnowledge) == 0 {
			t.Fatal("Expected the factual response sentence to be stored as knowledge")
		}
		if bundle.RelevantKnowledge[0].Source != "ai_response" {
			t.Errorf("Expected source ai_response, got %q", bundle.RelevantKnowledge[0].Source)
		}
	})
}

func TestStoreTruncatesTopicByRunes(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	// 60 three-byte runes: a byte-based cut at 50 would split one in half.
	input := strings.Repeat("ế", 60)
	o.Store(ctx, input, "Chủ đề này là một ví dụ về tiếng Việt có dấu.", nil)

	bundle := o.Retrieve(ctx, "Chủ đề này là một ví dụ", 5)
	if len(bundle.RelevantKnowledge) == 0 {
		t.Fatal("Expected a stored knowledge item")
	}
	topic := bundle.RelevantKnowledge[0].Topic
	if !utf8.ValidString(topic) {
		t.Fatalf("Topic is invalid UTF-8: %q", topic)
	}
	if n := len([]rune(topic)); n != 50 {
		t.Errorf("Expected topic capped at 50 runes, got %d", n)
	}
}

func TestInsights(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	t.Run("FreshSystem", func(t *testing.T) {
		if got := o.Insights(ctx); len(got) != 0 {
			t.Errorf("Expected no insights on an empty system, got %v", got)
		}
	})

	// One turn whose response carries 21 factual sentences about 21 distinct
	// places: pushes knowledge items past 10 and graph entities past 20.
	names := []string{
		"Hanoi", "Saigon", "Danang", "Hue", "Dalat", "Vinh", "Cantho",
		"Haiphong", "Nhatrang", "Vungtau", "Pleiku", "Buonma", "Quynhon",
		"Thanhhoa", "Namdinh", "Thaibinh", "Halong", "Sapa", "Ninhbinh",
		"Dongha", "Camau",
	}
	var sentences []string
	for _, name := range names {
		sentences = append(sentences, name+" là một thành phố nổi tiếng của đất nước.")
	}
	o.Store(ctx, "kể tên các thành phố", strings.Join(sentences, " "), nil)

	t.Run("Thresholds", func(t *testing.T) {
		insights := o.Insights(ctx)

		var knowledgeLine, graphLine bool
		for _, line := range insights {
			if strings.Contains(line, "knowledge items") {
				knowledgeLine = true
			}
			if strings.Contains(line, "Knowledge graph holds") {
				graphLine = true
			}
		}
		if !knowledgeLine {
			t.Errorf("Expected a knowledge-count insight, got %v", insights)
		}
		if !graphLine {
			t.Errorf("Expected a graph-size insight, got %v", insights)
		}
	})
}

func TestStoreHonorsSettings(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	off := false
	if err := o.UpdateSettings(SettingsPatch{
		AutoExtractEntities:        &off,
		PersonalityLearningEnabled: &off,
		KnowledgeExtractionEnabled: &off,
	}); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}

	o.Store(ctx, "Tôi thích lập trình với Golang", "Golang là một ngôn ngữ tuyệt vời cho backend.", nil)

	bundle := o.Retrieve(ctx, "Golang", 5)
	if len(bundle.RelatedEntities) != 0 {
		t.Errorf("Expected no entities with extraction disabled, got %+v", bundle.RelatedEntities)
	}
	if len(bundle.PersonalityInsights) != 0 {
		t.Errorf("Expected no traits with learning disabled, got %+v", bundle.PersonalityInsights)
	}
	if len(bundle.RelevantKnowledge) != 0 {
		t.Errorf("Expected no knowledge with extraction disabled, got %+v", bundle.RelevantKnowledge)
	}
	if len(bundle.SimilarConversations) != 1 {
		t.Error("Conversation indexing is not gated by any setting")
	}
}

func TestRetrieveOrdering(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	o.Store(ctx, "AI là gì?", "AI là trí tuệ nhân tạo, một lĩnh vực của khoa học máy tính.", nil)
	o.Store(ctx, "Xin chào", "Chào bạn, mình giúp gì được?", nil)

	bundle := o.Retrieve(ctx, "AI", 5)
	if len(bundle.SimilarConversations) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(bundle.SimilarConversations))
	}
	if bundle.SimilarConversations[0].UserInput != "AI là gì?" {
		t.Errorf("Expected the AI turn first, got %q", bundle.SimilarConversations[0].UserInput)
	}
	if bundle.SimilarConversations[0].Similarity <= bundle.SimilarConversations[1].Similarity {
		t.Error("Expected strictly decreasing similarity")
	}
}

func TestDegradedSubsystems(t *testing.T) {
	dir, err := os.MkdirTemp("", "memory-degraded-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	// Plain files where the graph directories belong make both graph
	// constructors fail, leaving those subsystems nil.
	for _, name := range []string{"knowledge_graph", "personality_graph"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("in the way"), 0600); err != nil {
			t.Fatalf("Failed to plant blocker: %v", err)
		}
	}

	o := New(dir, provider.NewStubProvider(), nil)
	defer o.Close()

	ctx := context.Background()
	result := o.Store(ctx, "Tôi thích lập trình", "Lập trình là một kỹ năng hữu ích.", nil)
	if !result.Processed {
		t.Error("Expected processing to survive missing graphs")
	}
	if strings.HasPrefix(result.ConversationID, "local_") {
		t.Error("Vector store is healthy, expected a real ID")
	}

	bundle := o.Retrieve(ctx, "Tôi thích lập trình", 5)
	if len(bundle.SimilarConversations) != 1 {
		t.Errorf("Expected the conversation to still be searchable, got %d", len(bundle.SimilarConversations))
	}
	if len(bundle.RelatedEntities) != 0 || len(bundle.PersonalityInsights) != 0 {
		t.Error("Expected empty graph sections when graphs are absent")
	}
}

func TestAllSubsystemsDown(t *testing.T) {
	dir, err := os.MkdirTemp("", "memory-down-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	for _, name := range []string{"vector_db", "knowledge_graph", "personality_graph"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("in the way"), 0600); err != nil {
			t.Fatalf("Failed to plant blocker: %v", err)
		}
	}

	o := New(dir, provider.NewStubProvider(), nil)
	defer o.Close()

	ctx := context.Background()
	result := o.Store(ctx, "hello", "hi", nil)
	if !result.Processed {
		t.Error("Store must not fail even with every subsystem down")
	}
	if !strings.HasPrefix(result.ConversationID, "local_") {
		t.Errorf("Expected a local_ fallback ID, got %q", result.ConversationID)
	}

	bundle := o.Retrieve(ctx, "hello", 5)
	if len(bundle.SimilarConversations) != 0 || len(bundle.RelevantKnowledge) != 0 {
		t.Error("Expected empty bundle slices")
	}
	if bundle.SimilarConversations == nil || bundle.PersonalityInsights == nil {
		t.Error("Bundle fields must be initialized, not nil")
	}

	if n, err := o.Cleanup(ctx, 30); err != nil || n != 0 {
		t.Errorf("Expected no-op cleanup, got %d, %v", n, err)
	}
}

func TestSmartContext(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	// The chat framing in the stored document dilutes similarity, so relax
	// the cutoff to make the stored turn pass it.
	threshold := 0.5
	if err := o.UpdateSettings(SettingsPatch{VectorSimilarityThreshold: &threshold}); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}

	o.Store(ctx, "Kể về Hà Nội đi", "Hà Nội là thủ đô của Việt Nam, nổi tiếng với phố cổ.", nil)
	// A short turn so a communication_style trait exists.
	o.Store(ctx, "cảm ơn", "Không có gì!", nil)

	t.Run("IncludesRelevantTurn", func(t *testing.T) {
		got := o.SmartContext(ctx, "Kể về Hà Nội đi")
		if !strings.Contains(got, "Previous relevant conversations:") {
			t.Fatalf("Expected conversation section, got:\n%s", got)
		}
		if !strings.Contains(got, "User asked: Kể về Hà Nội đi") {
			t.Errorf("Expected the stored turn, got:\n%s", got)
		}
	})

	t.Run("ThresholdFiltersUnrelated", func(t *testing.T) {
		got := o.SmartContext(ctx, "zzz qqq")
		if strings.Contains(got, "Previous relevant conversations:") {
			t.Errorf("Expected no conversation section for unrelated query, got:\n%s", got)
		}
	})

	t.Run("IncludesPersonality", func(t *testing.T) {
		got := o.SmartContext(ctx, "Kể về Hà Nội đi")
		if !strings.Contains(got, "User personality insights:") {
			t.Errorf("Expected personality section, got:\n%s", got)
		}
	})
}

func TestAnalyzePatterns(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	o.Store(ctx, "I have a work meeting about the project", "Noted, work it is.", nil)

	report := o.AnalyzePatterns(ctx, 7)
	if report.AnalysisPeriodDays != 7 {
		t.Errorf("Expected period 7, got %d", report.AnalysisPeriodDays)
	}
	if len(report.TopicFrequency) != len(patternTopics) {
		t.Errorf("Expected %d topic probes, got %d", len(patternTopics), len(report.TopicFrequency))
	}
	if report.TopicFrequency["work"].AvgSimilarity <= 0 {
		t.Error("Expected a positive similarity for the work probe")
	}
	if report.TraitCount == 0 {
		t.Error("Expected learned traits in the report")
	}
}

func TestStats(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	o.Store(ctx, "Tôi thích lập trình với Golang", "Golang là một ngôn ngữ tuyệt vời.", nil)

	stats := o.Stats(ctx)
	if stats.Vector.Conversations != 1 {
		t.Errorf("Expected 1 conversation, got %d", stats.Vector.Conversations)
	}
	if stats.Knowledge.Nodes == 0 {
		t.Error("Expected knowledge graph entities")
	}
	if stats.Personality.Nodes == 0 {
		t.Error("Expected personality graph nodes")
	}
	if stats.Settings.MaxContextConversations != 5 {
		t.Errorf("Expected default settings echoed, got %+v", stats.Settings)
	}
}
