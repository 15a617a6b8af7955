// Package memory is the enhanced memory system behind the assistant: it fans
// conversation turns out to a vector store, a knowledge graph and a
// personality graph on write, and fans their answers back in to a single
// ranked context bundle on read.
//
// Every subsystem call is best effort. A subsystem that failed to construct
// stays nil and is skipped; a subsystem that fails mid-operation is logged
// and skipped. The chat loop never sees a fatal memory error; worst case it
// generates a response with an empty context bundle.
package memory

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/tnanh/mira/internal/extract"
	"github.com/tnanh/mira/internal/graph"
	"github.com/tnanh/mira/internal/observe"
	"github.com/tnanh/mira/internal/vector"
)

// Orchestrator owns the lifecycle of all memory stores. No other component
// mutates them directly.
type Orchestrator struct {
	dataDir      string
	settingsPath string
	obs          *observe.Observer

	vectors     *vector.Store      // nil when construction failed
	knowledge   *graph.Graph       // nil when construction failed
	personality *graph.Personality // nil when construction failed

	mu       sync.Mutex
	settings Settings
}

// New builds the orchestrator rooted at dataDir. Subsystem construction
// failures are downgraded to warnings; the orchestrator always comes up,
// possibly with some subsystems absent.
func New(dataDir string, embedder vector.Embedder, obs *observe.Observer) *Orchestrator {
	if obs == nil {
		obs = observe.Discard()
	}

	o := &Orchestrator{
		dataDir:      dataDir,
		settingsPath: filepath.Join(dataDir, "memory_settings.json"),
		obs:          obs,
	}

	vectors, err := vector.New(filepath.Join(dataDir, "vector_db", "memory.db"), embedder, obs)
	if err != nil {
		obs.Log().Warn().Err(err).Msg("vector store unavailable, continuing without it")
	} else {
		o.vectors = vectors
	}

	knowledge, err := graph.New(filepath.Join(dataDir, "knowledge_graph"), obs)
	if err != nil {
		obs.Log().Warn().Err(err).Msg("knowledge graph unavailable, continuing without it")
	} else {
		o.knowledge = knowledge
	}

	personality, err := graph.NewPersonality(filepath.Join(dataDir, "personality_graph"), obs)
	if err != nil {
		obs.Log().Warn().Err(err).Msg("personality graph unavailable, continuing without it")
	} else {
		o.personality = personality
	}

	o.settings = o.loadSettings()
	return o
}

// Close releases the underlying stores.
func (o *Orchestrator) Close() error {
	if o.vectors != nil {
		return o.vectors.Close()
	}
	return nil
}

// StoreResult reports what happened to one stored conversation turn.
type StoreResult struct {
	ConversationID string    `json:"conversation_id"`
	Processed      bool      `json:"processed"`
	Timestamp      time.Time `json:"timestamp"`
}

// Store runs the write pipeline for one turn: vector insert, entity
// extraction, personality learning, knowledge extraction. Steps two through
// four are independently fault tolerant; none of them can abort the pipeline.
func (o *Orchestrator) Store(ctx context.Context, userInput, aiResponse string, convCtx map[string]any) StoreResult {
	ctx, span := o.obs.StartSpan(ctx, "memory.Store")
	defer span.End()

	settings := o.Settings()

	conversationID := vector.FallbackID()
	if o.vectors != nil {
		id, err := o.vectors.AddConversation(ctx, userInput, aiResponse, convCtx)
		if err != nil {
			o.obs.Log().Warn().Err(err).Msg("failed to index conversation, keeping fallback id")
		}
		conversationID = id
	}

	if settings.AutoExtractEntities && o.knowledge != nil {
		o.storeEntities(userInput, aiResponse, conversationID)
	}

	if settings.PersonalityLearningEnabled && o.personality != nil {
		o.storeTraits(ctx, userInput)
	}

	if settings.KnowledgeExtractionEnabled && o.vectors != nil {
		o.storeKnowledge(ctx, userInput, aiResponse)
	}

	return StoreResult{
		ConversationID: conversationID,
		Processed:      true,
		Timestamp:      time.Now(),
	}
}

func (o *Orchestrator) storeEntities(userInput, aiResponse, conversationID string) {
	fullText := userInput + " " + aiResponse

	for _, c := range extract.Entities(fullText) {
		err := o.knowledge.AddEntity(c.ID, c.Type, map[string]any{
			"name":         c.Name,
			"mentioned_in": conversationID,
			"context":      c.Context,
			"confidence":   c.Confidence,
		})
		if err != nil {
			o.obs.Log().Warn().Str("entity", c.ID).Err(err).Msg("failed to store entity")
			continue
		}
		if err := o.knowledge.UpdateFromConversation(c.ID, fullText); err != nil {
			o.obs.Log().Warn().Str("entity", c.ID).Err(err).Msg("failed to update entity context")
		}
	}
}

func (o *Orchestrator) storeTraits(ctx context.Context, userInput string) {
	for _, ob := range extract.TraitObservations(userInput) {
		if err := o.personality.AddTrait(ob.Trait, ob.Value, ob.Confidence, ob.Context); err != nil {
			o.obs.Log().Warn().Str("trait", ob.Trait).Err(err).Msg("failed to record trait")
			continue
		}
		if o.vectors != nil {
			if _, err := o.vectors.UpsertTrait(ctx, ob.Trait, ob.Value, ob.Confidence); err != nil {
				o.obs.Log().Warn().Str("trait", ob.Trait).Err(err).Msg("failed to index trait")
			}
		}
	}
}

const knowledgeTopicLimit = 50

func (o *Orchestrator) storeKnowledge(ctx context.Context, userInput, aiResponse string) {
	topic := truncateRunes(userInput, knowledgeTopicLimit)

	for _, sentence := range extract.KnowledgeSentences(aiResponse) {
		_, err := o.vectors.AddKnowledge(ctx, topic, sentence, "ai_response", extract.Tags(sentence))
		if err != nil {
			o.obs.Log().Warn().Err(err).Msg("failed to store knowledge item")
		}
	}
}

// EnhancedContext is the merged retrieval bundle handed to the prompt
// builder.
type EnhancedContext struct {
	SimilarConversations []vector.ConversationMatch `json:"similar_conversations"`
	RelevantKnowledge    []vector.KnowledgeMatch    `json:"relevant_knowledge"`
	RelatedEntities      []graph.SearchResult       `json:"related_entities"`
	PersonalityInsights  map[string]graph.Trait     `json:"personality_insights"`
	Query                string                     `json:"query"`
	GeneratedAt          time.Time                  `json:"generated_at"`
}

// Retrieve fans the query out to all subsystems and merges the results. One
// subsystem failing degrades its own slice to empty; it never blocks the
// bundle.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, maxItems int) EnhancedContext {
	ctx, span := o.obs.StartSpan(ctx, "memory.Retrieve")
	defer span.End()

	if maxItems <= 0 {
		maxItems = o.Settings().MaxContextConversations
	}

	bundle := EnhancedContext{
		SimilarConversations: []vector.ConversationMatch{},
		RelevantKnowledge:    []vector.KnowledgeMatch{},
		RelatedEntities:      []graph.SearchResult{},
		PersonalityInsights:  map[string]graph.Trait{},
		Query:                query,
		GeneratedAt:          time.Now(),
	}

	if o.vectors != nil {
		if convs, err := o.vectors.SearchConversations(ctx, query, maxItems); err != nil {
			o.obs.Log().Warn().Err(err).Msg("conversation search failed")
		} else {
			bundle.SimilarConversations = convs
		}

		if know, err := o.vectors.SearchKnowledge(ctx, query, maxItems); err != nil {
			o.obs.Log().Warn().Err(err).Msg("knowledge search failed")
		} else {
			bundle.RelevantKnowledge = know
		}
	}

	if o.knowledge != nil {
		entities := o.knowledge.Search(query, "")
		if len(entities) > maxItems {
			entities = entities[:maxItems]
		}
		bundle.RelatedEntities = entities
	}

	if o.personality != nil {
		bundle.PersonalityInsights = o.personality.Summary()
	}

	return bundle
}

// Cleanup removes conversation records older than the given number of days.
func (o *Orchestrator) Cleanup(ctx context.Context, days int) (int, error) {
	if o.vectors == nil {
		return 0, nil
	}
	return o.vectors.CleanupOlderThan(ctx, days)
}
