// Package vector implements the embedding-indexed side of the assistant's
// memory: conversation transcripts, extracted knowledge and personality
// entries, stored in SQLite and searched by cosine similarity.
//
// Search is brute force: load the collection, score, sort. Fine for a local
// single-user store (<10k records); swap in a real ANN index if that ever
// stops being true.
package vector

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/tnanh/mira/internal/observe"
)

// Embedder turns text into a fixed-length vector, deterministically for
// identical input. Satisfied by provider.Provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Collection names. Each is independently queryable.
const (
	CollectionConversations = "conversations"
	CollectionKnowledge     = "knowledge"
	CollectionPersonality   = "personality"
)

// Store is the SQLite-backed vector store.
type Store struct {
	mu    sync.Mutex
	db    *sql.DB
	embed Embedder
	log   *bolt.Logger
}

// New opens (or creates) the store at dbPath.
func New(dbPath string, embedder Embedder, obs *observe.Observer) (*Store, error) {
	if obs == nil {
		obs = observe.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:    db,
		embed: embedder,
		log:   obs.Log(),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	query := `CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		document TEXT,
		vector BLOB,
		metadata TEXT,
		created_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection);`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// FallbackID generates a local ID for records that could not be indexed, so
// the write pipeline never blocks on an embedding or storage failure.
func FallbackID() string {
	return fmt.Sprintf("local_%d", time.Now().UnixNano())
}

type conversationMeta struct {
	Timestamp  string `json:"timestamp"`
	UserInput  string `json:"user_input"`
	AIResponse string `json:"ai_response"`
	Type       string `json:"type"`
	Context    string `json:"context"` // JSON-serialized caller context
}

// AddConversation embeds and stores one chat turn. On failure it returns a
// locally generated fallback ID alongside the error; callers keep the ID and
// treat the error as a logged degradation, not an abort.
func (s *Store) AddConversation(ctx context.Context, userInput, aiResponse string, convCtx map[string]any) (string, error) {
	ctxJSON, err := json.Marshal(orEmpty(convCtx))
	if err != nil {
		return FallbackID(), fmt.Errorf("failed to marshal context: %w", err)
	}

	meta := conversationMeta{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserInput:  userInput,
		AIResponse: aiResponse,
		Type:       "conversation",
		Context:    string(ctxJSON),
	}
	document := fmt.Sprintf("User: %s\nAI: %s", userInput, aiResponse)

	id := uuid.NewString()
	if err := s.insert(ctx, id, CollectionConversations, document, meta); err != nil {
		return FallbackID(), err
	}
	return id, nil
}

// ConversationMatch is one scored conversation search hit.
type ConversationMatch struct {
	Document   string         `json:"document"`
	UserInput  string         `json:"user_input"`
	AIResponse string         `json:"ai_response"`
	Timestamp  string         `json:"timestamp"`
	Similarity float64        `json:"similarity"`
	Context    map[string]any `json:"context"`
}

// SearchConversations returns up to topK conversations ordered by descending
// similarity to the query. Failures degrade to an empty result.
func (s *Store) SearchConversations(ctx context.Context, query string, topK int) ([]ConversationMatch, error) {
	rows, err := s.search(ctx, CollectionConversations, query, topK)
	if err != nil {
		return nil, err
	}

	matches := make([]ConversationMatch, 0, len(rows))
	for _, r := range rows {
		var meta conversationMeta
		if err := json.Unmarshal([]byte(r.metadata), &meta); err != nil {
			continue
		}
		var convCtx map[string]any
		json.Unmarshal([]byte(meta.Context), &convCtx)

		matches = append(matches, ConversationMatch{
			Document:   r.document,
			UserInput:  meta.UserInput,
			AIResponse: meta.AIResponse,
			Timestamp:  meta.Timestamp,
			Similarity: r.similarity,
			Context:    convCtx,
		})
	}
	return matches, nil
}

type knowledgeMeta struct {
	Topic     string   `json:"topic"`
	Source    string   `json:"source"`
	Timestamp string   `json:"timestamp"`
	Tags      []string `json:"tags"`
	Type      string   `json:"type"`
}

// AddKnowledge stores one free-text knowledge item. Same fallback-ID contract
// as AddConversation.
func (s *Store) AddKnowledge(ctx context.Context, topic, content, source string, tags []string) (string, error) {
	meta := knowledgeMeta{
		Topic:     topic,
		Source:    source,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Tags:      tags,
		Type:      "knowledge",
	}

	id := uuid.NewString()
	if err := s.insert(ctx, id, CollectionKnowledge, content, meta); err != nil {
		return FallbackID(), err
	}
	return id, nil
}

// KnowledgeMatch is one scored knowledge search hit.
type KnowledgeMatch struct {
	Content    string   `json:"content"`
	Topic      string   `json:"topic"`
	Source     string   `json:"source"`
	Timestamp  string   `json:"timestamp"`
	Tags       []string `json:"tags"`
	Similarity float64  `json:"similarity"`
}

// SearchKnowledge returns up to topK knowledge items ordered by descending
// similarity.
func (s *Store) SearchKnowledge(ctx context.Context, query string, topK int) ([]KnowledgeMatch, error) {
	rows, err := s.search(ctx, CollectionKnowledge, query, topK)
	if err != nil {
		return nil, err
	}

	matches := make([]KnowledgeMatch, 0, len(rows))
	for _, r := range rows {
		var meta knowledgeMeta
		if err := json.Unmarshal([]byte(r.metadata), &meta); err != nil {
			continue
		}
		matches = append(matches, KnowledgeMatch{
			Content:    r.document,
			Topic:      meta.Topic,
			Source:     meta.Source,
			Timestamp:  meta.Timestamp,
			Tags:       meta.Tags,
			Similarity: r.similarity,
		})
	}
	return matches, nil
}

type personalityMeta struct {
	Trait      string  `json:"trait"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
	Type       string  `json:"type"`
}

// UpsertTrait stores the current value of a personality trait, keyed
// trait_<name>. Any previous row for the trait is deleted first; this store
// keeps no trait history (the graph's edge timeline does).
func (s *Store) UpsertTrait(ctx context.Context, trait, value string, confidence float64) (string, error) {
	id := "trait_" + trait

	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	s.mu.Unlock()
	if err != nil {
		return FallbackID(), fmt.Errorf("failed to delete previous trait: %w", err)
	}

	meta := personalityMeta{
		Trait:      trait,
		Confidence: confidence,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Type:       "personality",
	}
	if err := s.insert(ctx, id, CollectionPersonality, value, meta); err != nil {
		return FallbackID(), err
	}
	return id, nil
}

// TraitEntry is the stored state of one trait in the personality collection.
type TraitEntry struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

// Profile returns all stored traits, keyed by trait name.
func (s *Store) Profile(ctx context.Context) (map[string]TraitEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT document, metadata FROM records WHERE collection = ?`, CollectionPersonality)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profile := make(map[string]TraitEntry)
	for rows.Next() {
		var document, metadata string
		if err := rows.Scan(&document, &metadata); err != nil {
			continue
		}
		var meta personalityMeta
		if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
			continue
		}
		profile[meta.Trait] = TraitEntry{
			Value:      document,
			Confidence: meta.Confidence,
			Timestamp:  meta.Timestamp,
		}
	}
	return profile, rows.Err()
}

// Stats holds per-collection record counts.
type Stats struct {
	Conversations int `json:"conversations"`
	Knowledge     int `json:"knowledge_items"`
	Personality   int `json:"personality_traits"`
	Total         int `json:"total_entries"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, COUNT(*) FROM records GROUP BY collection`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var collection string
		var count int
		if err := rows.Scan(&collection, &count); err != nil {
			continue
		}
		switch collection {
		case CollectionConversations:
			stats.Conversations = count
		case CollectionKnowledge:
			stats.Knowledge = count
		case CollectionPersonality:
			stats.Personality = count
		}
		stats.Total += count
	}
	return stats, rows.Err()
}

// CleanupOlderThan deletes conversation records older than the given number
// of days and reports how many were removed. Idempotent.
func (s *Store) CleanupOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339Nano)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND created_at < ?`,
		CollectionConversations, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) insert(ctx context.Context, id, collection, document string, meta any) error {
	vec, err := s.embed.Embed(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to embed document: %w", err)
	}

	vecBuf := new(bytes.Buffer)
	if err := binary.Write(vecBuf, binary.LittleEndian, vec); err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, collection, document, vector, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, collection, document, vecBuf.Bytes(), string(metaJSON), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

type scoredRow struct {
	id         string
	document   string
	metadata   string
	similarity float64
}

func (s *Store) search(ctx context.Context, collection, query string, topK int) ([]scoredRow, error) {
	if topK <= 0 {
		return nil, nil
	}

	queryVec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, vector, metadata FROM records WHERE collection = ?`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scored []scoredRow
	for rows.Next() {
		var r scoredRow
		var vecBlob []byte
		if err := rows.Scan(&r.id, &r.document, &vecBlob, &r.metadata); err != nil {
			continue
		}

		vec := make([]float32, len(vecBlob)/4)
		if err := binary.Read(bytes.NewReader(vecBlob), binary.LittleEndian, &vec); err != nil {
			continue
		}

		r.similarity = clamp01(cosineSimilarity(queryVec, vec))
		scored = append(scored, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].similarity > scored[j].similarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
