package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Settings is the process-wide memory configuration, persisted as JSON next
// to the stores and reloaded at construction.
type Settings struct {
	VectorSimilarityThreshold  float64 `json:"vector_similarity_threshold"`
	MaxContextConversations    int     `json:"max_context_conversations"`
	AutoExtractEntities        bool    `json:"auto_extract_entities"`
	PersonalityLearningEnabled bool    `json:"personality_learning_enabled"`
	KnowledgeExtractionEnabled bool    `json:"knowledge_extraction_enabled"`
	SemanticClusteringEnabled  bool    `json:"semantic_clustering_enabled"`
}

// DefaultSettings returns the hardcoded defaults used when no settings file
// exists or the persisted one is corrupt.
func DefaultSettings() Settings {
	return Settings{
		VectorSimilarityThreshold:  0.7,
		MaxContextConversations:    5,
		AutoExtractEntities:        true,
		PersonalityLearningEnabled: true,
		KnowledgeExtractionEnabled: true,
		SemanticClusteringEnabled:  true,
	}
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	VectorSimilarityThreshold  *float64 `json:"vector_similarity_threshold,omitempty"`
	MaxContextConversations    *int     `json:"max_context_conversations,omitempty"`
	AutoExtractEntities        *bool    `json:"auto_extract_entities,omitempty"`
	PersonalityLearningEnabled *bool    `json:"personality_learning_enabled,omitempty"`
	KnowledgeExtractionEnabled *bool    `json:"knowledge_extraction_enabled,omitempty"`
	SemanticClusteringEnabled  *bool    `json:"semantic_clustering_enabled,omitempty"`
}

func (s *Settings) apply(p SettingsPatch) {
	if p.VectorSimilarityThreshold != nil {
		s.VectorSimilarityThreshold = *p.VectorSimilarityThreshold
	}
	if p.MaxContextConversations != nil {
		s.MaxContextConversations = *p.MaxContextConversations
	}
	if p.AutoExtractEntities != nil {
		s.AutoExtractEntities = *p.AutoExtractEntities
	}
	if p.PersonalityLearningEnabled != nil {
		s.PersonalityLearningEnabled = *p.PersonalityLearningEnabled
	}
	if p.KnowledgeExtractionEnabled != nil {
		s.KnowledgeExtractionEnabled = *p.KnowledgeExtractionEnabled
	}
	if p.SemanticClusteringEnabled != nil {
		s.SemanticClusteringEnabled = *p.SemanticClusteringEnabled
	}
}

// loadSettings reads persisted settings merged over the defaults. Missing or
// corrupt files fall back to the defaults.
func (o *Orchestrator) loadSettings() Settings {
	settings := DefaultSettings()

	data, err := os.ReadFile(o.settingsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			o.obs.Log().Warn().Str("path", o.settingsPath).Err(err).Msg("failed to read memory settings, using defaults")
		}
		return settings
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		o.obs.Log().Warn().Str("path", o.settingsPath).Err(err).Msg("corrupt memory settings, using defaults")
		return DefaultSettings()
	}
	return settings
}

// Settings returns the current settings.
func (o *Orchestrator) Settings() Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

// UpdateSettings applies a partial update and persists the result.
func (o *Orchestrator) UpdateSettings(patch SettingsPatch) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.settings.apply(patch)

	data, err := json.MarshalIndent(o.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(o.settingsPath, data, 0600); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	return nil
}
