package graph

import (
	"fmt"
	"time"

	"github.com/tnanh/mira/internal/observe"
)

const (
	// UserProfileID is the singleton entity every trait hangs off.
	UserProfileID = "user_profile"

	typeUser             = "user"
	typePersonalityTrait = "personality_trait"
	relationHasTrait     = "has_trait"
)

// Personality is a knowledge graph specialized for what the assistant learns
// about its user. Each trait lives in a single node keyed trait_<name>, so a
// newer observation overwrites the current value, but every observation adds
// a fresh has_trait edge and the timeline survives in the edge history.
type Personality struct {
	*Graph
}

// NewPersonality opens a personality graph rooted at dir.
func NewPersonality(dir string, obs *observe.Observer) (*Personality, error) {
	g, err := New(dir, obs)
	if err != nil {
		return nil, err
	}
	return &Personality{Graph: g}, nil
}

// TraitID returns the deterministic node ID for a trait name.
func TraitID(name string) string {
	return "trait_" + name
}

// AddTrait records an observation of a user trait. The trait node is
// upserted; the user_profile entity is created if missing; a new has_trait
// edge is appended every call.
func (p *Personality) AddTrait(name, value string, confidence float64, context string) error {
	traitID := TraitID(name)

	if err := p.AddEntity(traitID, typePersonalityTrait, map[string]any{
		"trait_name": name,
		"value":      value,
		"confidence": confidence,
		"context":    context,
	}); err != nil {
		return fmt.Errorf("failed to store trait %s: %w", name, err)
	}

	if err := p.AddEntity(UserProfileID, typeUser, nil); err != nil {
		return fmt.Errorf("failed to ensure user profile: %w", err)
	}

	if err := p.AddRelationship(UserProfileID, traitID, relationHasTrait, map[string]any{
		"confidence":    confidence,
		"discovered_at": time.Now().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("failed to link trait %s: %w", name, err)
	}

	return nil
}

// Trait is the current value of one personality trait.
type Trait struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

// Summary returns the latest value of every observed trait, keyed by trait
// name.
func (p *Personality) Summary() map[string]Trait {
	summary := make(map[string]Trait)
	for _, e := range p.EntitiesOfType(typePersonalityTrait) {
		name, _ := e.Properties["trait_name"].(string)
		if name == "" {
			continue
		}
		value, _ := e.Properties["value"].(string)
		context, _ := e.Properties["context"].(string)
		confidence := 1.0
		if c, ok := e.Properties["confidence"].(float64); ok {
			confidence = c
		}
		summary[name] = Trait{Value: value, Confidence: confidence, Context: context}
	}
	return summary
}
