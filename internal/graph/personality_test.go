package graph

import (
	"os"
	"testing"
)

func newTestPersonality(t *testing.T) *Personality {
	t.Helper()
	dir, err := os.MkdirTemp("", "personality-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	p, err := NewPersonality(dir, nil)
	if err != nil {
		t.Fatalf("Failed to create personality graph: %v", err)
	}
	return p
}

func TestAddTrait(t *testing.T) {
	p := newTestPersonality(t)

	if err := p.AddTrait("interests", "technology", 0.8, "mentioned coding"); err != nil {
		t.Fatalf("AddTrait failed: %v", err)
	}

	t.Run("CreatesUserProfile", func(t *testing.T) {
		e, ok := p.GetEntity(UserProfileID)
		if !ok {
			t.Fatal("Expected user_profile entity")
		}
		if e.Type != typeUser {
			t.Errorf("Expected type %q, got %q", typeUser, e.Type)
		}
	})

	t.Run("CurrentValue", func(t *testing.T) {
		summary := p.Summary()
		trait, ok := summary["interests"]
		if !ok {
			t.Fatal("Expected 'interests' in summary")
		}
		if trait.Value != "technology" || trait.Confidence != 0.8 {
			t.Errorf("Unexpected trait %+v", trait)
		}
	})
}

func TestTraitOverwriteKeepsEdgeHistory(t *testing.T) {
	p := newTestPersonality(t)

	p.AddTrait("interests", "technology", 0.8, "talked about AI")
	p.AddTrait("interests", "sports", 0.9, "talked about football")

	summary := p.Summary()
	if len(summary) != 1 {
		t.Fatalf("Expected a single trait, got %d", len(summary))
	}
	if summary["interests"].Value != "sports" {
		t.Errorf("Expected newer observation to win, got %q", summary["interests"].Value)
	}

	// One node, but each observation left its own edge.
	edges := 0
	for _, r := range p.Relationships(UserProfileID) {
		if r.Type == relationHasTrait && r.Target == TraitID("interests") {
			edges++
		}
	}
	if edges != 2 {
		t.Errorf("Expected 2 has_trait edges, got %d", edges)
	}
}

func TestTraitReachableFromProfile(t *testing.T) {
	p := newTestPersonality(t)

	p.AddTrait("interests", "technology", 0.8, "context")

	paths := p.FindPath(UserProfileID, TraitID("interests"), 2)
	if len(paths) == 0 {
		t.Fatal("Expected a path from user_profile to trait_interests")
	}
	if len(paths[0]) != 2 {
		t.Errorf("Expected direct path, got %v", paths[0])
	}
}

func TestSummaryAfterReload(t *testing.T) {
	dir, err := os.MkdirTemp("", "personality-reload-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	p, err := NewPersonality(dir, nil)
	if err != nil {
		t.Fatalf("Failed to create personality graph: %v", err)
	}
	p.AddTrait("communication_style", "detailed", 0.7, "long messages")

	reloaded, err := NewPersonality(dir, nil)
	if err != nil {
		t.Fatalf("Failed to reload personality graph: %v", err)
	}
	trait, ok := reloaded.Summary()["communication_style"]
	if !ok {
		t.Fatal("Expected trait to survive reload")
	}
	if trait.Value != "detailed" || trait.Confidence != 0.7 {
		t.Errorf("Unexpected trait after reload: %+v", trait)
	}
}
