package extract

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEntities(t *testing.T) {
	t.Run("CapitalizedWords", func(t *testing.T) {
		candidates := Entities("I visited Hanoi last week")

		var hanoi *Candidate
		for i := range candidates {
			if candidates[i].ID == "entity_hanoi" {
				hanoi = &candidates[i]
			}
		}
		if hanoi == nil {
			t.Fatal("Expected 'Hanoi' to be extracted")
		}
		if hanoi.Name != "Hanoi" || hanoi.Type != "person_or_place" {
			t.Errorf("Unexpected candidate: %+v", hanoi)
		}
		if hanoi.Confidence != 0.6 {
			t.Errorf("Expected confidence 0.6, got %f", hanoi.Confidence)
		}
		if !strings.Contains(hanoi.Context, "visited Hanoi last") {
			t.Errorf("Expected surrounding words in context, got %q", hanoi.Context)
		}
	})

	t.Run("SkipsShortAndAcronyms", func(t *testing.T) {
		for _, c := range Entities("Is AI or HTTP or Go a thing") {
			if c.ID == "entity_ai" || c.ID == "entity_http" || c.ID == "entity_go" {
				t.Errorf("Should not extract %q", c.Name)
			}
		}
	})

	t.Run("StripsPunctuation", func(t *testing.T) {
		candidates := Entities("We talked about Vietnam.")
		if len(candidates) != 1 || candidates[0].Name != "Vietnam" {
			t.Fatalf("Expected clean 'Vietnam' candidate, got %+v", candidates)
		}
	})

	t.Run("Dates", func(t *testing.T) {
		candidates := Entities("deadline is 15/03/2026 ok")

		var date *Candidate
		for i := range candidates {
			if candidates[i].Type == "date" {
				date = &candidates[i]
			}
		}
		if date == nil {
			t.Fatal("Expected a date candidate")
		}
		if date.ID != "date_15_03_2026" {
			t.Errorf("Expected normalized date ID, got %q", date.ID)
		}
		if date.Confidence != 0.9 {
			t.Errorf("Expected confidence 0.9, got %f", date.Confidence)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if candidates := Entities("nothing lowercase here"); len(candidates) != 0 {
			t.Errorf("Expected no candidates, got %+v", candidates)
		}
	})
}

func TestTraitObservations(t *testing.T) {
	t.Run("ShortMessage", func(t *testing.T) {
		obs := TraitObservations("hi there")
		if len(obs) != 1 {
			t.Fatalf("Expected 1 observation, got %d", len(obs))
		}
		if obs[0].Trait != "communication_style" || obs[0].Value != "concise" {
			t.Errorf("Unexpected observation: %+v", obs[0])
		}
		if obs[0].Confidence != 0.7 {
			t.Errorf("Expected confidence 0.7, got %f", obs[0].Confidence)
		}
	})

	t.Run("LongMessage", func(t *testing.T) {
		long := strings.Repeat("word ", 25)
		obs := TraitObservations(long)
		if len(obs) != 1 || obs[0].Value != "detailed" {
			t.Fatalf("Expected a 'detailed' observation, got %+v", obs)
		}
	})

	t.Run("MediumMessage", func(t *testing.T) {
		obs := TraitObservations("this sentence has exactly seven words total")
		for _, o := range obs {
			if o.Trait == "communication_style" {
				t.Errorf("Mid-length message should not classify style, got %+v", o)
			}
		}
	})

	t.Run("KeywordRules", func(t *testing.T) {
		obs := TraitObservations("I love programming and my work deadline")

		found := map[string]string{}
		for _, o := range obs {
			found[o.Trait] = o.Value
		}
		if found["interests"] != "technology" {
			t.Errorf("Expected interests=technology, got %v", found)
		}
		if found["work_focus"] != "professional" {
			t.Errorf("Expected work_focus=professional, got %v", found)
		}
	})

	t.Run("TruncatedContextKeepsRunesWhole", func(t *testing.T) {
		// 99 bytes of ASCII padding puts the cut inside the first
		// multibyte rune when truncation slices bytes instead of runes.
		input := strings.Repeat("a", 93) + " code " + "ết nữa là xong rồi đó nha bạn"
		obs := TraitObservations(input)

		var ctx string
		for _, o := range obs {
			if o.Trait == "interests" {
				ctx = o.Context
			}
		}
		if ctx == "" {
			t.Fatal("Expected an interests observation")
		}
		if !utf8.ValidString(ctx) {
			t.Fatalf("Truncated context is invalid UTF-8: %q", ctx)
		}
		if n := len([]rune(ctx)); n != 100 {
			t.Errorf("Expected context capped at 100 runes, got %d", n)
		}
	})

	t.Run("Vietnamese", func(t *testing.T) {
		obs := TraitObservations("hôm nay bàn về công việc và lập trình nhé bạn ơi")
		traits := map[string]bool{}
		for _, o := range obs {
			traits[o.Trait] = true
		}
		if !traits["interests"] || !traits["work_focus"] {
			t.Errorf("Expected Vietnamese keywords to trigger rules, got %+v", obs)
		}
	})
}

func TestTags(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"Tech", "new software release", []string{"tech"}},
		{"Multiple", "a meeting about health software", []string{"tech", "work", "health"}},
		{"None", "the weather is nice", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Tags(tc.text)
			if len(got) != len(tc.want) {
				t.Fatalf("Expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("Expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestKnowledgeSentences(t *testing.T) {
	t.Run("IndicatorGate", func(t *testing.T) {
		if got := KnowledgeSentences("A plain answer without any factual marker words here at all."); got != nil {
			t.Errorf("Expected nothing without indicators, got %v", got)
		}
	})

	t.Run("ExtractsSentences", func(t *testing.T) {
		response := "Go là một ngôn ngữ lập trình được Google phát triển. Ok."
		got := KnowledgeSentences(response)
		if len(got) != 1 {
			t.Fatalf("Expected 1 sentence, got %v", got)
		}
		if !strings.Contains(got[0], "Go là một ngôn ngữ") {
			t.Errorf("Unexpected sentence %q", got[0])
		}
	})

	t.Run("LengthBounds", func(t *testing.T) {
		response := "Ngắn là. " + strings.Repeat("x", 250) + "."
		if got := KnowledgeSentences(response); len(got) != 0 {
			t.Errorf("Expected out-of-bounds sentences dropped, got %v", got)
		}
	})
}
