// Package extract holds the heuristic text-analysis rules that feed the
// knowledge and personality graphs. These are deliberately simple keyword and
// shape heuristics, not a trained model: callers must treat the output as
// low-precision signal.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Candidate is a proposed entity found in conversation text.
type Candidate struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Context    string  `json:"context"`
	Confidence float64 `json:"confidence"`
}

var datePattern = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)

// Entities proposes candidate entities from raw text: capitalized words
// longer than two characters become low-confidence person_or_place
// candidates, date-shaped tokens become high-confidence date entities.
func Entities(text string) []Candidate {
	var candidates []Candidate

	words := strings.Fields(text)
	for i, word := range words {
		trimmed := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(trimmed)) <= 2 || !isTitleWord(trimmed) {
			continue
		}

		lo := i - 2
		if lo < 0 {
			lo = 0
		}
		hi := i + 3
		if hi > len(words) {
			hi = len(words)
		}

		candidates = append(candidates, Candidate{
			ID:         "entity_" + strings.ToLower(trimmed),
			Name:       trimmed,
			Type:       "person_or_place",
			Context:    strings.Join(words[lo:hi], " "),
			Confidence: 0.6,
		})
	}

	for _, date := range datePattern.FindAllString(text, -1) {
		id := strings.NewReplacer("/", "_", "-", "_").Replace(date)
		candidates = append(candidates, Candidate{
			ID:         "date_" + id,
			Name:       date,
			Type:       "date",
			Context:    text,
			Confidence: 0.9,
		})
	}

	return candidates
}

// isTitleWord reports whether the word starts with an upper-case letter and
// continues in lower case ("Hanoi" yes, "HTTP" and "iOS" no).
func isTitleWord(word string) bool {
	for i, r := range word {
		if i == 0 {
			if !unicode.IsUpper(r) {
				return false
			}
			continue
		}
		if unicode.IsLetter(r) && !unicode.IsLower(r) {
			return false
		}
	}
	return word != ""
}

// TraitObservation is a single inference about the user derived from one
// message.
type TraitObservation struct {
	Trait      string  `json:"trait"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

// keywordRule maps the presence of any keyword to a trait observation. The
// table mixes English and Vietnamese terms because the assistant's users
// write in both.
type keywordRule struct {
	trait      string
	value      string
	confidence float64
	keywords   []string
}

var traitRules = []keywordRule{
	{
		trait:      "interests",
		value:      "technology",
		confidence: 0.8,
		keywords:   []string{"code", "programming", "ai", "computer", "software", "lập trình"},
	},
	{
		trait:      "work_focus",
		value:      "professional",
		confidence: 0.7,
		keywords:   []string{"meeting", "work", "công việc", "deadline", "project"},
	},
}

const (
	longMessageWords  = 20
	shortMessageWords = 5
)

// TraitObservations derives personality signals from one user message:
// message length maps to a communication style, and the keyword rule table
// maps topics to interests and focus.
func TraitObservations(userInput string) []TraitObservation {
	var observations []TraitObservation

	words := len(strings.Fields(userInput))
	switch {
	case words > longMessageWords:
		observations = append(observations, TraitObservation{
			Trait:      "communication_style",
			Value:      "detailed",
			Confidence: 0.7,
			Context:    messageLengthContext("long", words),
		})
	case words < shortMessageWords:
		observations = append(observations, TraitObservation{
			Trait:      "communication_style",
			Value:      "concise",
			Confidence: 0.7,
			Context:    messageLengthContext("short", words),
		})
	}

	inputLower := strings.ToLower(userInput)
	for _, rule := range traitRules {
		if containsAny(inputLower, rule.keywords) {
			observations = append(observations, TraitObservation{
				Trait:      rule.trait,
				Value:      rule.value,
				Confidence: rule.confidence,
				Context:    truncate(userInput, 100),
			})
		}
	}

	return observations
}

// tagCategories maps tag names to the keywords that trigger them.
var tagCategories = map[string][]string{
	"tech":      {"technology", "computer", "software", "ai", "programming"},
	"work":      {"work", "job", "career", "business", "meeting"},
	"personal":  {"family", "friend", "hobby", "personal"},
	"health":    {"health", "exercise", "diet", "medical"},
	"education": {"learn", "study", "school", "course", "education"},
}

// Tags assigns category tags to a piece of text from the fixed keyword table.
func Tags(text string) []string {
	textLower := strings.ToLower(text)
	var tags []string
	// Fixed iteration order keeps output stable.
	for _, category := range []string{"tech", "work", "personal", "health", "education"} {
		if containsAny(textLower, tagCategories[category]) {
			tags = append(tags, category)
		}
	}
	return tags
}

// knowledgeIndicators mark sentences likely to contain a factual statement.
// Vietnamese copulas and modality markers, since the model largely answers in
// Vietnamese.
var knowledgeIndicators = []string{"là", "được", "có thể", "thường", "luôn", "bao gồm"}

const (
	minKnowledgeSentence = 20
	maxKnowledgeSentence = 200
)

// KnowledgeSentences picks sentences worth storing as knowledge items from an
// AI response. Nothing is extracted unless the response carries at least one
// factual-statement indicator.
func KnowledgeSentences(aiResponse string) []string {
	if !containsAny(strings.ToLower(aiResponse), knowledgeIndicators) {
		return nil
	}

	var sentences []string
	for _, sentence := range strings.Split(aiResponse, ".") {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) > minKnowledgeSentence && len(sentence) < maxKnowledgeSentence {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}

func containsAny(textLower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(textLower, kw) {
			return true
		}
	}
	return false
}

// truncate cuts s to n runes. Byte slicing would split multibyte Vietnamese
// characters.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func messageLengthContext(kind string, words int) string {
	if kind == "long" {
		return fmt.Sprintf("Uses long messages: %d words", words)
	}
	return fmt.Sprintf("Uses short messages: %d words", words)
}
