package provider

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const stubDims = 64

// StubProvider is an offline provider for tests and dry runs. Chat replies
// with canned text; Embed hashes tokens into a fixed-size bag-of-words
// vector, so identical texts embed identically and texts sharing words score
// a positive cosine similarity. That is enough structure to exercise the
// retrieval pipeline without a model server.
type StubProvider struct {
	Responses []string
}

func NewStubProvider(responses ...string) *StubProvider {
	return &StubProvider{Responses: responses}
}

func (m *StubProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := "OK."
	if len(m.Responses) > 0 {
		content = m.Responses[0]
		m.Responses = m.Responses[1:]
	}

	return &Response{
		Content: content,
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (m *StubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, stubDims)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%stubDims]++
	}
	return vec, nil
}

func (m *StubProvider) Name() string {
	return "stub"
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
