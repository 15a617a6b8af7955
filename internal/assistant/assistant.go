// Package assistant runs the chat loop: memory-augmented prompt in, model
// response out, turn stored back into memory.
package assistant

import (
	"context"
	"fmt"

	"github.com/tnanh/mira/internal/memory"
	"github.com/tnanh/mira/internal/observe"
	"github.com/tnanh/mira/internal/provider"
)

const systemPrompt = `You are Mira, a personal desktop assistant. Answer
concisely and use the provided memory context when it is relevant. If the
context contradicts the user, trust the user.`

// Assistant wires the LLM provider to the enhanced memory system.
type Assistant struct {
	memory   *memory.Orchestrator
	provider provider.Provider
	obs      *observe.Observer

	// history keeps the in-session transcript; long-term recall goes
	// through the memory orchestrator instead.
	history []provider.Message
}

func New(mem *memory.Orchestrator, p provider.Provider, obs *observe.Observer) *Assistant {
	if obs == nil {
		obs = observe.Discard()
	}
	return &Assistant{
		memory:   mem,
		provider: p,
		obs:      obs,
	}
}

// Ask processes one user turn: build the memory context, query the model,
// store the exchange. Memory failures degrade silently; provider failures are
// returned to the caller since there is nothing to show without a response.
func (a *Assistant) Ask(ctx context.Context, userInput string) (string, error) {
	ctx, span := a.obs.StartSpan(ctx, "assistant.Ask")
	defer span.End()

	prompt := systemPrompt
	if memCtx := a.memory.SmartContext(ctx, userInput); memCtx != "" {
		prompt = fmt.Sprintf("%s\n\nMemory context:\n%s", systemPrompt, memCtx)
		a.obs.Log().Info().Int("chars", len(memCtx)).Msg("attached memory context")
	}

	messages := []provider.Message{{Role: "system", Content: prompt}}
	messages = append(messages, a.history...)
	messages = append(messages, provider.Message{Role: "user", Content: userInput})

	resp, err := a.provider.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%s chat failed: %w", a.provider.Name(), err)
	}

	a.history = append(a.history,
		provider.Message{Role: "user", Content: userInput},
		provider.Message{Role: "assistant", Content: resp.Content},
	)

	result := a.memory.Store(ctx, userInput, resp.Content, map[string]any{
		"provider": a.provider.Name(),
		"tokens":   resp.Usage.TotalTokens,
	})
	a.obs.Log().Info().
		Str("conversationID", result.ConversationID).
		Int("tokens", resp.Usage.TotalTokens).
		Msg("turn stored")

	return resp.Content, nil
}
