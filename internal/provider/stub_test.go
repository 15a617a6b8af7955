package provider

import (
	"context"
	"testing"
)

func TestStubChat(t *testing.T) {
	stub := NewStubProvider("one", "two")
	ctx := context.Background()

	for _, want := range []string{"one", "two", "OK."} {
		resp, err := stub.Chat(ctx, []Message{{Role: "user", Content: "hi"}})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if resp.Content != want {
			t.Errorf("Expected %q, got %q", want, resp.Content)
		}
	}
}

func TestStubEmbed(t *testing.T) {
	stub := NewStubProvider()
	ctx := context.Background()

	t.Run("Deterministic", func(t *testing.T) {
		a, err := stub.Embed(ctx, "hello world")
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		b, _ := stub.Embed(ctx, "hello world")

		if len(a) != stubDims {
			t.Fatalf("Expected %d dims, got %d", stubDims, len(a))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatal("Expected identical text to embed identically")
			}
		}
	})

	t.Run("TokenBuckets", func(t *testing.T) {
		vec, _ := stub.Embed(ctx, "go go go run")

		var total float32
		for _, v := range vec {
			total += v
		}
		if total != 4 {
			t.Errorf("Expected 4 token increments, got %f", total)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := stub.Embed(cancelled, "text"); err == nil {
			t.Error("Expected an error for a cancelled context")
		}
	})
}
