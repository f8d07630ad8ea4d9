package llm

import (
	"context"
	"testing"

	"ciphergenix/internal/config"
)

func TestNewClient_OpenAI(t *testing.T) {
	cfg := &config.Config{LLMProvider: config.ProviderOpenAI, OpenAIAPIKey: "k", OpenAIModel: "m"}
	c, err := NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, ok := c.(*OpenAIClient); !ok {
		t.Fatalf("expected *OpenAIClient, got %T", c)
	}
}

func TestNewClient_UnknownProvider(t *testing.T) {
	cfg := &config.Config{LLMProvider: "claude"}
	if _, err := NewClient(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
