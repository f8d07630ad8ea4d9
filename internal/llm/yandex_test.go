package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Morwran/yagpt"
)

type stubYaGPT struct {
	resp *yagpt.CompletionResponse
	err  error

	gotToken    string
	gotMsgs     []yagpt.Message
	gotDeadline bool
}

func (s *stubYaGPT) CompletionWithCtx(ctx context.Context, iamTok string, m []yagpt.Message) (*yagpt.CompletionResponse, error) {
	s.gotToken = iamTok
	s.gotMsgs = m
	_, s.gotDeadline = ctx.Deadline()
	return s.resp, s.err
}

func (s *stubYaGPT) Completion(iamTok string, m []yagpt.Message) (*yagpt.CompletionResponse, error) {
	return s.CompletionWithCtx(context.Background(), iamTok, m)
}

func TestYandexGenerate_MapsMessagesAndUsage(t *testing.T) {
	stub := &stubYaGPT{resp: &yagpt.CompletionResponse{
		Alternatives: []yagpt.Alternative{{Message: yagpt.Message{Role: RoleAssistant, Content: "Disable password auth."}}},
		Usage:        yagpt.ContentUsage{InputTextTokens: 9, CompletionTokens: 4, TotalTokens: 13},
	}}
	c := &YandexClient{ya: stub, iamToken: "iam-1", timeout: 30 * time.Second}

	resp, err := c.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "persona How do I harden SSH?"},
		{Role: RoleAssistant, Content: "earlier"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if stub.gotToken != "iam-1" {
		t.Fatalf("iam token not forwarded: %q", stub.gotToken)
	}
	if len(stub.gotMsgs) != 2 ||
		stub.gotMsgs[0].Role != "user" || stub.gotMsgs[0].Content != "persona How do I harden SSH?" ||
		stub.gotMsgs[1].Role != "assistant" {
		t.Fatalf("unexpected messages: %+v", stub.gotMsgs)
	}
	if !stub.gotDeadline {
		t.Fatalf("timeout not applied to the call context")
	}
	if resp.Content != "Disable password auth." || resp.Model != yagpt.YaModelLite {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.PromptTokens != 9 || resp.CompletionTokens != 4 || resp.TotalTokens != 13 {
		t.Fatalf("unexpected usage: %+v", resp)
	}
}

func TestYandexGenerate_Errors(t *testing.T) {
	cases := []struct {
		name    string
		stub    *stubYaGPT
		wantSub string
	}{
		{"provider error", &stubYaGPT{err: errors.New("PERMISSION_DENIED")}, "PERMISSION_DENIED"},
		{"nil response", &stubYaGPT{}, "empty response"},
		{"no alternatives", &stubYaGPT{resp: &yagpt.CompletionResponse{}}, "empty response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &YandexClient{ya: tc.stub}
			_, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "q"}})
			if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("want error mentioning %q, got %v", tc.wantSub, err)
			}
			if tc.stub.gotDeadline {
				t.Fatalf("zero timeout must not add a deadline")
			}
		})
	}
}
