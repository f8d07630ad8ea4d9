// Package chat turns a prompt into a CipherGenix reply and records the exchange.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"ciphergenix/internal/llm"
	"ciphergenix/internal/persona"
	"ciphergenix/internal/storage"
)

// FallbackReply is returned in place of a model answer whenever a request fails.
const FallbackReply = "CipherGenix ran into an issue processing your request."

// Result is the payload returned to callers. ErrorDetail and ErrorKind are
// set only on failure.
type Result struct {
	Reply       string `json:"reply"`
	ErrorDetail string `json:"errorDetail,omitempty"`
	ErrorKind   Kind   `json:"errorKind,omitempty"`
}

func (r Result) Failed() bool { return r.ErrorDetail != "" }

type Service struct {
	client   llm.Client
	recorder storage.Recorder
	persona  persona.Persona
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(client llm.Client, recorder storage.Recorder, p persona.Persona, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:   client,
		recorder: recorder,
		persona:  p,
		logger:   logger,
		now:      time.Now,
	}
}

// Generate makes exactly one model call for userPrompt. It never returns an
// error: failures come back as FallbackReply with the cause attached, and no
// entry is recorded for them.
func (s *Service) Generate(ctx context.Context, userPrompt string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic recovered in chat generate", "panic", r, "stack", string(debug.Stack()))
			res = s.Fail(GenerationError(fmt.Errorf("panic: %v", r)))
		}
	}()

	reply, err := s.generate(ctx, userPrompt)
	if err != nil {
		return s.Fail(err)
	}
	return Result{Reply: reply}
}

func (s *Service) generate(ctx context.Context, userPrompt string) (string, error) {
	start := s.now()
	resp, err := s.client.Generate(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: s.persona.Compose(userPrompt)},
	})
	if err != nil {
		return "", GenerationError(err)
	}
	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", GenerationError(errors.New("model returned an empty response"))
	}

	entry := storage.ChatEntry{
		Timestamp:  s.now().UTC(),
		UserPrompt: userPrompt,
		Response:   reply,
	}
	if err := s.recorder.Append(entry); err != nil {
		return "", LoggingError(err)
	}

	s.logger.Info("chat exchange recorded",
		"model", resp.Model,
		"prompt_chars", len(userPrompt),
		"reply_chars", len(reply),
		"total_tokens", resp.TotalTokens,
		"duration", s.now().Sub(start),
	)
	return reply, nil
}

// Fail converts err into the in-band failure payload and logs it by kind.
func (s *Service) Fail(err error) Result {
	kind := KindOf(err)
	switch kind {
	case KindValidation:
		s.logger.Warn("chat request rejected", "kind", kind, "error", err)
	default:
		s.logger.Error("chat request failed", "kind", kind, "error", err)
	}
	detail := err.Error()
	if detail == "" {
		detail = string(kind) + " failed"
	}
	return Result{Reply: FallbackReply, ErrorDetail: detail, ErrorKind: kind}
}

// History returns every recorded exchange, oldest first.
func (s *Service) History() ([]storage.ChatEntry, error) {
	entries, err := s.recorder.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	if entries == nil {
		entries = []storage.ChatEntry{}
	}
	return entries, nil
}
