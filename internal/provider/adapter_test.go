package provider

import (
	"context"
	"errors"
	"testing"
)

// recordingAdapter notes which send path Ask chose.
type recordingAdapter struct {
	name         string
	caps         Capabilities
	prompts      []PromptRequest
	continuation []string // cursors seen
	healthy      bool
	sendErr      error
}

func (a *recordingAdapter) Name() string               { return a.name }
func (a *recordingAdapter) Capabilities() Capabilities { return a.caps }
func (a *recordingAdapter) Init(ctx context.Context) error {
	_ = ctx
	return nil
}
func (a *recordingAdapter) HealthCheck(ctx context.Context) bool {
	_ = ctx
	return a.healthy
}
func (a *recordingAdapter) SendPrompt(ctx context.Context, req PromptRequest, onChunk ChunkFunc) (Response, error) {
	_ = ctx
	if a.sendErr != nil {
		return Response{}, a.sendErr
	}
	a.prompts = append(a.prompts, req)
	if onChunk != nil {
		onChunk(Chunk{ProviderID: a.name, Text: "ok", Partial: true})
	}
	return Response{ProviderID: a.name, OK: true, Text: "ok"}, nil
}
func (a *recordingAdapter) SendContinuation(ctx context.Context, prompt string, pctx Context, sessionID string, onChunk ChunkFunc) (Response, error) {
	cursor := pctx.Cursor()
	if cursor == "" {
		// Continuation without state degrades to a fresh start.
		return a.SendPrompt(ctx, PromptRequest{Prompt: prompt, SessionID: sessionID}, onChunk)
	}
	a.continuation = append(a.continuation, cursor)
	return Response{ProviderID: a.name, OK: true, Text: "continued", Meta: ResponseMeta{Cursor: cursor}}, nil
}

func TestAsk_DispatchesOnCursorPresence(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name         string
		pctx         Context
		wantContinue bool
	}{
		{"flat cursor", Context{"cursor": "r1"}, true},
		{"nested cursor", Context{"meta": map[string]any{"cursor": "r2"}}, true},
		{"no cursor", Context{"conversationId": "c1"}, false},
		{"nil context", nil, false},
	} {
		a := &recordingAdapter{name: "relay"}
		resp, err := Ask(ctx, a, "hi", tc.pctx, "s1", nil)
		if err != nil {
			t.Fatalf("%s: Ask: %v", tc.name, err)
		}
		if !resp.OK {
			t.Fatalf("%s: envelope not ok", tc.name)
		}
		gotContinue := len(a.continuation) == 1
		if gotContinue != tc.wantContinue {
			t.Fatalf("%s: continuation=%v want %v", tc.name, gotContinue, tc.wantContinue)
		}
	}
}

func TestAsk_PropagatesAdapterErrors(t *testing.T) {
	boom := errors.New("contract violation")
	a := &recordingAdapter{name: "relay", sendErr: boom}
	if _, err := Ask(context.Background(), a, "hi", nil, "", nil); !errors.Is(err, boom) {
		t.Fatalf("Ask should rethrow adapter errors, got %v", err)
	}
}

func TestSendContinuation_NoCursorDegradesToPrompt(t *testing.T) {
	a := &recordingAdapter{name: "relay"}
	resp, err := a.SendContinuation(context.Background(), "hello", Context{}, "s1", nil)
	if err != nil {
		t.Fatalf("SendContinuation: %v", err)
	}
	if len(a.prompts) != 1 || a.prompts[0].Prompt != "hello" {
		t.Fatalf("expected fallback to SendPrompt, prompts=%v", a.prompts)
	}
	if !resp.OK || resp.Text != "ok" {
		t.Fatalf("envelope: %+v", resp)
	}
}

func TestExtractText_Precedence(t *testing.T) {
	if got := ExtractText(map[string]any{"text": "a", "candidates": []any{map[string]any{"content": "b"}}}); got != "a" {
		t.Fatalf("text field wins: %q", got)
	}
	if got := ExtractText(map[string]any{"candidates": []any{map[string]any{"content": "b"}}}); got != "b" {
		t.Fatalf("first candidate content: %q", got)
	}
	if got := ExtractText("raw"); got != "raw" {
		t.Fatalf("raw string: %q", got)
	}
	if got := ExtractText(map[string]any{"weird": true}); got != `{"weird":true}` {
		t.Fatalf("json fallback: %q", got)
	}
	if got := ExtractText(nil); got != "" {
		t.Fatalf("nil payload: %q", got)
	}
}

func TestRegistry_AliasLookupAndAvailability(t *testing.T) {
	r := NewRegistry()
	r.Register(&recordingAdapter{name: "anthropic", healthy: true})
	r.Register(&recordingAdapter{name: "google", healthy: false})

	if r.GetAdapter("claude") == nil {
		t.Fatalf("alias claude should resolve to anthropic adapter")
	}
	ctx := context.Background()
	if !r.IsAvailable(ctx, "claude") {
		t.Fatalf("healthy adapter should be available")
	}
	if r.IsAvailable(ctx, "gemini") {
		t.Fatalf("unhealthy adapter should not be available")
	}
	if r.IsAvailable(ctx, "mistral") {
		t.Fatalf("unregistered provider should not be available")
	}
}
