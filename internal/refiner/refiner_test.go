package refiner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/danshapiro/chorus/internal/provider"
)

// fakeAdapter scripts one reply (or error) per call, in order.
type fakeAdapter struct {
	name    string
	healthy bool
	replies []any // string, error, or provider.Response
	prompts []string
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{SupportsContinuation: true}
}
func (f *fakeAdapter) Init(ctx context.Context) error      { return nil }
func (f *fakeAdapter) HealthCheck(ctx context.Context) bool { return f.healthy }

func (f *fakeAdapter) SendPrompt(ctx context.Context, req provider.PromptRequest, onChunk provider.ChunkFunc) (provider.Response, error) {
	f.prompts = append(f.prompts, req.Prompt)
	if len(f.replies) == 0 {
		return provider.Response{}, errors.New("fakeAdapter: script exhausted")
	}
	next := f.replies[0]
	f.replies = f.replies[1:]
	switch v := next.(type) {
	case error:
		return provider.Response{}, v
	case provider.Response:
		return v, nil
	case string:
		return provider.Response{ProviderID: f.name, OK: true, Text: v}, nil
	}
	return provider.Response{}, errors.New("fakeAdapter: bad script entry")
}

func (f *fakeAdapter) SendContinuation(ctx context.Context, prompt string, pctx provider.Context, sessionID string, onChunk provider.ChunkFunc) (provider.Response, error) {
	return f.SendPrompt(ctx, provider.PromptRequest{Prompt: prompt, SessionID: sessionID}, onChunk)
}

func newPipeline(t *testing.T, adapters ...*fakeAdapter) (*Pipeline, *provider.Registry) {
	t.Helper()
	reg := provider.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	return NewPipeline(reg, nil), reg
}

func TestRefine_FullMode(t *testing.T) {
	a := &fakeAdapter{name: "openai", healthy: true, replies: []any{
		"I restructured it.\nFINAL OUTPUT:\nDo the thing properly.",
		"AUDIT:\nignores cost\nVARIANTS:\n1. ask about budget\n2. invert assumption",
	}}
	p, _ := newPipeline(t, a)

	res, err := p.Refine(context.Background(), Input{Fragment: "do thing", AuthorModel: "openai", AnalystModel: "openai"})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if res.Authored != "Do the thing properly." || res.Explanation != "I restructured it." {
		t.Fatalf("author fields: %+v", res)
	}
	if res.Audit != "ignores cost" {
		t.Fatalf("audit: %q", res.Audit)
	}
	if len(res.Variants) != 2 || res.Variants[0] != "ask about budget" {
		t.Fatalf("variants: %v", res.Variants)
	}
	if len(a.prompts) != 2 {
		t.Fatalf("expected two stage calls, got %d", len(a.prompts))
	}
	if !strings.Contains(a.prompts[1], "Do the thing properly.") {
		t.Fatalf("analyst prompt missing authored text:\n%s", a.prompts[1])
	}
}

func TestRefine_AuthorWithoutDelimiterKeepsFullText(t *testing.T) {
	a := &fakeAdapter{name: "openai", healthy: true, replies: []any{
		"a rewrite with no delimiter at all",
		"AUDIT:\nfine\nVARIANTS:\n1. alt",
	}}
	p, _ := newPipeline(t, a)

	res, err := p.Refine(context.Background(), Input{Fragment: "x", AuthorModel: "openai"})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if res.Authored != "a rewrite with no delimiter at all" {
		t.Fatalf("authored: %q", res.Authored)
	}
	if res.Explanation != "" {
		t.Fatalf("explanation: %q", res.Explanation)
	}
}

func TestRefine_AnalystErrorIsNonFatal(t *testing.T) {
	a := &fakeAdapter{name: "openai", healthy: true, replies: []any{
		"why\nFINAL OUTPUT:\nauthored text",
		errors.New("analyst blew up"),
	}}
	p, _ := newPipeline(t, a)

	res, err := p.Refine(context.Background(), Input{Fragment: "x", AuthorModel: "openai"})
	if err != nil {
		t.Fatalf("analyst failure must not fail refine: %v", err)
	}
	if res.Authored != "authored text" || res.Explanation != "why" {
		t.Fatalf("author result lost: %+v", res)
	}
	if res.Audit != "Audit unavailable" || len(res.Variants) != 0 {
		t.Fatalf("degraded fields: audit=%q variants=%v", res.Audit, res.Variants)
	}
}

func TestRefine_AnalystEnvelopeFailureIsNonFatal(t *testing.T) {
	a := &fakeAdapter{name: "openai", healthy: true, replies: []any{
		"FINAL OUTPUT:\nauthored text",
		provider.Response{ProviderID: "openai", OK: false, ErrorCode: provider.ErrKindRateLimit},
	}}
	p, _ := newPipeline(t, a)

	res, err := p.Refine(context.Background(), Input{Fragment: "x", AuthorModel: "openai"})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if res.Audit != "Audit unavailable" {
		t.Fatalf("audit: %q", res.Audit)
	}
}

func TestRefine_AuthorFailureIsFatal(t *testing.T) {
	a := &fakeAdapter{name: "openai", healthy: true, replies: []any{
		errors.New("author down"),
	}}
	p, _ := newPipeline(t, a)

	if res, err := p.Refine(context.Background(), Input{Fragment: "x", AuthorModel: "openai"}); err == nil {
		t.Fatalf("expected error, got %+v", res)
	}
}

func TestRefine_AuthorEmptyIsFatal(t *testing.T) {
	a := &fakeAdapter{name: "openai", healthy: true, replies: []any{"   "}}
	p, _ := newPipeline(t, a)

	if res, err := p.Refine(context.Background(), Input{Fragment: "x", AuthorModel: "openai"}); err == nil {
		t.Fatalf("expected error, got %+v", res)
	}
}

func TestRefine_InitializeModeSkipsAnalyst(t *testing.T) {
	a := &fakeAdapter{name: "openai", healthy: true, replies: []any{
		"REFINED_PROMPT:\nthe prompt\nEXPLANATION:\nmade it concrete",
	}}
	p, _ := newPipeline(t, a)

	res, err := p.Refine(context.Background(), Input{Fragment: "x", AuthorModel: "openai", Initialize: true})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if res.Authored != "the prompt" || res.Explanation != "made it concrete" {
		t.Fatalf("result: %+v", res)
	}
	if res.Audit != "" || res.RawAnalyst != "" {
		t.Fatalf("initialize mode must not run the analyst: %+v", res)
	}
	if len(a.prompts) != 1 {
		t.Fatalf("expected one call, got %d", len(a.prompts))
	}
	if strings.Contains(a.prompts[0], "CONVERSATION CONTEXT") {
		t.Fatalf("initialize prompt must not carry prior-turn context")
	}
}

func TestRefine_FallbackWalksPastUnhealthyProvider(t *testing.T) {
	down := &fakeAdapter{name: "openai", healthy: false}
	up := &fakeAdapter{name: "anthropic", healthy: true, replies: []any{
		"FINAL OUTPUT:\nrewritten",
		"AUDIT:\nok\nVARIANTS:\n1. alt",
	}}
	p, _ := newPipeline(t, down, up)
	p.Fallback = []string{"openai/gpt-4.1", "anthropic/claude-sonnet-4-5"}

	res, err := p.Refine(context.Background(), Input{Fragment: "x", AuthorModel: "openai"})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if res.Authored != "rewritten" {
		t.Fatalf("result: %+v", res)
	}
	if len(down.prompts) != 0 || len(up.prompts) != 2 {
		t.Fatalf("call routing: down=%d up=%d", len(down.prompts), len(up.prompts))
	}
}

func TestRefine_NoProviderAvailable(t *testing.T) {
	down := &fakeAdapter{name: "openai", healthy: false}
	p, _ := newPipeline(t, down)
	p.Fallback = []string{"openai"}

	_, err := p.Refine(context.Background(), Input{Fragment: "x", AuthorModel: "openai"})
	if !errors.Is(err, ErrNoProviderAvailable) {
		t.Fatalf("err: %v", err)
	}
}

func TestRefine_VariantsCappedAtThree(t *testing.T) {
	a := &fakeAdapter{name: "openai", healthy: true, replies: []any{
		"FINAL OUTPUT:\nauthored",
		"AUDIT:\na\nVARIANTS:\n1. one\n2. two\n3. three\n4. four\n5. five",
	}}
	p, _ := newPipeline(t, a)

	res, err := p.Refine(context.Background(), Input{Fragment: "x", AuthorModel: "openai"})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if len(res.Variants) != 3 || res.Variants[2] != "three" {
		t.Fatalf("variants: %v", res.Variants)
	}
}

func TestRefine_ContextSectionsOnlyWhenPresent(t *testing.T) {
	a := &fakeAdapter{name: "openai", healthy: true, replies: []any{
		"FINAL OUTPUT:\nauthored",
		"AUDIT:\na\nVARIANTS:\n1. v",
	}}
	p, _ := newPipeline(t, a)

	tc := &TurnContext{
		PriorUserPrompt:     "earlier question",
		PriorBatchResponses: map[string]string{"anthropic": "earlier answer", "openai": ""},
	}
	if _, err := p.Refine(context.Background(), Input{Fragment: "x", AuthorModel: "openai", TurnContext: tc}); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	got := a.prompts[0]
	if !strings.Contains(got, "PRIOR USER PROMPT") || !strings.Contains(got, "earlier question") {
		t.Fatalf("missing prior prompt section:\n%s", got)
	}
	if !strings.Contains(got, "PRIOR RESPONSE (anthropic)") {
		t.Fatalf("missing batch response section:\n%s", got)
	}
	if strings.Contains(got, "PRIOR SYNTHESIS") || strings.Contains(got, "PRIOR RESPONSE (openai)") {
		t.Fatalf("empty sections must be omitted:\n%s", got)
	}
}

func TestRefineLegacy_MapsFields(t *testing.T) {
	a := &fakeAdapter{name: "openai", healthy: true, replies: []any{
		"why\nFINAL OUTPUT:\nauthored",
		"AUDIT:\nthe audit\nVARIANTS:\n1. v",
	}}
	p, _ := newPipeline(t, a)

	res, err := p.RefineLegacy(context.Background(), "x", nil)
	if err != nil {
		t.Fatalf("RefineLegacy: %v", err)
	}
	if res.RefinedPrompt != "authored" || res.Explanation != "the audit" {
		t.Fatalf("mapping: %+v", res)
	}
}
