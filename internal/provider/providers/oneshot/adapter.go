// Package oneshot adapts single-shot providers with no incremental transport.
// To keep the streaming surface uniform, it emits exactly one partial chunk
// carrying the full text before returning the final envelope.
package oneshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danshapiro/chorus/internal/provider"
	"github.com/danshapiro/chorus/internal/providerspec"
)

type Adapter struct {
	Provider string
	APIKey   string
	BaseURL  string
	Path     string
	Model    string
	Client   *http.Client
}

func New(providerKey, apiKey, baseURL, model string) *Adapter {
	key := providerspec.CanonicalProviderKey(providerKey)
	if key == "" {
		key = "anthropic"
	}
	spec, _ := providerspec.Builtin(key)
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = spec.DefaultBaseURL
	}
	path := spec.DefaultPath
	if path == "" {
		path = "/v1/messages"
	}
	return &Adapter{
		Provider: key,
		APIKey:   strings.TrimSpace(apiKey),
		BaseURL:  base,
		Path:     path,
		Model:    strings.TrimSpace(model),
		Client:   &http.Client{Timeout: 0},
	}
}

func (a *Adapter) Name() string { return a.Provider }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		SupportsStreaming:      false,
		SupportsContinuation:   true,
		SupportsModelSelection: true,
	}
}

func (a *Adapter) Init(ctx context.Context) error {
	_ = ctx
	if a.Client == nil {
		a.Client = &http.Client{Timeout: 0}
	}
	if a.APIKey == "" {
		return fmt.Errorf("oneshot %s: api key is required", a.Provider)
	}
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	return a != nil && a.Client != nil && a.APIKey != ""
}

func (a *Adapter) SendPrompt(ctx context.Context, req provider.PromptRequest, onChunk provider.ChunkFunc) (provider.Response, error) {
	return a.send(ctx, req.Prompt, req.MetaString("cursor"), req.MetaString("model"), req.SessionID, onChunk)
}

func (a *Adapter) SendContinuation(ctx context.Context, prompt string, pctx provider.Context, sessionID string, onChunk provider.ChunkFunc) (provider.Response, error) {
	cursor := pctx.Cursor()
	if cursor == "" {
		// Continuation without state degrades to a fresh start.
		return a.SendPrompt(ctx, provider.PromptRequest{Prompt: prompt, SessionID: sessionID}, onChunk)
	}
	return a.send(ctx, prompt, cursor, pctx.Model(), sessionID, onChunk)
}

func (a *Adapter) send(ctx context.Context, prompt, cursor, model, sessionID string, onChunk provider.ChunkFunc) (provider.Response, error) {
	start := time.Now()
	if a.Client == nil {
		a.Client = &http.Client{Timeout: 0}
	}
	if model == "" {
		model = a.Model
	}

	body := map[string]any{
		"model":    model,
		"messages": []map[string]any{{"role": "user", "content": prompt}},
	}
	if cursor != "" {
		body["conversation_id"] = cursor
	}
	if sessionID != "" {
		body["metadata"] = map[string]any{"session_id": sessionID}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return provider.Response{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+a.Path, bytes.NewReader(b))
	if err != nil {
		return provider.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.APIKey)

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		cls := provider.Classify(a.Provider, err)
		return provider.Failure(a.Provider, start, cls, err.Error()), nil
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		cls := provider.ClassifyHTTP(a.Provider, resp.StatusCode, msg)
		return provider.Failure(a.Provider, start, cls, fmt.Sprintf("status %d: %s", resp.StatusCode, msg)), nil
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Some deployments return bare text.
		payload = string(raw)
	}
	text := provider.ExtractText(payload)

	meta := provider.ResponseMeta{Model: model}
	if m, ok := payload.(map[string]any); ok {
		if id, _ := m["conversation_id"].(string); id != "" {
			meta.Cursor = id
		}
		if tok, _ := m["token"].(string); tok != "" {
			meta.Token = tok
		}
		if name, _ := m["model"].(string); name != "" {
			meta.ModelName = name
		}
	}

	// One synthetic partial emission so downstream consumers can treat every
	// adapter as streaming. Gated here because this adapter reports
	// SupportsStreaming=false; natively streaming adapters must not do this.
	if onChunk != nil && text != "" {
		onChunk(provider.Chunk{ProviderID: a.Provider, Text: text, Partial: true})
	}

	return provider.Response{
		ProviderID: a.Provider,
		OK:         true,
		Text:       text,
		LatencyMS:  time.Since(start).Milliseconds(),
		Meta:       meta,
	}, nil
}
