// Package relay adapts streaming response-API providers (OpenAI responses
// style): server-side conversation state, continuation via a response-id
// cursor, SSE delta transport.
package relay

import (
	"bufio"
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
	// Avoid short client-level timeouts; rely on request context deadlines.
	Client *http.Client
}

func New(providerKey, apiKey, baseURL, model string) *Adapter {
	key := providerspec.CanonicalProviderKey(providerKey)
	if key == "" {
		key = "openai"
	}
	spec, _ := providerspec.Builtin(key)
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = spec.DefaultBaseURL
	}
	path := spec.DefaultPath
	if path == "" {
		path = "/v1/responses"
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
		SupportsStreaming:      true,
		SupportsContinuation:   true,
		Synthesis:              true,
		SupportsModelSelection: true,
	}
}

func (a *Adapter) Init(ctx context.Context) error {
	_ = ctx
	if a.Client == nil {
		a.Client = &http.Client{Timeout: 0}
	}
	if a.APIKey == "" {
		return fmt.Errorf("relay %s: api key is required", a.Provider)
	}
	return nil
}

// HealthCheck probes the endpoint root. All failures collapse to false.
func (a *Adapter) HealthCheck(ctx context.Context) bool {
	if a.Client == nil || a.APIKey == "" {
		return false
	}
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(hctx, http.MethodGet, a.BaseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
	resp, err := a.Client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 500
}

func (a *Adapter) SendPrompt(ctx context.Context, req provider.PromptRequest, onChunk provider.ChunkFunc) (provider.Response, error) {
	cursor := req.MetaString("cursor")
	model := req.MetaString("model")
	return a.send(ctx, req.Prompt, cursor, model, onChunk)
}

func (a *Adapter) SendContinuation(ctx context.Context, prompt string, pctx provider.Context, sessionID string, onChunk provider.ChunkFunc) (provider.Response, error) {
	_ = sessionID
	cursor := pctx.Cursor()
	if cursor == "" {
		// Continuation without state degrades to a fresh start.
		return a.SendPrompt(ctx, provider.PromptRequest{Prompt: prompt}, onChunk)
	}
	return a.send(ctx, prompt, cursor, pctx.Model(), onChunk)
}

func (a *Adapter) send(ctx context.Context, prompt, cursor, model string, onChunk provider.ChunkFunc) (provider.Response, error) {
	start := time.Now()
	if a.Client == nil {
		a.Client = &http.Client{Timeout: 0}
	}
	if model == "" {
		model = a.Model
	}

	body := map[string]any{
		"model":  model,
		"input":  prompt,
		"stream": true,
	}
	if cursor != "" {
		body["previous_response_id"] = cursor
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
	httpReq.Header.Set("Authorization", "Bearer "+a.APIKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		cls := provider.Classify(a.Provider, err)
		return provider.Failure(a.Provider, start, cls, err.Error()), nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(raw))
		cls := provider.ClassifyHTTP(a.Provider, resp.StatusCode, msg)
		details := fmt.Sprintf("status %d: %s", resp.StatusCode, msg)
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			// Surfaced so the orchestrator's retry policy can honor it.
			details = fmt.Sprintf("%s (retry-after %s)", details, ra)
		}
		return provider.Failure(a.Provider, start, cls, details), nil
	}

	var text strings.Builder
	meta := provider.ResponseMeta{Model: model}
	err = readSSE(resp.Body, func(event string, data []byte) {
		var payload map[string]any
		if json.Unmarshal(data, &payload) != nil {
			return
		}
		switch event {
		case "response.output_text.delta":
			delta, _ := payload["delta"].(string)
			if delta == "" {
				return
			}
			text.WriteString(delta)
			if onChunk != nil {
				onChunk(provider.Chunk{ProviderID: a.Provider, Text: delta, Partial: true})
			}
		case "response.completed":
			if r, ok := payload["response"].(map[string]any); ok {
				if id, _ := r["id"].(string); id != "" {
					meta.Cursor = id
				}
				if m, _ := r["model"].(string); m != "" {
					meta.ModelName = m
				}
			}
		}
	})
	if err != nil {
		// The stream broke mid-flight; classify and report whatever we have.
		cls := provider.Classify(a.Provider, err)
		fail := provider.Failure(a.Provider, start, cls, err.Error())
		fail.Text = text.String()
		return fail, nil
	}

	return provider.Response{
		ProviderID: a.Provider,
		OK:         true,
		Text:       text.String(),
		LatencyMS:  time.Since(start).Milliseconds(),
		Meta:       meta,
	}, nil
}

// readSSE walks a text/event-stream body, invoking fn once per data payload.
// A "[DONE]" payload ends the stream.
func readSSE(r io.Reader, fn func(event string, data []byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	event := ""
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case line == "":
			event = ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return nil
			}
			fn(event, []byte(data))
		}
	}
	return sc.Err()
}
