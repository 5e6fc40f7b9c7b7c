// Package refiner runs the two-stage Author/Analyst prompt pipeline. The
// Author rewrites a draft fragment into a complete prompt; the Analyst
// critiques the rewrite and proposes alternatives. Author failure is fatal to
// the refine call, Analyst failure only degrades the result.
package refiner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danshapiro/chorus/internal/logx"
	"github.com/danshapiro/chorus/internal/provider"
)

// ErrNoProviderAvailable is returned when neither the requested model's
// provider nor any fallback entry has a healthy adapter.
var ErrNoProviderAvailable = errors.New("refiner: no provider available")

const (
	defaultStageTimeout = 60 * time.Second
	maxVariants         = 3
	auditUnavailable    = "Audit unavailable"
)

// Input is one refine request. Models are "provider" or "provider/model"
// identifiers; empty means start from the fallback list.
type Input struct {
	Fragment     string
	TurnContext  *TurnContext
	AuthorModel  string
	AnalystModel string
	Initialize   bool
}

type Result struct {
	Authored    string
	Explanation string
	Audit       string
	Variants    []string
	RawAuthor   string
	RawAnalyst  string
}

// LegacyResult is the older two-field contract some callers still expect.
type LegacyResult struct {
	RefinedPrompt string
	Explanation   string
}

type Pipeline struct {
	Registry *provider.Registry
	// Fallback is the ordered list of model identifiers tried when the
	// requested model's provider is missing or unhealthy.
	Fallback     []string
	StageTimeout time.Duration
}

func NewPipeline(reg *provider.Registry, fallback []string) *Pipeline {
	return &Pipeline{Registry: reg, Fallback: fallback, StageTimeout: defaultStageTimeout}
}

// Refine runs the pipeline. In initialize mode only the Author runs, against
// a context-free prompt. In full mode the Analyst follows, and its failure
// downgrades the result instead of discarding the Author's work.
func (p *Pipeline) Refine(ctx context.Context, in Input) (*Result, error) {
	fragment := strings.TrimSpace(in.Fragment)
	if fragment == "" {
		return nil, errors.New("refiner: empty fragment")
	}

	if in.Initialize {
		raw, err := p.callModel(ctx, in.AuthorModel, buildInitializePrompt(fragment))
		if err != nil {
			return nil, err
		}
		authored, explanation := parseInitialize(raw)
		if authored == "" {
			return nil, errors.New("refiner: author returned empty result")
		}
		return &Result{Authored: authored, Explanation: explanation, RawAuthor: raw}, nil
	}

	rawAuthor, err := p.callModel(ctx, in.AuthorModel, buildAuthorPrompt(fragment, in.TurnContext))
	if err != nil {
		return nil, fmt.Errorf("refiner: author stage: %w", err)
	}
	explanation, authored := splitFinalOutput(rawAuthor)
	if authored == "" {
		return nil, errors.New("refiner: author returned empty result")
	}

	res := &Result{
		Authored:    authored,
		Explanation: explanation,
		Audit:       auditUnavailable,
		RawAuthor:   rawAuthor,
	}

	rawAnalyst, err := p.callModel(ctx, in.AnalystModel, buildAnalystPrompt(fragment, authored, in.TurnContext))
	if err != nil {
		logx.Warnf("refiner: analyst stage degraded: %v", err)
		return res, nil
	}
	res.RawAnalyst = rawAnalyst
	audit, variants := parseAnalyst(rawAnalyst)
	if audit != "" {
		res.Audit = audit
	}
	if len(variants) > maxVariants {
		variants = variants[:maxVariants]
	}
	res.Variants = variants
	return res, nil
}

// RefineLegacy adapts full-mode results to the older two-field shape.
func (p *Pipeline) RefineLegacy(ctx context.Context, fragment string, tc *TurnContext) (*LegacyResult, error) {
	res, err := p.Refine(ctx, Input{Fragment: fragment, TurnContext: tc})
	if err != nil {
		return nil, err
	}
	return &LegacyResult{RefinedPrompt: res.Authored, Explanation: res.Audit}, nil
}

// callModel resolves an adapter for the requested model, falling back through
// the configured list, and runs one prompt under the stage timeout. Envelope
// failures from the adapter surface as errors here: the pipeline has no use
// for a degraded stage transcript.
func (p *Pipeline) callModel(ctx context.Context, modelID, prompt string) (string, error) {
	a, model, err := p.resolveAdapter(ctx, modelID)
	if err != nil {
		return "", err
	}

	timeout := p.StageTimeout
	if timeout <= 0 {
		timeout = defaultStageTimeout
	}
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := provider.PromptRequest{Prompt: prompt}
	if model != "" {
		req.Meta = map[string]any{"model": model}
	}
	resp, err := a.SendPrompt(stageCtx, req, nil)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("%s: %s (%s)", a.Name(), resp.Meta.Error, resp.ErrorCode)
	}
	return resp.Text, nil
}

// resolveAdapter tries the requested model's provider, then each fallback
// entry in order. The returned model string is empty when the entry named a
// bare provider.
func (p *Pipeline) resolveAdapter(ctx context.Context, modelID string) (provider.Adapter, string, error) {
	tried := make([]string, 0, 1+len(p.Fallback))
	if strings.TrimSpace(modelID) != "" {
		tried = append(tried, modelID)
	}
	tried = append(tried, p.Fallback...)

	for _, id := range tried {
		prov, model := splitModelID(id)
		if prov == "" {
			continue
		}
		if !p.Registry.IsAvailable(ctx, prov) {
			logx.Debugf("refiner: %s unavailable, trying next", prov)
			continue
		}
		return p.Registry.GetAdapter(prov), model, nil
	}
	return nil, "", ErrNoProviderAvailable
}

// splitModelID parses "provider" or "provider/model-name".
func splitModelID(id string) (prov, model string) {
	id = strings.TrimSpace(id)
	if i := strings.IndexByte(id, '/'); i >= 0 {
		return strings.TrimSpace(id[:i]), strings.TrimSpace(id[i+1:])
	}
	return id, ""
}
