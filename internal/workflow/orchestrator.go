// Package workflow fans one user prompt out to every resolved provider, one
// independent adapter call per provider, and folds the results into a
// persisted turn. A failed resolve aborts before any provider is called; a
// failed provider call never disturbs its siblings.
package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/danshapiro/chorus/internal/logx"
	"github.com/danshapiro/chorus/internal/provider"
	"github.com/danshapiro/chorus/internal/resolve"
	"github.com/danshapiro/chorus/internal/store"
)

type Orchestrator struct {
	Resolver *resolve.Resolver
	Registry *provider.Registry

	// Sink persists the finished turn. Nil means the turn is not persisted,
	// which single-shot CLI calls use.
	Sink store.TurnSink

	// Events receives best-effort progress notifications. Optional.
	Events *Events
}

func NewOrchestrator(r *resolve.Resolver, reg *provider.Registry, sink store.TurnSink) *Orchestrator {
	return &Orchestrator{Resolver: r, Registry: reg, Sink: sink}
}

// TurnResult is the settled outcome of one fan-out.
type TurnResult struct {
	TurnID    string
	SessionID string
	Responses map[string]provider.ProviderResponse
	// Contexts holds the continuation state each provider carries into the
	// next turn, already in the canonical flat shape.
	Contexts map[string]resolve.ProviderContext
}

// Run resolves provider contexts for the request, asks every resolved
// provider concurrently, and persists the resulting turn. The per-provider
// calls share nothing but the response set; each derives its own cancellation
// from ctx.
func (o *Orchestrator) Run(ctx context.Context, req resolve.Request, prompt string) (*TurnResult, error) {
	resolved, err := o.Resolver.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	turnID := ulid.Make().String()
	for id, pc := range resolved.ProviderContexts {
		logx.Debugf("workflow %s: %s context %s", turnID, id, resolve.Fingerprint(pc))
	}
	set := provider.NewResponseSet()

	var mu sync.Mutex
	next := make(map[string]resolve.ProviderContext, len(resolved.ProviderContexts))

	var wg sync.WaitGroup
	for id, pc := range resolved.ProviderContexts {
		wg.Add(1)
		go func(id string, pc resolve.ProviderContext) {
			defer wg.Done()
			env := o.askOne(ctx, id, pc, prompt, req.SessionID, set)
			set.Settle(env)
			o.Events.emit(Event{Kind: EventSettled, ProviderID: id, TurnID: turnID, OK: env.OK})

			mu.Lock()
			next[id] = nextContext(pc, env)
			mu.Unlock()
		}(id, pc)
	}
	wg.Wait()

	res := &TurnResult{
		TurnID:    turnID,
		SessionID: req.SessionID,
		Responses: set.All(),
		Contexts:  next,
	}
	if o.Sink != nil {
		if err := o.Sink.PutTurn(ctx, buildTurn(res)); err != nil {
			logx.Errorf("workflow: persist turn %s: %v", turnID, err)
			return res, err
		}
		o.Events.emit(Event{Kind: EventTurnSaved, TurnID: turnID})
	}
	return res, nil
}

// askOne runs a single provider call and always comes back with an envelope.
// Adapter contract violations and missing adapters settle as failures here so
// sibling calls are never affected.
func (o *Orchestrator) askOne(ctx context.Context, id string, pc resolve.ProviderContext, prompt, sessionID string, set *provider.ResponseSet) provider.Response {
	start := time.Now()
	a := o.Registry.GetAdapter(id)
	if a == nil {
		return provider.Failure(id, start, provider.Classification{Type: provider.ErrKindUnknown}, "no adapter registered")
	}
	env, err := provider.Ask(ctx, a, prompt, toAdapterContext(pc), sessionID, func(ch provider.Chunk) {
		set.ApplyChunk(ch)
		o.Events.emit(Event{Kind: EventChunk, ProviderID: ch.ProviderID, Text: ch.Text})
	})
	if err != nil {
		cls := provider.Classify(id, err)
		return provider.Failure(id, start, cls, err.Error())
	}
	return env
}

// toAdapterContext converts the resolver's flat struct into the map shape the
// adapter boundary accepts.
func toAdapterContext(pc resolve.ProviderContext) provider.Context {
	out := provider.Context{}
	if pc.NewJoiner {
		out["isNewJoiner"] = true
	}
	if pc.ConversationID != "" {
		out["conversationId"] = pc.ConversationID
	}
	if pc.Cursor != "" {
		out["cursor"] = pc.Cursor
	}
	if pc.Model != "" {
		out["model"] = pc.Model
	}
	if pc.Token != "" {
		out["token"] = pc.Token
	}
	return out
}

// nextContext derives the continuation state a provider carries forward. A
// failed call keeps the prior state untouched so nothing is lost to a
// transient error; a new joiner that failed stays a new joiner.
func nextContext(prior resolve.ProviderContext, env provider.Response) resolve.ProviderContext {
	if !env.OK {
		return prior
	}
	pc := resolve.ProviderContext{
		ConversationID: prior.ConversationID,
		Cursor:         env.Meta.Cursor,
		Model:          env.Meta.ModelName,
		Token:          env.Meta.Token,
	}
	if pc.ConversationID == "" {
		pc.ConversationID = env.Meta.Cursor
	}
	if pc.Model == "" {
		pc.Model = env.Meta.Model
	}
	if pc == (resolve.ProviderContext{}) {
		return resolve.NewJoinerContext()
	}
	return pc
}

func buildTurn(res *TurnResult) store.Turn {
	turn := store.Turn{
		ID:               res.TurnID,
		SessionID:        res.SessionID,
		ProviderContexts: make(map[string]json.RawMessage, len(res.Contexts)),
	}
	for id, pc := range res.Contexts {
		raw, err := json.Marshal(pc)
		if err != nil {
			logx.Warnf("workflow: encode context for %s: %v", id, err)
			continue
		}
		turn.ProviderContexts[id] = raw
	}
	return turn
}
