// Package cortex is the library surface of the memory orchestrator: one
// Client wires storage, embedding/completion, graph sync, belief revision,
// and recall into the handful of calls an agent host actually makes --
// remember, rememberStream, recall, and the supporting CRUD surfaces for
// conversations, facts, memory spaces, users, contexts, and cascade
// deletion.
package cortex

import (
	"context"
	"strings"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/cascade"
	"github.com/cortexmem/memcore/pkg/config"
	"github.com/cortexmem/memcore/pkg/cortexerr"
	"github.com/cortexmem/memcore/pkg/extraction"
	"github.com/cortexmem/memcore/pkg/facts"
	"github.com/cortexmem/memcore/pkg/graphport"
	"github.com/cortexmem/memcore/pkg/llmclient"
	"github.com/cortexmem/memcore/pkg/observer"
	"github.com/cortexmem/memcore/pkg/orchestrator"
	"github.com/cortexmem/memcore/pkg/ports"
	"github.com/cortexmem/memcore/pkg/recall"
	"github.com/cortexmem/memcore/pkg/telemetry"
)

// Client is the assembled memory orchestrator: every capability port wired
// to a concrete backend per Config, plus the facade methods an agent host
// calls. The zero value is not usable; build one with New.
type Client struct {
	cfg Config

	store store.Storer
	graph graphport.GraphAdapter
	llm   *llmclient.Client

	Orchestrator *orchestrator.Orchestrator
	Recall       *recall.Planner
	Cascade      *cascade.Coordinator
	Telemetry    *telemetry.Providers
	Observer     observer.OrchestrationObserver

	Memory        *MemoryAPI
	Conversations *ConversationsAPI
	Facts         *FactsAPI
	MemorySpaces  *MemorySpacesAPI
	Users         *UsersAPI
	Contexts      *ContextsAPI
	Immutable     *ImmutableAPI
	Mutable       *MutableAPI
}

// Config is the construction-time configuration for a Client: an alias of
// pkg/config.Config (the layered defaults/TOML/env resolution). The
// observer implementation is not part of it; it is New's obs argument.
type Config = config.Config

// New assembles a Client from a resolved Config. Pass config.Default() or
// config.Load(path) to obtain one. An empty Graph.URI leaves graph sync a
// safe no-op (graphport.NoopAdapter); an unconfigured LLM leaves
// embedding/fact-extraction a safe no-op (extraction is skipped, not
// errored).
func New(ctx context.Context, cfg Config, obs observer.OrchestrationObserver) (*Client, error) {
	s, err := store.NewSQLiteStoreWithDSN(cfg.DatabaseDSN)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "memcore.new", "store init failed", err)
	}

	var graph graphport.GraphAdapter = graphport.NoopAdapter{}
	if strings.TrimSpace(cfg.Graph.URI) != "" && cfg.GraphSync {
		adapter, gerr := graphport.NewNeo4jAdapter(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password)
		if gerr != nil {
			_ = s.Close()
			return nil, cortexerr.Wrap(cortexerr.Transport, "memcore.new", "graph adapter init failed", gerr)
		}
		graph = adapter
	}

	var llm *llmclient.Client
	var embedder ports.Embedder
	var completer ports.Completer
	if cfg.LLM.APIKey != "" && cfg.LLM.Model != "" {
		llm = llmclient.New(llmclient.Config{
			Provider:   llmclient.Provider(cfg.LLM.Provider),
			APIKey:     cfg.LLM.APIKey,
			Model:      cfg.LLM.Model,
			EmbedModel: cfg.LLM.EmbedModel,
		})
		embedder = llm
		completer = llm
	}

	var extractor *extraction.Service
	if cfg.FactExtraction && completer != nil {
		extractor = extraction.NewService(completer, extraction.NewKnownSubjects())
	}

	revisionCfg := facts.DefaultConfig()
	revisionCfg.Enabled = cfg.BeliefRevision.Enabled
	revisionCfg.SlotMatching = cfg.BeliefRevision.SlotMatching
	revisionCfg.LLMResolution = cfg.BeliefRevision.LLMResolution
	revisionEngine := facts.NewEngine(revisionCfg, completer)
	resolver := facts.NewResolver()

	orch := orchestrator.New(s, embedder, extractor, revisionEngine, resolver, graph)

	var providers *telemetry.Providers
	if strings.TrimSpace(cfg.Telemetry.Endpoint) != "" {
		providers, err = telemetry.Setup(ctx, telemetry.Config{
			ServiceName: cfg.Telemetry.ServiceName, Endpoint: cfg.Telemetry.Endpoint, Insecure: cfg.Telemetry.Insecure,
		})
		if err != nil {
			_ = s.Close()
			return nil, cortexerr.Wrap(cortexerr.Transport, "memcore.new", "telemetry init failed", err)
		}
		if metrics, merr := telemetry.NewOrchestrationMetrics(providers.Meter); merr == nil {
			orch.Metrics = metrics
		}
	}

	if obs == nil {
		obs = observer.NoopObserver{}
	}

	c := &Client{
		cfg: cfg, store: s, graph: graph, llm: llm,
		Orchestrator: orch,
		Recall:       recall.NewPlanner(s, embedder, graph),
		Cascade:      cascade.New(s, graph),
		Telemetry:    providers,
		Observer:     obs,
	}
	c.Memory = &MemoryAPI{c: c}
	c.Conversations = &ConversationsAPI{c: c}
	c.Facts = &FactsAPI{c: c}
	c.MemorySpaces = &MemorySpacesAPI{c: c}
	c.Users = &UsersAPI{c: c}
	c.Contexts = &ContextsAPI{c: c}
	c.Immutable = &ImmutableAPI{c: c}
	c.Mutable = &MutableAPI{c: c}
	return c, nil
}

// Close releases the store, graph adapter, and telemetry providers. Safe
// to call even if some of those were never configured.
func (c *Client) Close(ctx context.Context) error {
	var first error
	if c.Telemetry != nil {
		if err := c.Telemetry.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	if _, isNoop := c.graph.(graphport.NoopAdapter); !isNoop {
		if err := c.graph.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	if err := c.store.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
