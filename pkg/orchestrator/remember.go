// Package orchestrator implements the Memory Orchestrator (C6) and Stream
// Orchestrator (C7): the two entry points that thread one conversational
// turn through conversation storage, vector memory, fact extraction,
// belief revision, and graph sync, emitting layer events throughout.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/cortexerr"
	"github.com/cortexmem/memcore/pkg/extraction"
	"github.com/cortexmem/memcore/pkg/facts"
	"github.com/cortexmem/memcore/pkg/graphport"
	"github.com/cortexmem/memcore/pkg/observer"
	"github.com/cortexmem/memcore/pkg/ports"
	"github.com/cortexmem/memcore/pkg/telemetry"
)

// FactRevisionEvent records one belief-revision decision applied during a
// remember call, for callers that want to audit what changed.
type FactRevisionEvent struct {
	Kind           facts.DecisionKind
	FactID         string
	SupersededID   string
	Subject        string
}

// RememberInput is one conversational turn to absorb.
type RememberInput struct {
	MemorySpaceID    string
	ConversationID   string // empty creates a new conversation
	UserMessage      string
	AgentResponse    string
	UserID           string
	UserName         string
	AgentID          string
	ParticipantID    string
	GenerateEmbedding *bool // nil defers to Orchestrator default
	ExtractFacts      *bool // nil defers to Orchestrator default
	Importance        int
	Tags              []string
	TenantID          string
}

// RememberResult is what a single remember call produced, truthfully
// reflecting which layers succeeded.
type RememberResult struct {
	ConversationID string
	Memories       []*store.VectorMemory
	Facts          []*store.Fact
	FactRevisions  []FactRevisionEvent
}

// Orchestrator composes the data-access port, optional embedder/completer
// capabilities, belief revision, subject resolution, and optional graph
// sync into the remember/rememberStream contract.
type Orchestrator struct {
	Store     store.Storer
	Embedder  ports.Embedder // optional
	Extractor *extraction.Service // optional; nil disables fact extraction
	Revision  *facts.Engine
	Resolver  *facts.Resolver
	Graph     graphport.GraphAdapter // graphport.NoopAdapter{} when unconfigured

	DefaultGenerateEmbedding bool
	DefaultExtractFacts      bool

	Metrics *telemetry.OrchestrationMetrics // optional
}

// New builds an Orchestrator. graph may be nil, in which case it defaults
// to graphport.NoopAdapter{} so every graph call is a safe no-op.
func New(s store.Storer, embedder ports.Embedder, extractor *extraction.Service, revision *facts.Engine, resolver *facts.Resolver, graph graphport.GraphAdapter) *Orchestrator {
	if graph == nil {
		graph = graphport.NoopAdapter{}
	}
	if resolver == nil {
		resolver = facts.NewResolver()
	}
	return &Orchestrator{
		Store: s, Embedder: embedder, Extractor: extractor, Revision: revision, Resolver: resolver, Graph: graph,
		DefaultGenerateEmbedding: true, DefaultExtractFacts: true,
	}
}

// Remember absorbs one conversational turn: appends it to the
// conversation, stores vector memories, extracts and revises facts, and
// syncs the fact graph. obs may be nil.
func (o *Orchestrator) Remember(ctx context.Context, in RememberInput, obs observer.OrchestrationObserver) (*RememberResult, error) {
	if strings.TrimSpace(in.MemorySpaceID) == "" {
		return nil, cortexerr.New(cortexerr.Validation, "orchestrator.remember", "memorySpaceId is required")
	}
	if strings.TrimSpace(in.UserMessage) == "" && strings.TrimSpace(in.AgentResponse) == "" {
		return nil, cortexerr.New(cortexerr.Validation, "orchestrator.remember", "at least one of userMessage/agentResponse is required")
	}

	safe := observer.Safe{Observer: obs}
	orchestrationID := store.NewID()
	start := time.Now()
	safe.Start(orchestrationID)

	result := &RememberResult{}

	// --- conversation append (fatal on failure) ---
	convID, userMsgID, agentMsgID, err := o.appendConversation(ctx, in)
	if err != nil {
		safe.Layer(observer.LayerUpdate{OrchestrationID: orchestrationID, Layer: "conversation", Status: observer.StatusError, Message: err.Error()})
		return nil, err
	}
	result.ConversationID = convID
	safe.Layer(observer.LayerUpdate{OrchestrationID: orchestrationID, Layer: "conversation", Status: observer.StatusComplete, DetailIDs: []string{userMsgID, agentMsgID}})

	// --- vector store (best-effort) ---
	generateEmbedding := o.DefaultGenerateEmbedding
	if in.GenerateEmbedding != nil {
		generateEmbedding = *in.GenerateEmbedding
	}
	memStart := time.Now()
	memories, memErr := o.storeVectorMemories(ctx, in, convID, generateEmbedding)
	if memErr != nil {
		safe.Layer(observer.LayerUpdate{OrchestrationID: orchestrationID, Layer: "vector", Status: observer.StatusError, Message: memErr.Error()})
	} else {
		result.Memories = memories
		ids := make([]string, len(memories))
		for i, m := range memories {
			ids[i] = m.ID
		}
		safe.Layer(observer.LayerUpdate{OrchestrationID: orchestrationID, Layer: "vector", Status: observer.StatusComplete, DetailIDs: ids})
	}
	o.Metrics.RecordLayer(ctx, "vector", float64(time.Since(memStart).Milliseconds()), memErr != nil)

	// --- fact extraction + belief revision (best-effort) ---
	extractFacts := o.DefaultExtractFacts
	if in.ExtractFacts != nil {
		extractFacts = *in.ExtractFacts
	}
	factStart := time.Now()
	if !extractFacts || o.Extractor == nil {
		safe.Layer(observer.LayerUpdate{OrchestrationID: orchestrationID, Layer: "facts", Status: observer.StatusSkipped})
	} else {
		storedFacts, revisions, factErr := o.extractAndReviseFacts(ctx, in)
		if factErr != nil {
			safe.Layer(observer.LayerUpdate{OrchestrationID: orchestrationID, Layer: "facts", Status: observer.StatusError, Message: factErr.Error()})
		} else {
			result.Facts = storedFacts
			result.FactRevisions = revisions
			ids := make([]string, len(storedFacts))
			for i, f := range storedFacts {
				ids[i] = f.ID
			}
			safe.Layer(observer.LayerUpdate{OrchestrationID: orchestrationID, Layer: "facts", Status: observer.StatusComplete, DetailIDs: ids})
			for _, rev := range revisions {
				o.Metrics.RecordFactDecision(ctx, rev.Kind == facts.Create)
			}
		}
	}
	o.Metrics.RecordLayer(ctx, "facts", float64(time.Since(factStart).Milliseconds()), false)

	// --- graph sync (best-effort) ---
	graphStart := time.Now()
	if _, isNoop := o.Graph.(graphport.NoopAdapter); isNoop || len(result.Facts) == 0 {
		safe.Layer(observer.LayerUpdate{OrchestrationID: orchestrationID, Layer: "graph", Status: observer.StatusSkipped})
	} else {
		graphErr := o.syncGraph(ctx, in.MemorySpaceID, result.Facts)
		if graphErr != nil {
			safe.Layer(observer.LayerUpdate{OrchestrationID: orchestrationID, Layer: "graph", Status: observer.StatusError, Message: graphErr.Error()})
		} else {
			safe.Layer(observer.LayerUpdate{OrchestrationID: orchestrationID, Layer: "graph", Status: observer.StatusComplete})
		}
	}
	o.Metrics.RecordLayer(ctx, "graph", float64(time.Since(graphStart).Milliseconds()), false)

	safe.Complete(observer.CompletionSummary{
		OrchestrationID: orchestrationID,
		TotalLatencyMs:  time.Since(start).Milliseconds(),
		CreatedIDs:      map[string]string{"userMessageId": userMsgID, "agentMessageId": agentMsgID, "conversationId": convID},
	})
	return result, nil
}

func (o *Orchestrator) appendConversation(ctx context.Context, in RememberInput) (convID, userMsgID, agentMsgID string, err error) {
	convID = in.ConversationID
	if convID == "" {
		convID = store.NewID()
		conv := &store.Conversation{
			ID:            convID,
			MemorySpaceID: in.MemorySpaceID,
			Type:          store.ConversationUserAgent,
			Participants: store.Participants{
				UserID: in.UserID, AgentID: in.AgentID, ParticipantID: in.ParticipantID,
			},
			TenantID: in.TenantID,
		}
		if err = o.Store.CreateConversation(ctx, conv); err != nil {
			return "", "", "", cortexerr.Wrap(cortexerr.Transport, "orchestrator.remember", "conversation create failed", err)
		}
	}

	now := time.Now().Unix()
	if in.UserMessage != "" {
		userMsgID = store.NewID()
		if err = o.Store.AddMessage(ctx, convID, store.Message{ID: userMsgID, Role: store.RoleUser, Content: in.UserMessage, Timestamp: now}); err != nil {
			return "", "", "", cortexerr.Wrap(cortexerr.Transport, "orchestrator.remember", "user message append failed", err)
		}
	}
	if in.AgentResponse != "" {
		agentMsgID = store.NewID()
		if err = o.Store.AddMessage(ctx, convID, store.Message{ID: agentMsgID, Role: store.RoleAgent, Content: in.AgentResponse, AgentID: in.AgentID, Timestamp: now}); err != nil {
			return "", "", "", cortexerr.Wrap(cortexerr.Transport, "orchestrator.remember", "agent message append failed", err)
		}
	}
	return convID, userMsgID, agentMsgID, nil
}

func (o *Orchestrator) storeVectorMemories(ctx context.Context, in RememberInput, convID string, generateEmbedding bool) ([]*store.VectorMemory, error) {
	var out []*store.VectorMemory
	for _, content := range []string{in.UserMessage, in.AgentResponse} {
		if content == "" {
			continue
		}
		var embedding []float32
		if generateEmbedding && o.Embedder != nil {
			emb, err := o.Embedder.Embed(ctx, content)
			if err != nil {
				return out, cortexerr.Wrap(cortexerr.Degraded, "orchestrator.vector", "embedding failed", err)
			}
			embedding = emb
		}
		m := &store.VectorMemory{
			ID:            store.NewID(),
			MemorySpaceID: in.MemorySpaceID,
			UserID:        in.UserID,
			Content:       content,
			ContentType:   "text",
			Embedding:     embedding,
			Source:        store.VectorMemorySource{Type: store.SourceConversation},
			Metadata:      store.VectorMemoryMetadata{Importance: in.Importance, Tags: in.Tags},
			TenantID:      in.TenantID,
			CreatedAt:     time.Now().Unix(),
		}
		if err := o.Store.StoreMemory(ctx, m); err != nil {
			return out, cortexerr.Wrap(cortexerr.Transport, "orchestrator.vector", "store failed", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (o *Orchestrator) extractAndReviseFacts(ctx context.Context, in RememberInput) ([]*store.Fact, []FactRevisionEvent, error) {
	turnText := in.UserMessage + "\n" + in.AgentResponse
	extracted, err := o.Extractor.ExtractFromTurn(ctx, turnText)
	if err != nil {
		return nil, nil, err
	}

	resolveCtx := facts.ResolutionContext{SpeakerUserID: in.UserID, AgentID: in.AgentID}

	var stored []*store.Fact
	var revisions []FactRevisionEvent
	for _, cand := range extracted.Facts {
		subject := o.Resolver.Resolve(cand.Subject, resolveCtx)
		predicate := facts.NormalizePredicate(cand.Predicate)

		relations := make([]store.FactRelation, 0, len(cand.Relations))
		for _, r := range cand.Relations {
			relations = append(relations, store.FactRelation{Subject: r.Subject, Predicate: r.Predicate, Object: r.Object})
		}

		candidate := &store.Fact{
			ID:              store.NewID(),
			MemorySpaceID:   in.MemorySpaceID,
			UserID:          in.UserID,
			Fact:            cand.Fact,
			FactType:        store.FactType(cand.FactType),
			Subject:         subject,
			Predicate:       predicate,
			Object:          cand.Object,
			Confidence:      cand.Confidence,
			ValidFrom:       time.Now().Unix(),
			Category:        cand.Category,
			SearchAliases:   cand.SearchAliases,
			SemanticContext: cand.SemanticContext,
			Entities:        cand.Entities,
			Relations:       relations,
			TenantID:        in.TenantID,
		}

		active, err := o.Store.ListActiveFactsForSubject(ctx, in.MemorySpaceID, subject)
		if err != nil {
			return stored, revisions, cortexerr.Wrap(cortexerr.Transport, "orchestrator.facts", "list active facts failed", err)
		}

		decision, err := o.Revision.Decide(ctx, candidate, active)
		if err != nil {
			return stored, revisions, cortexerr.Wrap(cortexerr.Degraded, "orchestrator.facts", "belief revision failed", err)
		}

		switch decision.Kind {
		case facts.Create:
			if err := o.Store.StoreFact(ctx, candidate); err != nil {
				return stored, revisions, cortexerr.Wrap(cortexerr.Transport, "orchestrator.facts", "store failed", err)
			}
			stored = append(stored, candidate)
			revisions = append(revisions, FactRevisionEvent{Kind: decision.Kind, FactID: candidate.ID, Subject: subject})
		case facts.Update:
			if decision.Target != nil {
				// UPDATE keeps the existing fact's id/history slot but
				// refreshes its content in place, unlike SUPERSEDE which
				// mints a new fact and retires the old one.
				decision.Target.Fact = candidate.Fact
				decision.Target.Object = candidate.Object
				decision.Target.Confidence = candidate.Confidence
				decision.Target.SearchAliases = candidate.SearchAliases
				decision.Target.SemanticContext = candidate.SemanticContext
				decision.Target.Entities = candidate.Entities
				decision.Target.Relations = candidate.Relations
				if err := o.Store.UpdateFact(ctx, decision.Target); err != nil {
					return stored, revisions, cortexerr.Wrap(cortexerr.Transport, "orchestrator.facts", "update failed", err)
				}
				stored = append(stored, decision.Target)
			}
			revisions = append(revisions, FactRevisionEvent{Kind: decision.Kind, FactID: decision.Target.ID, Subject: subject})
		case facts.Supersede:
			if err := o.Store.StoreFact(ctx, candidate); err != nil {
				return stored, revisions, cortexerr.Wrap(cortexerr.Transport, "orchestrator.facts", "store failed", err)
			}
			if decision.Target != nil {
				until := time.Now().Unix()
				decision.Target.ValidUntil = &until
				decision.Target.SupersededBy = candidate.ID
				if err := o.Store.UpdateFact(ctx, decision.Target); err != nil {
					return stored, revisions, cortexerr.Wrap(cortexerr.Transport, "orchestrator.facts", "supersede failed", err)
				}
			}
			stored = append(stored, candidate)
			supersededID := ""
			if decision.Target != nil {
				supersededID = decision.Target.ID
			}
			revisions = append(revisions, FactRevisionEvent{Kind: decision.Kind, FactID: candidate.ID, SupersededID: supersededID, Subject: subject})
		case facts.SkipDuplicate:
			if decision.Target != nil {
				decision.Target.Confidence = decision.NewConfidence
				if err := o.Store.UpdateFact(ctx, decision.Target); err != nil {
					return stored, revisions, cortexerr.Wrap(cortexerr.Transport, "orchestrator.facts", "confidence bump failed", err)
				}
			}
			revisions = append(revisions, FactRevisionEvent{Kind: decision.Kind, Subject: subject})
		}
	}
	return stored, revisions, nil
}

func (o *Orchestrator) syncGraph(ctx context.Context, memorySpaceID string, newFacts []*store.Fact) error {
	var relations []graphport.Relation
	for _, f := range newFacts {
		if f.Predicate != "" {
			relations = append(relations, graphport.Relation{Subject: f.Subject, Predicate: f.Predicate, Object: f.Object})
		}
		for _, r := range f.Relations {
			relations = append(relations, graphport.Relation{Subject: r.Subject, Predicate: r.Predicate, Object: r.Object})
		}
	}
	if len(relations) == 0 {
		return nil
	}
	if err := o.Graph.UpsertRelations(ctx, memorySpaceID, relations); err != nil {
		return cortexerr.Wrap(cortexerr.Degraded, "orchestrator.graph", "upsert failed", err)
	}
	return nil
}
