package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/cortexmem/memcore/internal/store"
	"github.com/cortexmem/memcore/pkg/config"
	"github.com/cortexmem/memcore/pkg/cortexerr"
	"github.com/cortexmem/memcore/pkg/observer"
)

// streamWorkerPoolSize bounds concurrent background tasks (progressive
// partial-message writes and fact extraction) spawned during one stream.
const streamWorkerPoolSize = 4

// StreamChunk is one element of a lazy, finite, non-restartable response
// stream. A non-nil Err terminates the stream; Text is ignored when Err
// is set.
type StreamChunk struct {
	Text string
	Err  error
}

// ResumeToken binds enough state to continue an interrupted stream.
type ResumeToken struct {
	ConversationID string
	MessageID      string
	ByteOffset     int
}

// CompleteInfo is passed to StreamHooks.OnComplete when the upstream
// closes normally.
type CompleteInfo struct {
	FullResponse   string
	TotalChunks    int
	DurationMs     int64
	FactsExtracted int
}

// StreamHooks are optional callbacks invoked during rememberStream. All
// fields may be nil.
type StreamHooks struct {
	OnChunk    func(chunk string)
	OnProgress func(accumulatedBytes int)
	OnComplete func(CompleteInfo)
	OnError    func(err error, recoverable bool, resumeToken *ResumeToken)
}

// StreamInput is one streamed agent response to absorb.
type StreamInput struct {
	MemorySpaceID  string
	ConversationID string // required; caller has already appended the user message
	UserID         string
	AgentID        string
	TenantID       string
	Chunks         <-chan StreamChunk
	ResumeFrom     *ResumeToken // optional: continue a message started by a prior call
}

// StreamMetrics reports timing and volume for one stream.
type StreamMetrics struct {
	FirstChunkMs          int64
	TotalMs               int64
	Chunks                int
	Bytes                 int
	EstimatedTokens       int
	ThroughputBytesPerSec float64
}

// PhaseTimings breaks StreamMetrics.TotalMs down by phase.
type PhaseTimings struct {
	StreamingMs      int64
	FactExtractionMs int64
	StorageMs        int64
	FinalizationMs   int64
}

// StreamResult is the outcome of one rememberStream call.
type StreamResult struct {
	Metrics     StreamMetrics
	Phases      PhaseTimings
	ResumeToken *ResumeToken
	Remember    *RememberResult // set once the final remember-equivalent pass completes
}

// RememberStream forwards response chunks downstream in original order
// while, in the background, progressively persisting a partial agent
// message and extracting facts. The fact graph is synced once, during
// finalization, from the final pass's facts; opts.GraphSyncIntervalMs is
// not read. The forward stream is never reordered, coalesced, or dropped;
// background tasks are best-effort and never block or cancel the forward
// path.
func (o *Orchestrator) RememberStream(ctx context.Context, in StreamInput, opts config.StreamingConfig, forward chan<- string, hooks StreamHooks, obs observer.OrchestrationObserver) (*StreamResult, error) {
	if strings.TrimSpace(in.MemorySpaceID) == "" || strings.TrimSpace(in.ConversationID) == "" {
		return nil, cortexerr.New(cortexerr.Validation, "orchestrator.rememberStream", "memorySpaceId and conversationId are required")
	}

	pool, err := ants.NewPool(streamWorkerPoolSize)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "orchestrator.rememberStream", "worker pool init failed", err)
	}
	defer pool.Release()

	streamStart := time.Now()
	safe := observer.Safe{Observer: obs}
	orchestrationID := store.NewID()
	safe.Start(orchestrationID)

	messageID := store.NewID()
	byteOffset := 0
	var accumulated strings.Builder
	if in.ResumeFrom != nil {
		messageID = in.ResumeFrom.MessageID
		byteOffset = in.ResumeFrom.ByteOffset
	} else {
		// Seed a placeholder agent message so progressive in-place writes
		// (and the final write, on any exit path) always have a row to
		// target.
		if err := o.Store.AddMessage(ctx, in.ConversationID, store.Message{
			ID: messageID, Role: store.RoleAgent, Content: "", AgentID: in.AgentID, Timestamp: time.Now().Unix(),
		}); err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "orchestrator.rememberStream", "placeholder message create failed", err)
		}
	}

	var (
		chunkCount      int
		byteCount       int
		firstChunkMs    int64
		lastPartialWrite time.Time
		lastExtractLen  int
		wg              sync.WaitGroup
		mu              sync.Mutex
		factsExtracted  int
		truncated       bool
	)

	timeout := time.Duration(opts.StreamTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var streamErr error
	var recoverable bool

loop:
	for {
		select {
		case <-ctx.Done():
			streamErr = ctx.Err()
			recoverable = false
			break loop
		case <-timer.C:
			streamErr = cortexerr.New(cortexerr.Transport, "orchestrator.rememberStream", "no chunk received before streamTimeout")
			recoverable = true
			break loop
		case chunk, ok := <-in.Chunks:
			if !ok {
				break loop
			}
			if chunk.Err != nil {
				streamErr = chunk.Err
				recoverable = true
				break loop
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(timeout)

			if chunkCount == 0 {
				firstChunkMs = time.Since(streamStart).Milliseconds()
			}
			chunkCount++
			byteCount += len(chunk.Text)
			if !truncated {
				accumulated.WriteString(chunk.Text)
			}

			if forward != nil {
				select {
				case forward <- chunk.Text:
				case <-ctx.Done():
					streamErr = ctx.Err()
					break loop
				}
			}
			if hooks.OnChunk != nil {
				hooks.OnChunk(chunk.Text)
			}
			if hooks.OnProgress != nil {
				hooks.OnProgress(byteCount)
			}

			if opts.PartialResponseIntervalMs > 0 && time.Since(lastPartialWrite) >= time.Duration(opts.PartialResponseIntervalMs)*time.Millisecond {
				lastPartialWrite = time.Now()
				text := accumulated.String()
				task := func() {
					_ = o.Store.UpdateMessage(context.Background(), in.ConversationID, store.Message{
						ID: messageID, Role: store.RoleAgent, Content: text, AgentID: in.AgentID, Timestamp: time.Now().Unix(),
					})
				}
				wg.Add(1)
				if submitErr := pool.Submit(func() { defer wg.Done(); task() }); submitErr != nil {
					wg.Done()
				}
			}

			if o.Extractor != nil && opts.FactExtractionThreshold > 0 {
				mu.Lock()
				shouldExtract := accumulated.Len()-lastExtractLen >= opts.FactExtractionThreshold
				if shouldExtract {
					lastExtractLen = accumulated.Len()
				}
				mu.Unlock()
				if shouldExtract {
					delta := accumulated.String()
					wg.Add(1)
					submitErr := pool.Submit(func() {
						defer wg.Done()
						n := o.extractDelta(context.Background(), in, delta)
						mu.Lock()
						factsExtracted += n
						mu.Unlock()
					})
					if submitErr != nil {
						wg.Done()
					}
				}
			}

			if !truncated && opts.MaxResponseLength > 0 && accumulated.Len() > opts.MaxResponseLength {
				// Memory bound: once the retained text exceeds
				// MaxResponseLength, later chunks are still forwarded and
				// counted but no longer retained, so the stored message
				// holds only the text retained up to this point.
				truncated = true
			}
		}
	}

	wg.Wait()

	fullText := accumulated.String()
	var resumeToken *ResumeToken

	if streamErr != nil {
		handling := opts.PartialFailureHandling
		if handling == "" {
			handling = "store-partial"
		}
		switch handling {
		case "rollback":
			_ = o.Store.UpdateMessage(ctx, in.ConversationID, store.Message{ID: messageID, Role: store.RoleAgent, Content: "", AgentID: in.AgentID, Timestamp: time.Now().Unix()})
		case "store-partial", "best-effort":
			_ = o.Store.UpdateMessage(ctx, in.ConversationID, store.Message{ID: messageID, Role: store.RoleAgent, Content: fullText, AgentID: in.AgentID, Timestamp: time.Now().Unix()})
		}
		if opts.GenerateResumeToken {
			resumeToken = &ResumeToken{ConversationID: in.ConversationID, MessageID: messageID, ByteOffset: byteOffset + byteCount}
		}
		safe.Layer(observer.LayerUpdate{OrchestrationID: orchestrationID, Layer: "stream", Status: observer.StatusError, Message: streamErr.Error()})
		if hooks.OnError != nil {
			hooks.OnError(streamErr, recoverable, resumeToken)
		}
		if handling == "best-effort" {
			streamErr = nil
		}
	}

	finalizeStart := time.Now()
	var rememberResult *RememberResult
	if streamErr == nil {
		_ = o.Store.UpdateMessage(ctx, in.ConversationID, store.Message{ID: messageID, Role: store.RoleAgent, Content: fullText, AgentID: in.AgentID, Timestamp: time.Now().Unix()})

		// The conversation append already happened via the placeholder
		// message and its in-place updates above, so finalization only
		// runs §4.6 steps 4-6 (vector, facts, graph) on the complete
		// text rather than re-invoking Remember's conversation-append.
		finalInput := RememberInput{
			MemorySpaceID: in.MemorySpaceID, AgentResponse: fullText, UserID: in.UserID, AgentID: in.AgentID, TenantID: in.TenantID,
		}
		rememberResult = &RememberResult{ConversationID: in.ConversationID}
		if memories, memErr := o.storeVectorMemories(ctx, finalInput, in.ConversationID, true); memErr == nil {
			rememberResult.Memories = memories
		}
		if o.Extractor != nil {
			if storedFacts, revisions, factErr := o.extractAndReviseFacts(ctx, finalInput); factErr == nil {
				rememberResult.Facts = storedFacts
				rememberResult.FactRevisions = revisions
				factsExtracted += len(storedFacts)
				if len(storedFacts) > 0 {
					_ = o.syncGraph(ctx, in.MemorySpaceID, storedFacts)
				}
			}
		}
	}
	finalizationMs := time.Since(finalizeStart).Milliseconds()

	totalMs := time.Since(streamStart).Milliseconds()
	throughput := 0.0
	if totalMs > 0 {
		throughput = float64(byteCount) / (float64(totalMs) / 1000)
	}

	if hooks.OnComplete != nil && streamErr == nil {
		hooks.OnComplete(CompleteInfo{FullResponse: fullText, TotalChunks: chunkCount, DurationMs: totalMs, FactsExtracted: factsExtracted})
	}
	safe.Complete(observer.CompletionSummary{OrchestrationID: orchestrationID, TotalLatencyMs: totalMs, CreatedIDs: map[string]string{"messageId": messageID}})

	result := &StreamResult{
		Metrics: StreamMetrics{
			FirstChunkMs: firstChunkMs, TotalMs: totalMs, Chunks: chunkCount, Bytes: byteCount,
			EstimatedTokens: byteCount / 4, ThroughputBytesPerSec: throughput,
		},
		Phases:      PhaseTimings{StreamingMs: totalMs - finalizationMs, FinalizationMs: finalizationMs},
		ResumeToken: resumeToken,
		Remember:    rememberResult,
	}
	return result, streamErr
}

// extractDelta runs one best-effort extraction + belief-revision pass on
// a streaming delta, returning how many facts were newly stored. Errors
// are swallowed: progressive extraction is explicitly best-effort and
// must never abort the forward stream.
func (o *Orchestrator) extractDelta(ctx context.Context, in StreamInput, delta string) int {
	storedFacts, _, err := o.extractAndReviseFacts(ctx, RememberInput{
		MemorySpaceID: in.MemorySpaceID,
		UserID:        in.UserID,
		AgentID:       in.AgentID,
		TenantID:      in.TenantID,
		AgentResponse: delta,
	})
	if err != nil {
		return 0
	}
	return len(storedFacts)
}
