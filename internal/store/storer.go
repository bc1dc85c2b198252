package store

import "context"

// MemorySearchQuery parameterizes a vector-memory search.
type MemorySearchQuery struct {
	MemorySpaceID string
	UserID        string // optional filter
	Embedding     []float32
	Keyword       string
	MinImportance int
	Limit         int
}

// MemorySearchHit is one ranked vector-memory search result.
type MemorySearchHit struct {
	Memory     VectorMemory
	Similarity float64 // cosine similarity in [-1,1], or keyword overlap surrogate
}

// FactSearchQuery parameterizes an active-fact search.
type FactSearchQuery struct {
	MemorySpaceID  string
	UserID         string
	Keyword        string
	ActiveOnly     bool
	Limit          int
}

// FactSearchHit is one ranked fact search result.
type FactSearchHit struct {
	Fact  Fact
	Score float64 // alias/keyword overlap surrogate for cos_sim
}

// SpaceCascadeCounts tallies what a space-scoped cascade deletion removed.
type SpaceCascadeCounts struct {
	ConversationsDeleted  int
	VectorMemoriesDeleted int
	FactsDeleted          int
	ContextsDeleted       int
}

// UserCascadeCounts tallies what a user-scoped cascade deletion removed.
type UserCascadeCounts struct {
	ConversationsDeleted   int
	VectorMemoriesDeleted  int
	FactsDeleted           int
	ContextsDeleted        int
	MutableRecordsDeleted  int
	ImmutableRecordsDeleted int
	UserProfileDeleted     bool
}

// Storer is the Data-Access Port (C1): a single backend transaction per
// operation, grouped by the table it touches. Every write either commits
// entirely or leaves storage unchanged.
type Storer interface {
	// --- memorySpaces ---
	RegisterMemorySpace(ctx context.Context, s *MemorySpace) error
	GetMemorySpace(ctx context.Context, id string) (*MemorySpace, error)
	ListMemorySpaces(ctx context.Context, tenantID string) ([]*MemorySpace, error)
	ArchiveMemorySpace(ctx context.Context, id string) error
	ReactivateMemorySpace(ctx context.Context, id string) error
	DeleteMemorySpaceCascade(ctx context.Context, id string, dryRun bool) (*SpaceCascadeCounts, error)

	// --- agents ---
	RegisterAgent(ctx context.Context, a *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)

	// --- conversations ---
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id, tenantID string) (*Conversation, error)
	AddMessage(ctx context.Context, conversationID string, msg Message) error
	// UpdateMessage overwrites an existing message's content in place,
	// identified by id, without touching message_count. Used for
	// progressive (partial) streamed-response writes.
	UpdateMessage(ctx context.Context, conversationID string, msg Message) error
	DeleteConversation(ctx context.Context, id string) error
	ListConversations(ctx context.Context, memorySpaceID, userID, tenantID string) ([]*Conversation, error)
	CountConversations(ctx context.Context, memorySpaceID string) (int, error)

	// --- memories (vector) ---
	StoreMemory(ctx context.Context, m *VectorMemory) error
	SearchMemories(ctx context.Context, q MemorySearchQuery) ([]MemorySearchHit, error)
	ListMemories(ctx context.Context, memorySpaceID, userID string) ([]*VectorMemory, error)
	GetMemory(ctx context.Context, id string) (*VectorMemory, error)
	DeleteMemory(ctx context.Context, id string) error
	DeleteManyMemories(ctx context.Context, ids []string) (int, error)
	PurgeAllMemories(ctx context.Context, memorySpaceID string) (int, error)

	// --- facts ---
	StoreFact(ctx context.Context, f *Fact) error
	SearchFacts(ctx context.Context, q FactSearchQuery) ([]FactSearchHit, error)
	ListActiveFactsForSubject(ctx context.Context, memorySpaceID, subject string) ([]*Fact, error)
	ListFacts(ctx context.Context, memorySpaceID, userID string) ([]*Fact, error)
	GetFact(ctx context.Context, id, tenantID string) (*Fact, error)
	UpdateFact(ctx context.Context, f *Fact) error
	DeleteFact(ctx context.Context, id string) error
	FactHistory(ctx context.Context, memorySpaceID, subject, predicate string) ([]*Fact, error)
	FactSupersessionChain(ctx context.Context, factID string) ([]*Fact, error)
	PurgeAllFacts(ctx context.Context, memorySpaceID string) (int, error)

	// --- contexts ---
	CreateContext(ctx context.Context, c *Context) error
	GetContext(ctx context.Context, id string, includeChain bool) (*Context, []*Context, error)
	UpdateContext(ctx context.Context, c *Context) error
	GetContextChildren(ctx context.Context, id string) ([]*Context, error)
	DeleteContext(ctx context.Context, id string) error
	ContextHistory(ctx context.Context, memorySpaceID string) ([]*Context, error)

	// --- immutable (users piggyback on this) ---
	StoreImmutable(ctx context.Context, r *ImmutableRecord) error
	GetImmutable(ctx context.Context, recordType, id string) (*ImmutableRecord, error)
	GetImmutableVersion(ctx context.Context, recordType, id string, version int) (*ImmutableRecord, error)
	ListImmutable(ctx context.Context, recordType, userID string) ([]*ImmutableRecord, error)
	PurgeImmutable(ctx context.Context, recordType, id string) error

	// --- mutable ---
	SetMutable(ctx context.Context, r *MutableRecord) error
	GetMutable(ctx context.Context, namespace, key string) (*MutableRecord, error)
	DeleteMutable(ctx context.Context, namespace, key string) error
	PurgeMutableNamespace(ctx context.Context, namespace, userID string) (int, error)

	// --- cascade support queries ---
	UserOwnedCounts(ctx context.Context, userID string) (*UserCascadeCounts, error)
	DeleteUserCascade(ctx context.Context, userID string, dryRun bool) (*UserCascadeCounts, error)

	Close() error
}
