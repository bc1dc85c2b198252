// Package store is the Data-Access Port: a narrow interface over the eight
// logical tables backing the memory orchestrator, plus the reference SQLite
// implementation of that interface.
package store

import "encoding/json"

// MemorySpaceType enumerates the kinds of tenancy boundary a space can be.
type MemorySpaceType string

const (
	SpacePersonal MemorySpaceType = "personal"
	SpaceTeam     MemorySpaceType = "team"
	SpaceProject  MemorySpaceType = "project"
	SpaceCustom   MemorySpaceType = "custom"
)

// MemorySpaceStatus enumerates the lifecycle states of a memory space.
type MemorySpaceStatus string

const (
	SpaceActive   MemorySpaceStatus = "active"
	SpaceArchived MemorySpaceStatus = "archived"
)

// MemorySpace is the logical tenancy boundary scoping conversations,
// memories, facts and contexts.
type MemorySpace struct {
	ID        string            `json:"id"`
	Type      MemorySpaceType   `json:"type"`
	Status    MemorySpaceStatus `json:"status"`
	TenantID  string            `json:"tenantId,omitempty"`
	CreatedAt int64             `json:"createdAt"`
	UpdatedAt int64             `json:"updatedAt"`
}

// UserProfile is an append-only versioned record. Update produces version
// N+1 and pushes the prior payload onto PreviousVersions, bounded to 10.
type UserProfile struct {
	ID               string            `json:"id"`
	Data             json.RawMessage   `json:"data"`
	Version          int               `json:"version"`
	PreviousVersions []UserProfileSnap `json:"previousVersions"`
	TenantID         string            `json:"tenantId,omitempty"`
	CreatedAt        int64             `json:"createdAt"`
	UpdatedAt        int64             `json:"updatedAt"`
}

// MaxPreviousVersions bounds the append-only history kept per user.
const MaxPreviousVersions = 10

// UserProfileSnap is one retained prior payload of a UserProfile.
type UserProfileSnap struct {
	Version   int             `json:"version"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt int64           `json:"updatedAt"`
}

// Agent is the required counterparty for every user-agent conversation.
type Agent struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	TenantID    string `json:"tenantId,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

// ConversationType enumerates the kinds of conversation a space can hold.
type ConversationType string

const (
	ConversationUserAgent  ConversationType = "user-agent"
	ConversationAgentAgent ConversationType = "agent-agent"
	ConversationHive       ConversationType = "hive"
)

// Participants names the counterparties of a conversation. For
// user-agent conversations both UserID and AgentID are required.
type Participants struct {
	UserID        string   `json:"userId,omitempty"`
	AgentID       string   `json:"agentId,omitempty"`
	ParticipantID string   `json:"participantId,omitempty"`
	AgentIDs      []string `json:"agentIds,omitempty"`
}

// MessageRole enumerates who produced a conversation message.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleSystem MessageRole = "system"
)

// Message is one entry in a conversation's append-only log.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	AgentID   string      `json:"agentId,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Conversation is an ordered, append-only message log scoped to one
// memory space.
type Conversation struct {
	ID            string           `json:"id"`
	MemorySpaceID string           `json:"memorySpaceId"`
	Type          ConversationType `json:"type"`
	Participants  Participants     `json:"participants"`
	Messages      []Message        `json:"messages"`
	MessageCount  int              `json:"messageCount"`
	TenantID      string           `json:"tenantId,omitempty"`
	CreatedAt     int64            `json:"createdAt"`
	UpdatedAt     int64            `json:"updatedAt"`
}

// VectorMemorySourceType enumerates where a vector memory originated.
type VectorMemorySourceType string

const (
	SourceConversation   VectorMemorySourceType = "conversation"
	SourceSystem         VectorMemorySourceType = "system"
	SourceTool           VectorMemorySourceType = "tool"
	SourceA2A            VectorMemorySourceType = "a2a"
	SourceFactExtraction VectorMemorySourceType = "fact-extraction"
)

// VectorMemorySource records the origin of a VectorMemory.
type VectorMemorySource struct {
	Type VectorMemorySourceType `json:"type"`
}

// VectorMemoryMetadata carries ranking-relevant side information.
type VectorMemoryMetadata struct {
	Importance int      `json:"importance"` // 0-100
	Tags       []string `json:"tags,omitempty"`
}

// VectorMemory is one semantically searchable memory item.
type VectorMemory struct {
	ID            string               `json:"id"`
	MemorySpaceID string               `json:"memorySpaceId"`
	UserID        string               `json:"userId,omitempty"`
	Content       string               `json:"content"`
	ContentType   string               `json:"contentType"`
	Embedding     []float32            `json:"embedding,omitempty"`
	Source        VectorMemorySource   `json:"source"`
	Metadata      VectorMemoryMetadata `json:"metadata"`
	TenantID      string               `json:"tenantId,omitempty"`
	CreatedAt     int64                `json:"createdAt"`
}

// FactType enumerates the kind of natural-language statement a Fact encodes.
type FactType string

const (
	FactPreference   FactType = "preference"
	FactIdentity     FactType = "identity"
	FactKnowledge    FactType = "knowledge"
	FactRelationship FactType = "relationship"
	FactEvent        FactType = "event"
	FactObservation  FactType = "observation"
	FactCustom       FactType = "custom"
)

// FactRelation is a (subject, predicate, object) triple extracted alongside
// a fact, feeding graph sync.
type FactRelation struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Fact is a distilled natural-language statement with a belief-revision
// slot of (subject, predicate). A fact is active iff ValidUntil is nil.
type Fact struct {
	ID              string         `json:"id"`
	MemorySpaceID   string         `json:"memorySpaceId"`
	UserID          string         `json:"userId,omitempty"`
	Fact            string         `json:"fact"`
	FactType        FactType       `json:"factType"`
	Subject         string         `json:"subject"`
	Predicate       string         `json:"predicate,omitempty"`
	Object          string         `json:"object,omitempty"`
	Confidence      float64        `json:"confidence"` // 0-100
	ValidFrom       int64          `json:"validFrom"`
	ValidUntil      *int64         `json:"validUntil,omitempty"`
	SupersededBy    string         `json:"supersededBy,omitempty"`
	Category        string         `json:"category,omitempty"`
	SearchAliases   []string       `json:"searchAliases,omitempty"`
	SemanticContext string         `json:"semanticContext,omitempty"`
	Entities        []string       `json:"entities,omitempty"`
	Relations       []FactRelation `json:"relations,omitempty"`
	TenantID        string         `json:"tenantId,omitempty"`
}

// IsActive reports whether the fact has not been superseded.
func (f *Fact) IsActive() bool { return f.ValidUntil == nil }

// Context is one node of the per-space context forest.
type Context struct {
	ID            string          `json:"id"`
	MemorySpaceID string          `json:"memorySpaceId"`
	ParentID      string          `json:"parentId,omitempty"`
	ChildrenIDs   []string        `json:"childrenIds,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	TenantID      string          `json:"tenantId,omitempty"`
	CreatedAt     int64           `json:"createdAt"`
	UpdatedAt     int64           `json:"updatedAt"`
}

// ImmutableRecord is the generic versioned KV used for user profiles and
// other append-only types.
type ImmutableRecord struct {
	Type             string            `json:"type"`
	ID               string            `json:"id"`
	Data             json.RawMessage   `json:"data"`
	Version          int               `json:"version"`
	PreviousVersions []UserProfileSnap `json:"previousVersions,omitempty"`
	UserID           string            `json:"userId,omitempty"`
	TenantID         string            `json:"tenantId,omitempty"`
	CreatedAt        int64             `json:"createdAt"`
	UpdatedAt        int64             `json:"updatedAt"`
}

// MutableRecord is a last-write-wins KV row.
type MutableRecord struct {
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UserID    string          `json:"userId,omitempty"`
	TenantID  string          `json:"tenantId,omitempty"`
	UpdatedAt int64           `json:"updatedAt"`
}
