// Package store's reference Storer implementation. Uses
// github.com/ncruces/go-sqlite3's database/sql driver (pure Go, no cgo) with
// github.com/asg017/sqlite-vec-go-bindings loaded as an extension so vector
// similarity can be computed in SQL via vec_distance_cosine/vec_f32 instead
// of a Go-side linear scan.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/cortexmem/memcore/pkg/cortexerr"
)

// SQLiteStore is the reference backend: one embedded SQLite database per
// process. Safe for concurrent use.
type SQLiteStore struct {
	mu    sync.RWMutex
	db    *sql.DB
	cache *readCache
}

const schema = `
CREATE TABLE IF NOT EXISTS memory_spaces (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    tenant_id TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
    id TEXT PRIMARY KEY,
    display_name TEXT,
    tenant_id TEXT,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    memory_space_id TEXT NOT NULL,
    type TEXT NOT NULL,
    user_id TEXT,
    agent_id TEXT,
    participant_id TEXT,
    agent_ids TEXT,
    message_count INTEGER NOT NULL DEFAULT 0,
    tenant_id TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_space ON conversations(memory_space_id);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    agent_id TEXT,
    seq INTEGER NOT NULL,
    timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);

CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    memory_space_id TEXT NOT NULL,
    user_id TEXT,
    content TEXT NOT NULL,
    content_type TEXT,
    embedding BLOB,
    source_type TEXT NOT NULL,
    importance INTEGER DEFAULT 0,
    tags TEXT,
    tenant_id TEXT,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_space ON memories(memory_space_id);
CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id);

CREATE TABLE IF NOT EXISTS facts (
    id TEXT PRIMARY KEY,
    memory_space_id TEXT NOT NULL,
    user_id TEXT,
    fact TEXT NOT NULL,
    fact_type TEXT NOT NULL,
    subject TEXT NOT NULL,
    predicate TEXT,
    object TEXT,
    confidence REAL NOT NULL DEFAULT 0,
    valid_from INTEGER NOT NULL,
    valid_until INTEGER,
    superseded_by TEXT,
    category TEXT,
    search_aliases TEXT,
    semantic_context TEXT,
    entities TEXT,
    relations TEXT,
    tenant_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_facts_space_subject ON facts(memory_space_id, subject, predicate);
CREATE INDEX IF NOT EXISTS idx_facts_active ON facts(memory_space_id) WHERE valid_until IS NULL;
CREATE INDEX IF NOT EXISTS idx_facts_user ON facts(user_id);

CREATE TABLE IF NOT EXISTS contexts (
    id TEXT PRIMARY KEY,
    memory_space_id TEXT NOT NULL,
    parent_id TEXT,
    payload TEXT,
    tenant_id TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contexts_parent ON contexts(parent_id);
CREATE INDEX IF NOT EXISTS idx_contexts_space ON contexts(memory_space_id);

CREATE TABLE IF NOT EXISTS immutable_records (
    type TEXT NOT NULL,
    id TEXT NOT NULL,
    data TEXT NOT NULL,
    version INTEGER NOT NULL,
    previous_versions TEXT,
    user_id TEXT,
    tenant_id TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (type, id)
);
CREATE INDEX IF NOT EXISTS idx_immutable_user ON immutable_records(user_id);

CREATE TABLE IF NOT EXISTS mutable_records (
    namespace TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    user_id TEXT,
    tenant_id TEXT,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (namespace, key)
);
CREATE INDEX IF NOT EXISTS idx_mutable_user ON mutable_records(user_id);
`

// NewSQLiteStore opens an in-memory database (handy for tests).
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN opens a store at the given DSN ("file:path" or
// ":memory:") and applies the schema.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "store.open", "failed to open sqlite database", err)
	}
	db.SetMaxOpenConns(1) // single-writer embedded database
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, cortexerr.Wrap(cortexerr.Transport, "store.open", "failed to apply schema", err)
	}
	return &SQLiteStore{db: db, cache: newReadCache(512)}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func marshalJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func unmarshalJSONInto(s string, v interface{}) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), v)
}

// encodeEmbedding packs a float32 vector the way sqlite-vec's vec_f32()
// would from a JSON array (little-endian float32s), so vec_distance_cosine()
// can read it back without a round trip through the extension at write time.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeEmbedding(raw []byte) []float32 {
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil
	}
	v := make([]float32, len(raw)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return v
}

// ---------------------------------------------------------------------------
// memorySpaces
// ---------------------------------------------------------------------------

func (s *SQLiteStore) RegisterMemorySpace(ctx context.Context, m *MemorySpace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_spaces (id, type, status, tenant_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.Type), string(m.Status), nullString(m.TenantID), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "memorySpaces.register", "insert failed", err)
	}
	return nil
}

func (s *SQLiteStore) GetMemorySpace(ctx context.Context, id string) (*MemorySpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT id, type, status, tenant_id, created_at, updated_at FROM memory_spaces WHERE id = ?`, id)
	var m MemorySpace
	var typ, status string
	var tenant sql.NullString
	if err := row.Scan(&m.ID, &typ, &status, &tenant, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, cortexerr.New(cortexerr.NotFound, "memorySpaces.get", "memory space not found")
		}
		return nil, cortexerr.Wrap(cortexerr.Transport, "memorySpaces.get", "query failed", err)
	}
	m.Type, m.Status, m.TenantID = MemorySpaceType(typ), MemorySpaceStatus(status), tenant.String
	return &m, nil
}

func (s *SQLiteStore) ListMemorySpaces(ctx context.Context, tenantID string) ([]*MemorySpace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, status, tenant_id, created_at, updated_at FROM memory_spaces WHERE (? = '' OR tenant_id = ?) ORDER BY created_at`, tenantID, tenantID)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "memorySpaces.list", "query failed", err)
	}
	defer rows.Close()
	var out []*MemorySpace
	for rows.Next() {
		var m MemorySpace
		var typ, status string
		var tenant sql.NullString
		if err := rows.Scan(&m.ID, &typ, &status, &tenant, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "memorySpaces.list", "scan failed", err)
		}
		m.Type, m.Status, m.TenantID = MemorySpaceType(typ), MemorySpaceStatus(status), tenant.String
		out = append(out, &m)
	}
	return out, nil
}

func (s *SQLiteStore) setSpaceStatus(ctx context.Context, id string, status MemorySpaceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE memory_spaces SET status = ?, updated_at = ? WHERE id = ?`, string(status), time.Now().UnixMilli(), id)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "memorySpaces.setStatus", "update failed", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return cortexerr.New(cortexerr.NotFound, "memorySpaces.setStatus", "memory space not found")
	}
	return nil
}

func (s *SQLiteStore) ArchiveMemorySpace(ctx context.Context, id string) error {
	return s.setSpaceStatus(ctx, id, SpaceArchived)
}

func (s *SQLiteStore) ReactivateMemorySpace(ctx context.Context, id string) error {
	return s.setSpaceStatus(ctx, id, SpaceActive)
}

func (s *SQLiteStore) DeleteMemorySpaceCascade(ctx context.Context, id string, dryRun bool) (*SpaceCascadeCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := &SpaceCascadeCounts{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE memory_space_id = ?`, id).Scan(&counts.ConversationsDeleted); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "memorySpaces.deleteSpace", "count conversations", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE memory_space_id = ?`, id).Scan(&counts.VectorMemoriesDeleted); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "memorySpaces.deleteSpace", "count memories", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts WHERE memory_space_id = ?`, id).Scan(&counts.FactsDeleted); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "memorySpaces.deleteSpace", "count facts", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contexts WHERE memory_space_id = ?`, id).Scan(&counts.ContextsDeleted); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "memorySpaces.deleteSpace", "count contexts", err)
	}

	if dryRun {
		return counts, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "memorySpaces.deleteSpace", "begin tx", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE memory_space_id = ?)`,
		`DELETE FROM conversations WHERE memory_space_id = ?`,
		`DELETE FROM memories WHERE memory_space_id = ?`,
		`DELETE FROM facts WHERE memory_space_id = ?`,
		`DELETE FROM contexts WHERE memory_space_id = ?`,
		`DELETE FROM memory_spaces WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "memorySpaces.deleteSpace", "delete failed", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "memorySpaces.deleteSpace", "commit failed", err)
	}
	s.cache.clear()
	return counts, nil
}

// ---------------------------------------------------------------------------
// agents
// ---------------------------------------------------------------------------

func (s *SQLiteStore) RegisterAgent(ctx context.Context, a *Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, display_name, tenant_id, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name`,
		a.ID, nullString(a.DisplayName), nullString(a.TenantID), a.CreatedAt)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "agents.register", "insert failed", err)
	}
	return nil
}

func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var a Agent
	var display, tenant sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, display_name, tenant_id, created_at FROM agents WHERE id = ?`, id).
		Scan(&a.ID, &display, &tenant, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, cortexerr.New(cortexerr.NotFound, "agents.get", "agent not found")
	}
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "agents.get", "query failed", err)
	}
	a.DisplayName, a.TenantID = display.String, tenant.String
	return &a, nil
}

// ---------------------------------------------------------------------------
// conversations
// ---------------------------------------------------------------------------

func (s *SQLiteStore) CreateConversation(ctx context.Context, c *Conversation) error {
	if c.Type == ConversationUserAgent && (c.Participants.UserID == "" || c.Participants.AgentID == "") {
		return cortexerr.New(cortexerr.InvariantViolation, "conversations.create", "user-agent conversation requires both userId and agentId")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.create", "begin tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, memory_space_id, type, user_id, agent_id, participant_id, agent_ids,
			message_count, tenant_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MemorySpaceID, string(c.Type), nullString(c.Participants.UserID), nullString(c.Participants.AgentID),
		nullString(c.Participants.ParticipantID), marshalJSON(c.Participants.AgentIDs),
		len(c.Messages), nullString(c.TenantID), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.create", "insert failed", err)
	}
	for i, msg := range c.Messages {
		if err := insertMessage(ctx, tx, c.ID, i, msg); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.create", "commit failed", err)
	}
	c.MessageCount = len(c.Messages)
	return nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, conversationID string, seq int, msg Message) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, agent_id, seq, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, conversationID, string(msg.Role), msg.Content, nullString(msg.AgentID), seq, msg.Timestamp)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.addMessage", "insert message failed", err)
	}
	return nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id, tenantID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getConversationLocked(ctx, id, tenantID)
}

func (s *SQLiteStore) getConversationLocked(ctx context.Context, id, tenantID string) (*Conversation, error) {
	if c, ok := s.cache.getConversation(id); ok {
		if tenantID != "" && c.TenantID != tenantID {
			return nil, cortexerr.New(cortexerr.NotFound, "conversations.get", "conversation not found")
		}
		return c, nil
	}

	var c Conversation
	var typ string
	var userID, agentID, participantID, agentIDs, tenant sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, memory_space_id, type, user_id, agent_id, participant_id, agent_ids, message_count, tenant_id, created_at, updated_at
		FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.MemorySpaceID, &typ, &userID, &agentID, &participantID, &agentIDs, &c.MessageCount, &tenant, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, cortexerr.New(cortexerr.NotFound, "conversations.get", "conversation not found")
	}
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "conversations.get", "query failed", err)
	}
	c.Type = ConversationType(typ)
	c.Participants = Participants{UserID: userID.String, AgentID: agentID.String, ParticipantID: participantID.String}
	unmarshalJSONInto(agentIDs.String, &c.Participants.AgentIDs)
	c.TenantID = tenant.String
	if tenantID != "" && c.TenantID != tenantID {
		return nil, cortexerr.New(cortexerr.NotFound, "conversations.get", "conversation not found")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, role, content, agent_id, timestamp FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "conversations.get", "query messages failed", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Message
		var role string
		var agentID sql.NullString
		if err := rows.Scan(&m.ID, &role, &m.Content, &agentID, &m.Timestamp); err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "conversations.get", "scan message failed", err)
		}
		m.Role, m.AgentID = MessageRole(role), agentID.String
		c.Messages = append(c.Messages, m)
	}
	s.cache.putConversation(&c)
	return &c, nil
}

// AddMessage appends a message and keeps messageCount consistent with
// len(messages) in the same transaction (invariant 3).
func (s *SQLiteStore) AddMessage(ctx context.Context, conversationID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.addMessage", "begin tx", err)
	}
	defer tx.Rollback()

	var count int
	var lastTimestamp sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT message_count FROM conversations WHERE id = ?`, conversationID).Scan(&count)
	if err == sql.ErrNoRows {
		return cortexerr.New(cortexerr.NotFound, "conversations.addMessage", "conversation not found")
	}
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.addMessage", "query failed", err)
	}
	_ = tx.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&lastTimestamp)
	if lastTimestamp.Valid && msg.Timestamp < lastTimestamp.Int64 {
		return cortexerr.New(cortexerr.InvariantViolation, "conversations.addMessage", "message timestamp precedes prior message")
	}

	if err := insertMessage(ctx, tx, conversationID, count, msg); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET message_count = ?, updated_at = ? WHERE id = ?`, count+1, msg.Timestamp, conversationID); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.addMessage", "update count failed", err)
	}
	if err := tx.Commit(); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.addMessage", "commit failed", err)
	}
	s.cache.invalidateConversation(conversationID)
	return nil
}

// UpdateMessage overwrites the content/timestamp of an existing message in
// place, identified by id. It does not alter message_count, so it is safe
// to call repeatedly while a stream is still in flight.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, conversationID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.updateMessage", "begin tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE messages SET content = ?, timestamp = ? WHERE id = ? AND conversation_id = ?`,
		msg.Content, msg.Timestamp, msg.ID, conversationID)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.updateMessage", "update failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.updateMessage", "rows affected failed", err)
	}
	if n == 0 {
		return cortexerr.New(cortexerr.NotFound, "conversations.updateMessage", "message not found")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, msg.Timestamp, conversationID); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.updateMessage", "touch conversation failed", err)
	}
	if err := tx.Commit(); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.updateMessage", "commit failed", err)
	}
	s.cache.invalidateConversation(conversationID)
	return nil
}

func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.delete", "begin tx", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.delete", "delete messages failed", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.delete", "delete failed", err)
	}
	if err := tx.Commit(); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "conversations.delete", "commit failed", err)
	}
	s.cache.invalidateConversation(id)
	return nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, memorySpaceID, userID, tenantID string) ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM conversations
		WHERE (? = '' OR memory_space_id = ?) AND (? = '' OR user_id = ?) AND (? = '' OR tenant_id = ?)
		ORDER BY created_at`,
		memorySpaceID, memorySpaceID, userID, userID, tenantID, tenantID)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "conversations.list", "query failed", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, cortexerr.Wrap(cortexerr.Transport, "conversations.list", "scan failed", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	out := make([]*Conversation, 0, len(ids))
	for _, id := range ids {
		c, err := s.getConversationLocked(ctx, id, "")
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLiteStore) CountConversations(ctx context.Context, memorySpaceID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE memory_space_id = ?`, memorySpaceID).Scan(&n)
	if err != nil {
		return 0, cortexerr.Wrap(cortexerr.Transport, "conversations.count", "query failed", err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// memories (vector)
// ---------------------------------------------------------------------------

func (s *SQLiteStore) StoreMemory(ctx context.Context, m *VectorMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (id, memory_space_id, user_id, content, content_type, embedding,
			source_type, importance, tags, tenant_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.MemorySpaceID, nullString(m.UserID), m.Content, m.ContentType, encodeEmbedding(m.Embedding),
		string(m.Source.Type), m.Metadata.Importance, marshalJSON(m.Metadata.Tags), nullString(m.TenantID), m.CreatedAt)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "memories.store", "insert failed", err)
	}
	return nil
}

func scanMemory(row interface {
	Scan(dest ...interface{}) error
}) (*VectorMemory, error) {
	var m VectorMemory
	var userID, tenant sql.NullString
	var embedding []byte
	var tags string
	var sourceType string
	if err := row.Scan(&m.ID, &m.MemorySpaceID, &userID, &m.Content, &m.ContentType, &embedding,
		&sourceType, &m.Metadata.Importance, &tags, &tenant, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.UserID, m.TenantID = userID.String, tenant.String
	m.Embedding = decodeEmbedding(embedding)
	m.Source.Type = VectorMemorySourceType(sourceType)
	unmarshalJSONInto(tags, &m.Metadata.Tags)
	return &m, nil
}

const memoryColumns = `id, memory_space_id, user_id, content, content_type, embedding, source_type, importance, tags, tenant_id, created_at`

func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*VectorMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, cortexerr.New(cortexerr.NotFound, "memories.get", "memory not found")
	}
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "memories.get", "query failed", err)
	}
	return m, nil
}

func (s *SQLiteStore) ListMemories(ctx context.Context, memorySpaceID, userID string) ([]*VectorMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE memory_space_id = ? AND (? = '' OR user_id = ?) ORDER BY created_at DESC`,
		memorySpaceID, userID, userID)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "memories.list", "query failed", err)
	}
	defer rows.Close()
	var out []*VectorMemory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "memories.list", "scan failed", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// SearchMemories runs a semantic (embedding) or keyword search scoped to a
// memory space. When an embedding is supplied, similarity is computed with
// sqlite-vec's vec_distance_cosine over vec_f32-format float32 blobs; otherwise
// a LIKE-based keyword surrogate is used, matching the cos_sim fallback
// described in the recall planner (C5).
func (s *SQLiteStore) SearchMemories(ctx context.Context, q MemorySearchQuery) ([]MemorySearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var rows *sql.Rows
	var err error
	if len(q.Embedding) > 0 {
		embJSON := marshalJSON(q.Embedding)
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+memoryColumns+`,
				(1.0 - vec_distance_cosine(embedding, vec_f32(?))) AS similarity
			FROM memories
			WHERE memory_space_id = ? AND (? = '' OR user_id = ?) AND importance >= ? AND embedding IS NOT NULL
			ORDER BY similarity DESC LIMIT ?`,
			embJSON, q.MemorySpaceID, q.UserID, q.UserID, q.MinImportance, limit)
	} else {
		like := "%" + strings.ToLower(q.Keyword) + "%"
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+memoryColumns+`,
				CASE WHEN lower(content) LIKE ? THEN 1.0 ELSE 0.0 END AS similarity
			FROM memories
			WHERE memory_space_id = ? AND (? = '' OR user_id = ?) AND importance >= ?
			ORDER BY created_at DESC LIMIT ?`,
			like, q.MemorySpaceID, q.UserID, q.UserID, q.MinImportance, limit)
	}
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "memories.search", "query failed", err)
	}
	defer rows.Close()

	var out []MemorySearchHit
	for rows.Next() {
		var m VectorMemory
		var userID, tenant sql.NullString
		var embedding []byte
		var tags, sourceType string
		var sim float64
		if err := rows.Scan(&m.ID, &m.MemorySpaceID, &userID, &m.Content, &m.ContentType, &embedding,
			&sourceType, &m.Metadata.Importance, &tags, &tenant, &m.CreatedAt, &sim); err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "memories.search", "scan failed", err)
		}
		m.UserID, m.TenantID = userID.String, tenant.String
		m.Embedding = decodeEmbedding(embedding)
		m.Source.Type = VectorMemorySourceType(sourceType)
		unmarshalJSONInto(tags, &m.Metadata.Tags)
		out = append(out, MemorySearchHit{Memory: m, Similarity: sim})
	}
	return out, nil
}

func (s *SQLiteStore) DeleteMemory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "memories.delete", "delete failed", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteManyMemories(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM memories WHERE id IN (%s)`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return 0, cortexerr.Wrap(cortexerr.Transport, "memories.deleteMany", "delete failed", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) PurgeAllMemories(ctx context.Context, memorySpaceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE memory_space_id = ?`, memorySpaceID)
	if err != nil {
		return 0, cortexerr.Wrap(cortexerr.Transport, "memories.purgeAll", "delete failed", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ---------------------------------------------------------------------------
// facts
// ---------------------------------------------------------------------------

const factColumns = `id, memory_space_id, user_id, fact, fact_type, subject, predicate, object, confidence,
	valid_from, valid_until, superseded_by, category, search_aliases, semantic_context, entities, relations, tenant_id`

func scanFact(row interface {
	Scan(dest ...interface{}) error
}) (*Fact, error) {
	var f Fact
	var userID, predicate, object, supersededBy, category, aliases, semanticCtx, entities, relations, tenant sql.NullString
	var validUntil sql.NullInt64
	if err := row.Scan(&f.ID, &f.MemorySpaceID, &userID, &f.Fact, &f.FactType, &f.Subject, &predicate, &object,
		&f.Confidence, &f.ValidFrom, &validUntil, &supersededBy, &category, &aliases, &semanticCtx, &entities, &relations, &tenant); err != nil {
		return nil, err
	}
	f.UserID, f.Predicate, f.Object = userID.String, predicate.String, object.String
	f.SupersededBy, f.Category, f.SemanticContext, f.TenantID = supersededBy.String, category.String, semanticCtx.String, tenant.String
	if validUntil.Valid {
		v := validUntil.Int64
		f.ValidUntil = &v
	}
	unmarshalJSONInto(aliases.String, &f.SearchAliases)
	unmarshalJSONInto(entities.String, &f.Entities)
	unmarshalJSONInto(relations.String, &f.Relations)
	return &f, nil
}

func (s *SQLiteStore) StoreFact(ctx context.Context, f *Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facts (`+factColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.MemorySpaceID, nullString(f.UserID), f.Fact, string(f.FactType), f.Subject,
		nullString(f.Predicate), nullString(f.Object), f.Confidence, f.ValidFrom, f.ValidUntil,
		nullString(f.SupersededBy), nullString(f.Category), marshalJSON(f.SearchAliases),
		nullString(f.SemanticContext), marshalJSON(f.Entities), marshalJSON(f.Relations), nullString(f.TenantID))
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "facts.store", "insert failed", err)
	}
	return nil
}

func (s *SQLiteStore) GetFact(ctx context.Context, id, tenantID string) (*Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+factColumns+` FROM facts WHERE id = ?`, id)
	f, err := scanFact(row)
	if err == sql.ErrNoRows {
		return nil, cortexerr.New(cortexerr.NotFound, "facts.get", "fact not found")
	}
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "facts.get", "query failed", err)
	}
	if tenantID != "" && f.TenantID != tenantID {
		return nil, cortexerr.New(cortexerr.NotFound, "facts.get", "fact not found")
	}
	return f, nil
}

func (s *SQLiteStore) ListActiveFactsForSubject(ctx context.Context, memorySpaceID, subject string) ([]*Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+factColumns+` FROM facts
		WHERE memory_space_id = ? AND subject = ? AND valid_until IS NULL`, memorySpaceID, subject)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "facts.listActiveForSubject", "query failed", err)
	}
	defer rows.Close()
	var out []*Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "facts.listActiveForSubject", "scan failed", err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *SQLiteStore) ListFacts(ctx context.Context, memorySpaceID, userID string) ([]*Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+factColumns+` FROM facts
		WHERE memory_space_id = ? AND (? = '' OR user_id = ?)`, memorySpaceID, userID, userID)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "facts.list", "query failed", err)
	}
	defer rows.Close()
	var out []*Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "facts.list", "scan failed", err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateFact(ctx context.Context, f *Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE facts SET fact = ?, confidence = ?, valid_until = ?, superseded_by = ?, search_aliases = ?,
			semantic_context = ?, entities = ?, relations = ?
		WHERE id = ?`,
		f.Fact, f.Confidence, f.ValidUntil, nullString(f.SupersededBy), marshalJSON(f.SearchAliases),
		nullString(f.SemanticContext), marshalJSON(f.Entities), marshalJSON(f.Relations), f.ID)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "facts.update", "update failed", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return cortexerr.New(cortexerr.NotFound, "facts.update", "fact not found")
	}
	return nil
}

func (s *SQLiteStore) DeleteFact(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE id = ?`, id); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "facts.delete", "delete failed", err)
	}
	return nil
}

func (s *SQLiteStore) FactHistory(ctx context.Context, memorySpaceID, subject, predicate string) ([]*Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+factColumns+` FROM facts
		WHERE memory_space_id = ? AND subject = ? AND (predicate = ? OR (? = '' AND predicate IS NULL))
		ORDER BY valid_from DESC`, memorySpaceID, subject, predicate, predicate)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "facts.history", "query failed", err)
	}
	defer rows.Close()
	var out []*Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "facts.history", "scan failed", err)
		}
		out = append(out, f)
	}
	return out, nil
}

// FactSupersessionChain follows supersededBy forward from factID to the head
// of its chain (the fact nothing supersedes), then returns that head followed
// by every closed (valid_until set) fact of the same (subject, predicate)
// slot, newest first.
func (s *SQLiteStore) FactSupersessionChain(ctx context.Context, factID string) ([]*Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Find the head: walk forward via superseded_by until we hit the active fact.
	head, err := s.factByIDLocked(ctx, factID)
	if err != nil {
		return nil, err
	}
	for head.SupersededBy != "" {
		next, err := s.factByIDLocked(ctx, head.SupersededBy)
		if err != nil {
			break
		}
		head = next
	}

	chain := []*Fact{head}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+factColumns+` FROM facts WHERE memory_space_id = ? AND subject = ? AND
			(predicate = ? OR (? = '' AND predicate IS NULL)) AND valid_until IS NOT NULL
		ORDER BY valid_from DESC`, head.MemorySpaceID, head.Subject, head.Predicate, head.Predicate)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "facts.supersessionChain", "query failed", err)
	}
	defer rows.Close()
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "facts.supersessionChain", "scan failed", err)
		}
		chain = append(chain, f)
	}
	return chain, nil
}

func (s *SQLiteStore) factByIDLocked(ctx context.Context, id string) (*Fact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+factColumns+` FROM facts WHERE id = ?`, id)
	f, err := scanFact(row)
	if err == sql.ErrNoRows {
		return nil, cortexerr.New(cortexerr.NotFound, "facts.get", "fact not found")
	}
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "facts.get", "query failed", err)
	}
	return f, nil
}

func (s *SQLiteStore) PurgeAllFacts(ctx context.Context, memorySpaceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE memory_space_id = ?`, memorySpaceID)
	if err != nil {
		return 0, cortexerr.Wrap(cortexerr.Transport, "facts.purgeAll", "delete failed", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SearchFacts scores active facts by alias/keyword overlap with the query
// (the cos_sim surrogate described in C5) and, optionally, all facts
// regardless of status.
func (s *SQLiteStore) SearchFacts(ctx context.Context, q FactSearchQuery) ([]FactSearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	activeClause := ""
	if q.ActiveOnly {
		activeClause = "AND valid_until IS NULL"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+factColumns+` FROM facts
		WHERE memory_space_id = ? AND (? = '' OR user_id = ?) `+activeClause+`
		ORDER BY confidence DESC LIMIT ?`, q.MemorySpaceID, q.UserID, q.UserID, limit*4)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "facts.search", "query failed", err)
	}
	defer rows.Close()

	keyword := strings.ToLower(q.Keyword)
	var hits []FactSearchHit
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "facts.search", "scan failed", err)
		}
		score := keywordScore(keyword, f)
		if keyword == "" || score > 0 {
			hits = append(hits, FactSearchHit{Fact: *f, Score: score})
		}
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func keywordScore(keyword string, f *Fact) float64 {
	if keyword == "" {
		return f.Confidence / 100.0
	}
	haystack := strings.ToLower(f.Fact + " " + f.Subject + " " + strings.Join(f.SearchAliases, " "))
	tokens := strings.Fields(keyword)
	if len(tokens) == 0 {
		return 0.0
	}
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

// ---------------------------------------------------------------------------
// contexts
// ---------------------------------------------------------------------------

func (s *SQLiteStore) CreateContext(ctx context.Context, c *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "contexts.create", "begin tx", err)
	}
	defer tx.Rollback()

	if c.ParentID != "" {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM contexts WHERE id = ?`, c.ParentID).Scan(&exists); err == sql.ErrNoRows {
			return cortexerr.New(cortexerr.NotFound, "contexts.create", "parent context not found")
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO contexts (id, memory_space_id, parent_id, payload, tenant_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MemorySpaceID, nullString(c.ParentID), string(c.Payload), nullString(c.TenantID), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "contexts.create", "insert failed", err)
	}
	if err := tx.Commit(); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "contexts.create", "commit failed", err)
	}
	return nil
}

func scanContext(row interface {
	Scan(dest ...interface{}) error
}) (*Context, error) {
	var c Context
	var parent, tenant sql.NullString
	var payload sql.NullString
	if err := row.Scan(&c.ID, &c.MemorySpaceID, &parent, &payload, &tenant, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ParentID, c.TenantID = parent.String, tenant.String
	c.Payload = json.RawMessage(payload.String)
	return &c, nil
}

const contextColumns = `id, memory_space_id, parent_id, payload, tenant_id, created_at, updated_at`

func (s *SQLiteStore) GetContext(ctx context.Context, id string, includeChain bool) (*Context, []*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+contextColumns+` FROM contexts WHERE id = ?`, id)
	c, err := scanContext(row)
	if err == sql.ErrNoRows {
		return nil, nil, cortexerr.New(cortexerr.NotFound, "contexts.get", "context not found")
	}
	if err != nil {
		return nil, nil, cortexerr.Wrap(cortexerr.Transport, "contexts.get", "query failed", err)
	}
	children, err := s.getChildrenLocked(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	for _, ch := range children {
		c.ChildrenIDs = append(c.ChildrenIDs, ch.ID)
	}
	if !includeChain {
		return c, nil, nil
	}
	var chain []*Context
	cur := c
	for cur.ParentID != "" {
		row := s.db.QueryRowContext(ctx, `SELECT `+contextColumns+` FROM contexts WHERE id = ?`, cur.ParentID)
		parent, err := scanContext(row)
		if err != nil {
			break
		}
		chain = append(chain, parent)
		cur = parent
	}
	return c, chain, nil
}

func (s *SQLiteStore) getChildrenLocked(ctx context.Context, id string) ([]*Context, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+contextColumns+` FROM contexts WHERE parent_id = ?`, id)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "contexts.getChildren", "query failed", err)
	}
	defer rows.Close()
	var out []*Context
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "contexts.getChildren", "scan failed", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLiteStore) GetContextChildren(ctx context.Context, id string) ([]*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getChildrenLocked(ctx, id)
}

func (s *SQLiteStore) UpdateContext(ctx context.Context, c *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE contexts SET payload = ?, updated_at = ? WHERE id = ?`, string(c.Payload), c.UpdatedAt, c.ID)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "contexts.update", "update failed", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return cortexerr.New(cortexerr.NotFound, "contexts.update", "context not found")
	}
	return nil
}

func (s *SQLiteStore) DeleteContext(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM contexts WHERE id = ?`, id); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "contexts.delete", "delete failed", err)
	}
	return nil
}

func (s *SQLiteStore) ContextHistory(ctx context.Context, memorySpaceID string) ([]*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+contextColumns+` FROM contexts WHERE memory_space_id = ? ORDER BY created_at`, memorySpaceID)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "contexts.history", "query failed", err)
	}
	defer rows.Close()
	var out []*Context
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "contexts.history", "scan failed", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// immutable (users piggyback on this)
// ---------------------------------------------------------------------------

func (s *SQLiteStore) StoreImmutable(ctx context.Context, r *ImmutableRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO immutable_records (type, id, data, version, previous_versions, user_id, tenant_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, id) DO UPDATE SET data = excluded.data, version = excluded.version,
			previous_versions = excluded.previous_versions, updated_at = excluded.updated_at`,
		r.Type, r.ID, string(r.Data), r.Version, marshalJSON(r.PreviousVersions), nullString(r.UserID),
		nullString(r.TenantID), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "immutable.store", "upsert failed", err)
	}
	return nil
}

func scanImmutable(row interface {
	Scan(dest ...interface{}) error
}) (*ImmutableRecord, error) {
	var r ImmutableRecord
	var data string
	var prevVersions, userID, tenant sql.NullString
	if err := row.Scan(&r.Type, &r.ID, &data, &r.Version, &prevVersions, &userID, &tenant, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Data = json.RawMessage(data)
	r.UserID, r.TenantID = userID.String, tenant.String
	unmarshalJSONInto(prevVersions.String, &r.PreviousVersions)
	return &r, nil
}

const immutableColumns = `type, id, data, version, previous_versions, user_id, tenant_id, created_at, updated_at`

func (s *SQLiteStore) GetImmutable(ctx context.Context, recordType, id string) (*ImmutableRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+immutableColumns+` FROM immutable_records WHERE type = ? AND id = ?`, recordType, id)
	r, err := scanImmutable(row)
	if err == sql.ErrNoRows {
		return nil, cortexerr.New(cortexerr.NotFound, "immutable.get", "record not found")
	}
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "immutable.get", "query failed", err)
	}
	return r, nil
}

func (s *SQLiteStore) GetImmutableVersion(ctx context.Context, recordType, id string, version int) (*ImmutableRecord, error) {
	r, err := s.GetImmutable(ctx, recordType, id)
	if err != nil {
		return nil, err
	}
	if r.Version == version {
		return r, nil
	}
	for _, snap := range r.PreviousVersions {
		if snap.Version == version {
			return &ImmutableRecord{Type: r.Type, ID: r.ID, Data: snap.Data, Version: snap.Version,
				UserID: r.UserID, TenantID: r.TenantID, UpdatedAt: snap.UpdatedAt, CreatedAt: r.CreatedAt}, nil
		}
	}
	return nil, cortexerr.New(cortexerr.NotFound, "immutable.getVersion", "version not found")
}

func (s *SQLiteStore) ListImmutable(ctx context.Context, recordType, userID string) ([]*ImmutableRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+immutableColumns+` FROM immutable_records
		WHERE type = ? AND (? = '' OR user_id = ?)`, recordType, userID, userID)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "immutable.list", "query failed", err)
	}
	defer rows.Close()
	var out []*ImmutableRecord
	for rows.Next() {
		r, err := scanImmutable(rows)
		if err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "immutable.list", "scan failed", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQLiteStore) PurgeImmutable(ctx context.Context, recordType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM immutable_records WHERE type = ? AND id = ?`, recordType, id); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "immutable.purge", "delete failed", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// mutable
// ---------------------------------------------------------------------------

func (s *SQLiteStore) SetMutable(ctx context.Context, r *MutableRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mutable_records (namespace, key, value, user_id, tenant_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		r.Namespace, r.Key, string(r.Value), nullString(r.UserID), nullString(r.TenantID), r.UpdatedAt)
	if err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "mutable.set", "upsert failed", err)
	}
	return nil
}

func (s *SQLiteStore) GetMutable(ctx context.Context, namespace, key string) (*MutableRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var r MutableRecord
	var value string
	var userID, tenant sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT namespace, key, value, user_id, tenant_id, updated_at FROM mutable_records WHERE namespace = ? AND key = ?`,
		namespace, key).Scan(&r.Namespace, &r.Key, &value, &userID, &tenant, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, cortexerr.New(cortexerr.NotFound, "mutable.get", "key not found")
	}
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "mutable.get", "query failed", err)
	}
	r.Value = json.RawMessage(value)
	r.UserID, r.TenantID = userID.String, tenant.String
	return &r, nil
}

func (s *SQLiteStore) DeleteMutable(ctx context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mutable_records WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return cortexerr.Wrap(cortexerr.Transport, "mutable.delete", "delete failed", err)
	}
	return nil
}

func (s *SQLiteStore) PurgeMutableNamespace(ctx context.Context, namespace, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM mutable_records WHERE namespace = ? AND (? = '' OR user_id = ?)`, namespace, userID, userID)
	if err != nil {
		return 0, cortexerr.Wrap(cortexerr.Transport, "mutable.purgeNamespace", "delete failed", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ---------------------------------------------------------------------------
// cascade support
// ---------------------------------------------------------------------------

func (s *SQLiteStore) UserOwnedCounts(ctx context.Context, userID string) (*UserCascadeCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userOwnedCountsLocked(ctx, userID)
}

func (s *SQLiteStore) userOwnedCountsLocked(ctx context.Context, userID string) (*UserCascadeCounts, error) {
	c := &UserCascadeCounts{}
	queries := []struct {
		sql string
		dst *int
	}{
		{`SELECT COUNT(*) FROM conversations WHERE user_id = ?`, &c.ConversationsDeleted},
		{`SELECT COUNT(*) FROM memories WHERE user_id = ?`, &c.VectorMemoriesDeleted},
		{`SELECT COUNT(*) FROM facts WHERE user_id = ?`, &c.FactsDeleted},
		{`SELECT COUNT(*) FROM mutable_records WHERE user_id = ?`, &c.MutableRecordsDeleted},
		{`SELECT COUNT(*) FROM immutable_records WHERE user_id = ? AND type != 'user'`, &c.ImmutableRecordsDeleted},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql, userID).Scan(q.dst); err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "users.ownedCounts", "count failed", err)
		}
	}
	var userRows int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM immutable_records WHERE type = 'user' AND id = ?`, userID).Scan(&userRows); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "users.ownedCounts", "count failed", err)
	}
	c.UserProfileDeleted = userRows > 0
	return c, nil
}

// DeleteUserCascade removes every row carrying userId across all layers in
// dependency order: conversations -> memories -> facts -> mutable ->
// immutable -> user profile. Contexts carry no userId column in
// this backend (ownership is by memory space only), so they are excluded
// per spec §9's open question (contexts are not user-scoped).
func (s *SQLiteStore) DeleteUserCascade(ctx context.Context, userID string, dryRun bool) (*UserCascadeCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, err := s.userOwnedCountsLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return counts, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "users.delete", "begin tx", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE user_id = ?)`,
		`DELETE FROM conversations WHERE user_id = ?`,
		`DELETE FROM memories WHERE user_id = ?`,
		`DELETE FROM facts WHERE user_id = ?`,
		`DELETE FROM mutable_records WHERE user_id = ?`,
		`DELETE FROM immutable_records WHERE user_id = ? AND type != 'user'`,
		`DELETE FROM immutable_records WHERE type = 'user' AND id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
			return nil, cortexerr.Wrap(cortexerr.Transport, "users.delete", "delete failed", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, cortexerr.Wrap(cortexerr.Transport, "users.delete", "commit failed", err)
	}
	s.cache.clear()
	return counts, nil
}
