package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jadhavgaurav/agentcore/pkg/models"
)

// MemStore is a process-local Store implementation used by tests and the
// "local" memory backend. It is safe for concurrent use.
type MemStore struct {
	mu sync.Mutex

	users           map[string]*models.User
	sessions        map[string]*models.Session
	messages        []*models.AgentMessage
	toolExecs       map[string]*models.ToolExecution
	toolExecsByIdem map[string]string // user_id|idempotency_key -> id
	toolCalls       []*models.ToolCall
	confirmations   map[string]*models.Confirmation
	policyDecisions []*models.PolicyDecision
	memories        map[string]*models.Memory
	memoriesByHash  map[string]string // user_id|content_hash -> id
	memoryEvents    []*models.MemoryEvent
}

// NewMemStore constructs an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:           map[string]*models.User{},
		sessions:        map[string]*models.Session{},
		toolExecs:       map[string]*models.ToolExecution{},
		toolExecsByIdem: map[string]string{},
		confirmations:   map[string]*models.Confirmation{},
		memories:        map[string]*models.Memory{},
		memoriesByHash:  map[string]string{},
	}
}

func (s *MemStore) Close() error { return nil }

// WithTx runs fn against the same store: the in-memory implementation has
// no partial-failure rollback story, matching its use as a test double
// rather than a system of record.
func (s *MemStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(s)
}

func (s *MemStore) Users() Users                     { return (*memUsers)(s) }
func (s *MemStore) Sessions() Sessions               { return (*memSessions)(s) }
func (s *MemStore) Messages() Messages               { return (*memMessages)(s) }
func (s *MemStore) ToolExecutions() ToolExecutions   { return (*memToolExecutions)(s) }
func (s *MemStore) ToolCalls() ToolCalls             { return (*memToolCalls)(s) }
func (s *MemStore) Confirmations() Confirmations     { return (*memConfirmations)(s) }
func (s *MemStore) PolicyDecisions() PolicyDecisions { return (*memPolicyDecisions)(s) }
func (s *MemStore) Memories() Memories               { return (*memMemories)(s) }
func (s *MemStore) MemoryEvents() MemoryEvents       { return (*memMemoryEvents)(s) }

type memUsers MemStore

func (m *memUsers) Get(ctx context.Context, id string) (*models.User, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, &NotFoundError{Entity: "user", ID: id}
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Create(ctx context.Context, u *models.User) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

type memSessions MemStore

func (m *memSessions) Get(ctx context.Context, id string) (*models.Session, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, &NotFoundError{Entity: "session", ID: id}
	}
	cp := *sess
	return &cp, nil
}

func (m *memSessions) Create(ctx context.Context, sess *models.Session) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (m *memSessions) Revoke(ctx context.Context, id string, at time.Time) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return &NotFoundError{Entity: "session", ID: id}
	}
	revokedAt := at
	sess.RevokedAt = &revokedAt
	return nil
}

type memMessages MemStore

func (m *memMessages) GetByIdempotencyKey(ctx context.Context, sessionID, key string) (*models.AgentMessage, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.SessionID == sessionID && msg.Role == models.RoleUser && msg.IdempotencyKey == key && key != "" {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, &NotFoundError{Entity: "message", ID: key}
}

func (m *memMessages) GetAssistantByTraceID(ctx context.Context, sessionID, traceID string) (*models.AgentMessage, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.SessionID == sessionID && msg.Role == models.RoleAssistant && msg.TraceID == traceID && traceID != "" {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, &NotFoundError{Entity: "assistant_message", ID: traceID}
}

func (m *memMessages) Insert(ctx context.Context, msg *models.AgentMessage) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.messages = append(s.messages, &cp)
	return nil
}

func (m *memMessages) RecentBySession(ctx context.Context, sessionID string, n int) ([]*models.AgentMessage, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []*models.AgentMessage
	for _, msg := range s.messages {
		if msg.SessionID == sessionID {
			cp := *msg
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	if len(matches) > n {
		matches = matches[len(matches)-n:]
	}
	return matches, nil
}

type memToolExecutions MemStore

func toolExecKey(userID, idemKey string) string { return userID + "|" + idemKey }

func (m *memToolExecutions) Reserve(ctx context.Context, exec *models.ToolExecution) (*models.ToolExecution, bool, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := toolExecKey(exec.UserID, exec.IdempotencyKey)
	if existingID, ok := s.toolExecsByIdem[key]; ok {
		cp := *s.toolExecs[existingID]
		return &cp, false, nil
	}
	cp := *exec
	s.toolExecs[exec.ID] = &cp
	s.toolExecsByIdem[key] = exec.ID
	return nil, true, nil
}

func (m *memToolExecutions) Get(ctx context.Context, id string) (*models.ToolExecution, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.toolExecs[id]
	if !ok {
		return nil, &NotFoundError{Entity: "tool_execution", ID: id}
	}
	cp := *e
	return &cp, nil
}

func (m *memToolExecutions) Transition(ctx context.Context, id string, from, to models.ToolExecutionStatus, mutate func(*models.ToolExecution)) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.toolExecs[id]
	if !ok {
		return &NotFoundError{Entity: "tool_execution", ID: id}
	}
	if e.Status != from {
		return &transitionConflictError{id: id, have: e.Status, want: from}
	}
	if !models.CanTransition(from, to) {
		return &transitionConflictError{id: id, have: from, want: to}
	}
	e.Status = to
	if mutate != nil {
		mutate(e)
	}
	return nil
}

func (m *memToolExecutions) RecentBySessionAndTool(ctx context.Context, sessionID, toolName string, n int) ([]*models.ToolExecution, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []*models.ToolExecution
	for _, e := range s.toolExecs {
		if e.SessionID == sessionID && e.ToolName == toolName {
			cp := *e
			matches = append(matches, &cp)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		ti, tj := timeOrZero(matches[i].FinishedAt), timeOrZero(matches[j].FinishedAt)
		return ti.After(tj)
	})
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

func (m *memToolExecutions) CountSince(ctx context.Context, sessionID, toolName string, since time.Time) (int, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.toolExecs {
		if e.SessionID != sessionID || e.ToolName != toolName {
			continue
		}
		if e.StartedAt != nil && !e.StartedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

type transitionConflictError struct {
	id        string
	have, want models.ToolExecutionStatus
}

func (e *transitionConflictError) Error() string {
	return "tool_execution " + e.id + ": illegal transition from " + string(e.have) + " to " + string(e.want)
}

type memToolCalls MemStore

func (m *memToolCalls) Insert(ctx context.Context, c *models.ToolCall) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.toolCalls = append(s.toolCalls, &cp)
	return nil
}

type memConfirmations MemStore

func (m *memConfirmations) CancelPending(ctx context.Context, sessionID string) (int, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.confirmations {
		if c.SessionID == sessionID && c.Status == models.ConfirmationPending {
			c.Status = models.ConfirmationRejected
			n++
		}
	}
	return n, nil
}

func (m *memConfirmations) Create(ctx context.Context, c *models.Confirmation) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.confirmations[c.ID] = &cp
	return nil
}

func (m *memConfirmations) Get(ctx context.Context, id string) (*models.Confirmation, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.confirmations[id]
	if !ok {
		return nil, &NotFoundError{Entity: "confirmation", ID: id}
	}
	cp := *c
	return &cp, nil
}

func (m *memConfirmations) PendingBySession(ctx context.Context, sessionID string) (*models.Confirmation, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.confirmations {
		if c.SessionID == sessionID && c.Status == models.ConfirmationPending {
			cp := *c
			return &cp, nil
		}
	}
	return nil, &NotFoundError{Entity: "confirmation", ID: "pending:" + sessionID}
}

func (m *memConfirmations) Update(ctx context.Context, c *models.Confirmation) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.confirmations[c.ID]; !ok {
		return &NotFoundError{Entity: "confirmation", ID: c.ID}
	}
	cp := *c
	s.confirmations[c.ID] = &cp
	return nil
}

func (m *memConfirmations) AcceptedMatching(ctx context.Context, sessionID, toolName string, args map[string]any) (*models.Confirmation, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.confirmations {
		if c.SessionID != sessionID || c.Status != models.ConfirmationAccepted {
			continue
		}
		if c.Payload == nil {
			continue
		}
		name, _ := c.Payload["tool_name"].(string)
		payloadArgs, _ := c.Payload["args"].(map[string]any)
		if name == toolName && mapsEqual(payloadArgs, args) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, &NotFoundError{Entity: "confirmation", ID: "accepted:" + toolName}
}

func mapsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if av, ok := v.(map[string]any); ok {
			bvMap, ok := bv.(map[string]any)
			if !ok || !mapsEqual(av, bvMap) {
				return false
			}
			continue
		}
		if v != bv {
			return false
		}
	}
	return true
}

type memPolicyDecisions MemStore

func (m *memPolicyDecisions) Insert(ctx context.Context, d *models.PolicyDecision) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.policyDecisions = append(s.policyDecisions, &cp)
	return nil
}

type memMemories MemStore

func memoryKey(userID, hash string) string { return userID + "|" + hash }

func (m *memMemories) GetByContentHash(ctx context.Context, userID, hash string) (*models.Memory, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.memoriesByHash[memoryKey(userID, hash)]
	if !ok {
		return nil, &NotFoundError{Entity: "memory", ID: hash}
	}
	mem, ok := s.memories[id]
	if !ok || mem.IsDeleted {
		return nil, &NotFoundError{Entity: "memory", ID: hash}
	}
	cp := *mem
	return &cp, nil
}

func (m *memMemories) Insert(ctx context.Context, mem *models.Memory) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *mem
	s.memories[mem.ID] = &cp
	s.memoriesByHash[memoryKey(mem.UserID, mem.ContentHash)] = mem.ID
	return nil
}

func (m *memMemories) Update(ctx context.Context, mem *models.Memory) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memories[mem.ID]; !ok {
		return &NotFoundError{Entity: "memory", ID: mem.ID}
	}
	cp := *mem
	s.memories[mem.ID] = &cp
	s.memoriesByHash[memoryKey(mem.UserID, mem.ContentHash)] = mem.ID
	return nil
}

func (m *memMemories) Get(ctx context.Context, id string) (*models.Memory, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	mem, ok := s.memories[id]
	if !ok {
		return nil, &NotFoundError{Entity: "memory", ID: id}
	}
	cp := *mem
	return &cp, nil
}

func (m *memMemories) Search(ctx context.Context, userID string, embedding []float32, filter SearchFilter) ([]*models.Memory, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	type scored struct {
		mem      *models.Memory
		distance float64
	}
	var candidates []scored
	for _, mem := range s.memories {
		if mem.UserID != userID || mem.IsDeleted {
			continue
		}
		if mem.ExpiresAt != nil && !mem.ExpiresAt.After(now) {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, mem.Type) {
			continue
		}
		if !metadataSuperset(mem.Metadata, filter.MetadataMatch) {
			continue
		}
		d := cosineDistance(embedding, mem.Embedding)
		if filter.MaxDistance > 0 && d > filter.MaxDistance {
			continue
		}
		cp := *mem
		candidates = append(candidates, scored{mem: &cp, distance: d})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })

	topK := filter.TopK
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}
	out := make([]*models.Memory, 0, topK)
	for i := 0; i < topK; i++ {
		m := candidates[i].mem
		m.Score = 1 - candidates[i].distance
		out = append(out, m)
	}
	return out, nil
}

func (m *memMemories) List(ctx context.Context, userID string, filter ListFilter) ([]*models.Memory, error) {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []*models.Memory
	for _, mem := range s.memories {
		if mem.UserID != userID || mem.IsDeleted {
			continue
		}
		if filter.Type != "" && mem.Type != filter.Type {
			continue
		}
		cp := *mem
		matches = append(matches, &cp)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if filter.Offset > 0 && filter.Offset < len(matches) {
		matches = matches[filter.Offset:]
	} else if filter.Offset >= len(matches) {
		matches = nil
	}
	if filter.Limit > 0 && filter.Limit < len(matches) {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

func (m *memMemories) SoftDelete(ctx context.Context, id string) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	mem, ok := s.memories[id]
	if !ok {
		return &NotFoundError{Entity: "memory", ID: id}
	}
	mem.IsDeleted = true
	return nil
}

func containsType(types []models.MemoryType, t models.MemoryType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func metadataSuperset(have, want map[string]any) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - similarity
}

type memMemoryEvents MemStore

func (m *memMemoryEvents) Insert(ctx context.Context, e *models.MemoryEvent) error {
	s := (*MemStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.memoryEvents = append(s.memoryEvents, &cp)
	return nil
}

// Events exposes the recorded MemoryEvent rows for test assertions.
func (s *MemStore) Events() []*models.MemoryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.MemoryEvent, len(s.memoryEvents))
	copy(out, s.memoryEvents)
	return out
}

// ToolCallsRecorded exposes the recorded ToolCall audit rows for test
// assertions.
func (s *MemStore) ToolCallsRecorded() []*models.ToolCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.ToolCall, len(s.toolCalls))
	copy(out, s.toolCalls)
	return out
}
