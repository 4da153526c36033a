// Package conversation keeps the rolling chat history used to give the LLM short-term context.
package conversation

import "sync"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultCapacity is the number of turns a session remembers.
const DefaultCapacity = 15

// Turn is one utterance in a conversation. Turns are never mutated after creation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Memory is a bounded FIFO of turns. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	turns    []Turn
	capacity int
}

// NewMemory returns a memory holding at most capacity turns.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{capacity: capacity, turns: make([]Turn, 0, capacity)}
}

// Append adds a turn and evicts the oldest one when the memory is full.
func (m *Memory) Append(role Role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.turns) == m.capacity {
		copy(m.turns, m.turns[1:])
		m.turns = m.turns[:m.capacity-1]
	}
	m.turns = append(m.turns, Turn{Role: role, Content: content})
}

// Tail returns a copy of the most recent min(k, Len()) turns in chronological order.
func (m *Memory) Tail(k int) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	if k <= 0 || len(m.turns) == 0 {
		return nil
	}
	start := max(len(m.turns)-k, 0)
	out := make([]Turn, len(m.turns)-start)
	copy(out, m.turns[start:])
	return out
}

// Len returns the number of stored turns.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Capacity returns the configured maximum number of turns.
func (m *Memory) Capacity() int { return m.capacity }

// Reset drops every turn.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = m.turns[:0]
}
