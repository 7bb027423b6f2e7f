package store

import (
	"context"
	"sync"

	"github.com/spigell/interviewer/internal/interview"
)

// Memory keeps encoded sessions in process memory. Sessions are lost on restart.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, id string) (*interview.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, interview.ErrSessionNotFound
	}

	return decode(id, data)
}

func (m *Memory) Save(ctx context.Context, session *interview.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(session)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sessions[session.ID] = data
	m.mu.Unlock()
	return nil
}
