// Package store holds the session persistence backends.
package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spigell/interviewer/internal/interview"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

func encode(session *interview.Session) ([]byte, error) {
	if session == nil {
		return nil, fmt.Errorf("nil session")
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, fmt.Errorf("session id is empty")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	return data, nil
}

func decode(id string, data []byte) (*interview.Session, error) {
	var session interview.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}
