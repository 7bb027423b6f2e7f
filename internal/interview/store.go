package interview

import "context"

// Store persists whole sessions keyed by id. Get returns ErrSessionNotFound
// for unknown ids and must hand out a copy that the caller may mutate freely.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
}
