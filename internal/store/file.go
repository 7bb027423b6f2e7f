package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/logger"
)

const (
	DefaultDir = "sessions"

	sessionFile = "session.json"
	reportFile  = "report.txt"
)

// File stores every session under <dir>/<id>/session.json and writes the
// rendered report next to it once the session is finished.
type File struct {
	dir    string
	logger *zap.Logger
}

func NewFile(dir string, log *zap.Logger) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir %q: %w", dir, err)
	}
	return &File{dir: dir, logger: logger.OrNop(log)}, nil
}

// ReportPath is where the report of session id is written.
func (f *File) ReportPath(id string) string {
	return filepath.Join(f.dir, id, reportFile)
}

func (f *File) Get(ctx context.Context, id string) (*interview.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, interview.ErrSessionNotFound
	}

	data, err := os.ReadFile(filepath.Join(f.dir, id, sessionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, interview.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	return decode(id, data)
}

func (f *File) Save(ctx context.Context, session *interview.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(session)
	if err != nil {
		return err
	}
	if !validID(session.ID) {
		return fmt.Errorf("invalid session id %q", session.ID)
	}

	dir := filepath.Join(f.dir, session.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, sessionFile), data); err != nil {
		return fmt.Errorf("write session %s: %w", session.ID, err)
	}

	if session.Report != "" {
		path := f.ReportPath(session.ID)
		if err := writeAtomic(path, []byte(session.Report)); err != nil {
			return fmt.Errorf("write report %s: %w", session.ID, err)
		}
		f.logger.Debug("report saved", zap.String(logger.FieldSession, session.ID), zap.String("path", path))
	}

	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// validID rejects ids that would escape the session directory.
func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}
