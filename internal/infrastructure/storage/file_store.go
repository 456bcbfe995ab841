package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"TGEMonitor/internal/domain"
	"TGEMonitor/internal/ports"
)

const fileFormatVersion = 1

// envelope wraps the encoded state with a checksum so a torn or edited file
// is detected on load instead of being half-accepted.
type envelope struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	SavedAt  time.Time       `json:"saved_at"`
	State    json.RawMessage `json:"state"`
}

// FileStore keeps CycleState in a single JSON file, replaced atomically.
type FileStore struct {
	path   string
	limits domain.Limits
	logger *slog.Logger
}

var _ ports.StateStore = (*FileStore)(nil)

// NewFileStore persists state at path.
func NewFileStore(path string, limits domain.Limits, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, limits: limits, logger: logger.With("component", "file_store")}
}

// Load reads the state file. A missing, truncated or tampered file yields an
// empty state and a warning, never an error.
func (s *FileStore) Load(_ context.Context) (domain.CycleState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no persisted state, starting fresh", "path", s.path)
		return domain.NewCycleState(), nil
	}
	if err != nil {
		s.logger.Warn("state unreadable, starting fresh", "path", s.path, "error", err)
		return domain.NewCycleState(), nil
	}

	state, err := decodeEnvelope(data)
	if err != nil {
		s.logger.Warn("state corrupt, starting fresh", "path", s.path, "error", err)
		return domain.NewCycleState(), nil
	}

	s.logger.Debug("state loaded",
		"processed_ids", state.ProcessedIDs.Len(),
		"seen_hashes", state.SeenHashes.Len(),
		"history", len(state.AlertHistory))
	return state, nil
}

// Save compacts a copy of state and writes it via temp file and rename.
func (s *FileStore) Save(_ context.Context, state domain.CycleState) error {
	state = state.Clone()
	state.Compact(s.limits)

	payload, err := json.Marshal(state)
	if err != nil {
		return &domain.PersistenceError{Op: "encode", Err: err}
	}
	data, err := json.Marshal(envelope{
		Version:  fileFormatVersion,
		Checksum: checksum(payload),
		SavedAt:  time.Now().UTC(),
		State:    payload,
	})
	if err != nil {
		return &domain.PersistenceError{Op: "encode", Err: err}
	}

	if err := writeAtomic(s.path, data); err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func decodeEnvelope(data []byte) (domain.CycleState, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.CycleState{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != fileFormatVersion {
		return domain.CycleState{}, fmt.Errorf("unsupported state version %d", env.Version)
	}
	if len(env.State) == 0 || checksum(env.State) != env.Checksum {
		return domain.CycleState{}, errors.New("checksum mismatch")
	}

	var state domain.CycleState
	if err := json.Unmarshal(env.State, &state); err != nil {
		return domain.CycleState{}, fmt.Errorf("decode state: %w", err)
	}
	state.Normalize()
	return state, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
