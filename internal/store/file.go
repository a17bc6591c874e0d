package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"logscope/internal/util/logx"
)

// FileStore keeps every key in a single JSON document that is rewritten
// atomically (tmp file + rename) on each save.
type FileStore struct {
	mu   sync.Mutex
	path string
	docs map[string]json.RawMessage
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, docs: map[string]json.RawMessage{}}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&fs.docs); err != nil {
		// A corrupt file is not fatal; start empty and overwrite on next save.
		logx.Warnf("store: ignoring unreadable %s: %v", path, err)
		fs.docs = map[string]json.RawMessage{}
	}
	return fs, nil
}

func (s *FileStore) Load(key string, v any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.docs[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *FileStore) Save(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.docs[key]
	s.docs[key] = b
	if err := s.flush(); err != nil {
		if had {
			s.docs[key] = prev
		} else {
			delete(s.docs, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.docs); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	logx.Debugf("store: saved %s", s.path)
	return nil
}

func (s *FileStore) Close() error { return nil }
