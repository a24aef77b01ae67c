package kvstores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	backupSuffix    = ".backup"
	tmpSuffix       = ".tmp"
	filePermissions = 0o600
)

// File implements [Store] as a single JSON document mapping keys to
// records. Values must be valid JSON. Every Put rewrites the document
// through a temporary file, keeping the previous one as a backup.
type File struct {
	mu       sync.Mutex
	path     string
	maxBytes int
}

var _ Store = (*File)(nil)

func NewFile(path string, maxRecordBytes int) *File {
	return &File{path: path, maxBytes: maxRecordBytes}
}

func (s *File) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	value, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *File) Put(_ context.Context, records ...Record) error {
	if err := checkQuota(s.maxBytes, records); err != nil {
		return err
	}
	for _, r := range records {
		if !json.Valid(r.Value) {
			return fmt.Errorf("kvstores: record %s is not valid json", r.Key)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		// an unreadable document is replaced, the backup below keeps it around
		doc = make(map[string]json.RawMessage, len(records))
	}
	for _, r := range records {
		doc[r.Key] = json.RawMessage(r.Value)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("kvstores: create directory: %w", err)
		}
	}

	tmp := s.path + tmpSuffix
	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("kvstores: write %s: %w", tmp, err)
	}
	if err := s.backup(); err != nil {
		return fmt.Errorf("kvstores: backup %s: %w", s.path, err)
	}
	return os.Rename(tmp, s.path)
}

// backup links the current document to the backup path, copying it where
// links are not supported. The document itself stays in place.
func (s *File) backup() error {
	backup := s.path + backupSuffix
	if err := os.Remove(backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	err := os.Link(s.path, backup)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	return os.WriteFile(backup, data, filePermissions)
}

func (s *File) Close() error { return nil }

// read loads the whole document. A missing file is an empty document.
func (s *File) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("kvstores: decode %s: %w", s.path, err)
	}
	if doc == nil {
		doc = make(map[string]json.RawMessage)
	}
	return doc, nil
}
