package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// FileStore keeps one key per line in a plain text file.
type FileStore struct {
	path string
	file *os.File
}

// NewFileStore returns a store backed by path. The file is created on first Append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context) ([]string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keys []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			keys = append(keys, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return keys, nil
}

// Append implements Store.
func (s *FileStore) Append(_ context.Context, key string) error {
	if s.file == nil {
		f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}

		// A hand-edited file may lack the final newline; the next key must not join it.
		missing, err := missingFinalNewline(f)
		if err == nil && missing {
			_, err = f.WriteString("\n")
		}
		if err != nil {
			_ = f.Close()
			return err
		}
		s.file = f
	}

	if _, err := s.file.WriteString(key + "\n"); err != nil {
		return err
	}
	return s.file.Sync()
}

// missingFinalNewline reports whether f is non-empty and does not end with a newline.
func missingFinalNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}

	r, err := os.Open(f.Name())
	if err != nil {
		return false, err
	}
	defer r.Close()

	last := make([]byte, 1)
	if _, err := r.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	return last[0] != '\n', nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
