// Package sink writes harvested document records.
package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"transcript-harvester/pkg/domain"
	"transcript-harvester/pkg/logger"
)

// Sink receives one record per harvested document.
type Sink interface {
	Append(ctx context.Context, rec *domain.DocumentRecord) error
	Close() error
}

var errNilRecord = errors.New("record is nil")

// JSONLSink appends records to a file, one JSON object per line. The file is never rewritten.
//
// Text is written as UTF-8 without HTML escaping. JSONLSink is not safe for concurrent use.
type JSONLSink struct {
	path string
	file *os.File
}

// OpenJSONL opens path for appending, creating it empty if it does not exist.
func OpenJSONL(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open record log: %w", err)
	}
	return &JSONLSink{path: path, file: f}, nil
}

// Append implements Sink. The line is written with a single write call.
func (s *JSONLSink) Append(_ context.Context, rec *domain.DocumentRecord) error {
	if rec == nil {
		return errNilRecord
	}
	if s.file == nil {
		return os.ErrClosed
	}

	line, err := encodeLine(rec)
	if err != nil {
		return err
	}
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("write record %s: %w", rec.Date, err)
	}
	return nil
}

// Path returns the file the sink appends to.
func (s *JSONLSink) Path() string {
	return s.path
}

// Close implements Sink.
func (s *JSONLSink) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func encodeLine(rec *domain.DocumentRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil { // Encode terminates the line
		return nil, fmt.Errorf("encode record %s: %w", rec.Date, err)
	}
	return buf.Bytes(), nil
}

// ReadRecords decodes a record log line by line and calls fn for each record.
// Blank lines are skipped; a line that does not decode stops the scan.
func ReadRecords(r io.Reader, fn func(*domain.DocumentRecord) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var rec domain.DocumentRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// RecordSaver stores a record somewhere other than the record log.
type RecordSaver interface {
	SaveRecord(ctx context.Context, rec *domain.DocumentRecord) error
}

// Multi writes to a primary sink and copies every record to best-effort mirrors.
// Only primary failures are returned; mirror failures are logged.
type Multi struct {
	primary Sink
	mirrors []RecordSaver
	log     logger.Logger
}

// NewMulti creates a mirrored sink.
func NewMulti(primary Sink, log logger.Logger, mirrors ...RecordSaver) *Multi {
	if log == nil {
		log = logger.NewNop()
	}
	return &Multi{primary: primary, mirrors: mirrors, log: log}
}

// Append implements Sink.
func (m *Multi) Append(ctx context.Context, rec *domain.DocumentRecord) error {
	if err := m.primary.Append(ctx, rec); err != nil {
		return err
	}
	for _, mirror := range m.mirrors {
		if err := mirror.SaveRecord(ctx, rec); err != nil {
			m.log.Warn("Mirror write failed", logger.String("date", rec.Date), logger.Error(err))
		}
	}
	return nil
}

// Close implements Sink.
func (m *Multi) Close() error {
	return m.primary.Close()
}
