package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"pairScope/internal/model"
)

// JsonlJournal appends operation records and operation errors to two JSONL files.
type JsonlJournal struct {
	recordsPath string
	errorsPath  string
	mu          sync.Mutex
}

// NewJsonlJournal creates a journal. An empty errorsPath discards rejected operations.
func NewJsonlJournal(recordsPath, errorsPath string) *JsonlJournal {
	return &JsonlJournal{recordsPath: recordsPath, errorsPath: errorsPath}
}

// PutRecords appends a batch of operation records as JSON lines.
func (s *JsonlJournal) PutRecords(records []model.OperationRecord) error {
	if len(records) == 0 {
		return nil
	}
	items := make([]interface{}, len(records))
	for i := range records {
		items[i] = records[i]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendJSONLines(s.recordsPath, items)
}

// PutErrors appends a batch of rejected operations as JSON lines.
func (s *JsonlJournal) PutErrors(errs []model.OperationError) error {
	if len(errs) == 0 || s.errorsPath == "" {
		return nil
	}
	items := make([]interface{}, len(errs))
	for i := range errs {
		items[i] = errs[i]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendJSONLines(s.errorsPath, items)
}

func appendJSONLines(path string, items []interface{}) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// ScanRecords streams operation records from a JSONL reader. Blank lines are skipped.
func ScanRecords(r io.Reader, fn func(model.OperationRecord) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var record model.OperationRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("parse record line %d: %w", line, err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	return nil
}

// ReadRecordsFile streams operation records from a JSONL file.
func ReadRecordsFile(path string, fn func(model.OperationRecord) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open records: %w", err)
	}
	defer file.Close()
	return ScanRecords(file, fn)
}
