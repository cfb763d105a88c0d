package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FileRecorder appends events to a JSONL journal. Write errors are fatal to
// the caller: a run without a complete timeline cannot be replayed.
type FileRecorder struct {
	path string
}

// NewFileRecorder creates the journal file's parent if needed.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("events: open journal: %w", err)
	}
	f.Close()
	return &FileRecorder{path: path}, nil
}

func (r *FileRecorder) Record(ev RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("events: open journal: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("events: append: %w", err)
	}
	return nil
}

func (r *FileRecorder) Close() error { return nil }

// ReadFile loads a journal back into memory, in file order. Blank lines are
// ignored; a malformed line is an error since the file recorder never
// produces one.
func ReadFile(path string) ([]RunEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("events: open journal: %w", err)
	}
	defer f.Close()

	var out []RunEvent
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev RunEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, fmt.Errorf("events: malformed journal line: %w", err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("events: scan journal: %w", err)
	}
	return out, nil
}
