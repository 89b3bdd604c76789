// Package audit is the append-only activity trail. Every processed event
// and every dispatched action leaves exactly one record here; records are
// never rewritten or deleted. Persistence is a JSONL operation log replayed
// on open, so trace extensions are themselves appends rather than record
// rewrites.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrUnavailable marks store infrastructure failures. Callers must surface
// these as such, never fold them into risk semantics.
var ErrUnavailable = errors.New("audit: store unavailable")

// ErrNotFound is returned by Get and AppendTrace for unknown record ids.
var ErrNotFound = errors.New("audit: record not found")

const (
	opRecord = "record"
	opTrace  = "trace"
)

// op is one line of the persisted operation log.
type op struct {
	Op     string          `json:"op"`
	Record *ActivityRecord `json:"record,omitempty"`
	ID     int64           `json:"id,omitempty"`
	Step   string          `json:"step,omitempty"`
}

// Store is the durable activity log. A single mutex serializes appends and
// trace extensions, which makes id assignment atomic and rules out lost
// updates between concurrent trace appends to the same record.
type Store struct {
	mu      sync.Mutex
	file    *os.File
	records map[int64]*ActivityRecord
	nextID  int64
	now     func() time.Time
}

// Open opens (or creates) a store at path and replays the existing
// operation log to rebuild the index and the id counter.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("%w: create directory: %v", ErrUnavailable, err)
	}

	s := &Store{
		records: make(map[int64]*ActivityRecord),
		now:     time.Now,
	}

	if err := s.replay(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("%w: open file: %v", ErrUnavailable, err)
	}
	s.file = f
	return s, nil
}

func (s *Store) replay(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read existing log: %v", ErrUnavailable, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		var o op
		if err := json.Unmarshal(scanner.Bytes(), &o); err != nil {
			return fmt.Errorf("%w: corrupt log line %d: %v", ErrUnavailable, line, err)
		}
		switch o.Op {
		case opRecord:
			if o.Record == nil {
				return fmt.Errorf("%w: corrupt log line %d: record op without record", ErrUnavailable, line)
			}
			rec := o.Record.clone()
			s.records[rec.ID] = &rec
			if rec.ID > s.nextID {
				s.nextID = rec.ID
			}
		case opTrace:
			if rec, ok := s.records[o.ID]; ok {
				rec.AgentTrace = append(rec.AgentTrace, o.Step)
			}
		default:
			return fmt.Errorf("%w: corrupt log line %d: unknown op %q", ErrUnavailable, line, o.Op)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: scan existing log: %v", ErrUnavailable, err)
	}
	return nil
}

// Append persists a new record and returns its assigned id. Ids are
// strictly increasing; the zero Timestamp is filled with the current UTC
// time.
func (s *Store) Append(rec ActivityRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = s.nextID
	if rec.Timestamp == "" {
		rec.Timestamp = s.now().UTC().Format("2006-01-02T15:04:05.000Z")
	}
	if rec.AgentTrace == nil {
		rec.AgentTrace = []string{}
	}

	if err := s.writeOp(op{Op: opRecord, Record: &rec}); err != nil {
		s.nextID--
		return 0, err
	}

	stored := rec.clone()
	s.records[stored.ID] = &stored
	return stored.ID, nil
}

// AppendTrace appends one step to an existing record's agent trace. This is
// the only mutation allowed on a persisted record, and it is serialized by
// the store lock.
func (s *Store) AppendTrace(id int64, step string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err := s.writeOp(op{Op: opTrace, ID: id, Step: step}); err != nil {
		return err
	}
	rec.AgentTrace = append(rec.AgentTrace, step)
	return nil
}

// Get returns a copy of the record with the given id.
func (s *Store) Get(id int64) (ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ActivityRecord{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return rec.clone(), nil
}

// List returns copies of all records, newest first (timestamp descending,
// id descending on ties).
func (s *Store) List() []ActivityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ActivityRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close flushes and closes the underlying file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

func (s *Store) writeOp(o op) error {
	line, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("%w: marshal op: %v", ErrUnavailable, err)
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: write: %v", ErrUnavailable, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrUnavailable, err)
	}
	return nil
}
