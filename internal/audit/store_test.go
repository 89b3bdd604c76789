package audit

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(source string) ActivityRecord {
	return ActivityRecord{
		Source:          source,
		Classification:  Classification{Format: "event", Intent: "failed_login", RiskLevel: "medium"},
		ExtractedFields: map[string]any{"anomalies": []string{"suspicious_event:failed_login"}},
		ActionTriggered: "risk_alert/medium",
		AgentTrace:      []string{source, "Schema validation"},
	}
}

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "activity.log"))

	for want := int64(1); want <= 3; want++ {
		id, err := s.Append(record("triage"))
		if err != nil {
			t.Fatalf("Append error: %v", err)
		}
		if id != want {
			t.Errorf("Append id = %d, want %d", id, want)
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}
}

func TestAppendStampsUTC(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "activity.log"))
	s.now = func() time.Time { return time.Date(2026, 8, 26, 12, 30, 0, 0, time.UTC) }

	id, err := s.Append(record("triage"))
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	rec, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !strings.HasSuffix(rec.Timestamp, "Z") {
		t.Errorf("timestamp %q missing trailing Z", rec.Timestamp)
	}
	if rec.Timestamp != "2026-08-26T12:30:00.000Z" {
		t.Errorf("timestamp = %q", rec.Timestamp)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "activity.log"))

	id, _ := s.Append(record("triage"))
	rec, _ := s.Get(id)
	rec.AgentTrace[0] = "tampered"

	again, _ := s.Get(id)
	if again.AgentTrace[0] != "triage" {
		t.Error("mutating a returned record leaked into the store")
	}
}

func TestGetUnknownID(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "activity.log"))
	if _, err := s.Get(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(99) err = %v, want ErrNotFound", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "activity.log"))

	base := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return ts }
		if _, err := s.Append(record("triage")); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	records := s.List()
	if len(records) != 3 {
		t.Fatalf("List len = %d, want 3", len(records))
	}
	for i := 0; i < len(records)-1; i++ {
		if records[i].Timestamp < records[i+1].Timestamp {
			t.Errorf("List not timestamp-descending at %d: %q < %q", i, records[i].Timestamp, records[i+1].Timestamp)
		}
	}
	if records[0].ID != 3 {
		t.Errorf("newest record id = %d, want 3", records[0].ID)
	}
}

func TestAppendTrace(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "activity.log"))

	id, _ := s.Append(record("triage"))
	if err := s.AppendTrace(id, "action risk_alert/medium dispatched"); err != nil {
		t.Fatalf("AppendTrace error: %v", err)
	}

	rec, _ := s.Get(id)
	if len(rec.AgentTrace) != 3 || rec.AgentTrace[2] != "action risk_alert/medium dispatched" {
		t.Errorf("trace = %v", rec.AgentTrace)
	}

	if err := s.AppendTrace(42, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendTrace(42) err = %v, want ErrNotFound", err)
	}
}

func TestReopenReplaysLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")

	s := openStore(t, path)
	id1, _ := s.Append(record("triage"))
	id2, _ := s.Append(record("action_router"))
	if err := s.AppendTrace(id1, "extended"); err != nil {
		t.Fatalf("AppendTrace error: %v", err)
	}
	s.Close()

	s2 := openStore(t, path)
	if s2.Len() != 2 {
		t.Fatalf("reopened Len = %d, want 2", s2.Len())
	}
	rec, err := s2.Get(id1)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if rec.AgentTrace[len(rec.AgentTrace)-1] != "extended" {
		t.Errorf("trace extension lost on replay: %v", rec.AgentTrace)
	}
	// Id assignment resumes after the highest replayed id.
	id3, err := s2.Append(record("triage"))
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if id3 != id2+1 {
		t.Errorf("id after reopen = %d, want %d", id3, id2+1)
	}
}

func TestConcurrentAppendsGetUniqueIDs(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "activity.log"))

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.Append(record("triage"))
			if err != nil {
				t.Errorf("Append error: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("got %d unique ids, want %d", len(seen), n)
	}
}
