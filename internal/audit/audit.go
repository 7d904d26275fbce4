// Package audit implements the append-only security event log (§3, §6,
// SPEC_FULL §2): one JSONL file per day under root/audit/YYYY-MM-DD.jsonl.
// Grounded on anomaly.Store's day-file JSONL idiom, reused verbatim for a
// different record type.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// Log appends AuditEvents to root/audit/<day>.jsonl. A single log-level
// lock is enough: audit writes are infrequent compared to job/workflow
// churn and are never rewritten in place.
type Log struct {
	mu   sync.Mutex
	root string
}

// New returns a Log rooted at root/audit.
func New(root string) *Log {
	return &Log{root: filepath.Join(root, "audit")}
}

func (l *Log) dayFile(t time.Time) string {
	return filepath.Join(l.root, t.Format("2006-01-02")+".jsonl")
}

// Record appends a single event, stamping Timestamp if the caller left
// it zero.
func (l *Log) Record(event orcaops.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return orcaops.AppendFileLine(l.dayFile(event.Timestamp), data)
}

// Query scans every day file under root/audit and returns events
// matching the optional filters. An empty workspaceID or actor matches
// everything; since/until are inclusive and ignored when zero.
func (l *Log) Query(workspaceID, actor string, since, until time.Time) ([]orcaops.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := os.ReadDir(l.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit dir: %w", err)
	}

	var out []orcaops.AuditEvent
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		events, err := readJSONL(filepath.Join(l.root, entry.Name()))
		if err != nil {
			continue
		}
		for _, e := range events {
			if workspaceID != "" && e.WorkspaceID != workspaceID {
				continue
			}
			if actor != "" && e.Actor != actor {
				continue
			}
			if !since.IsZero() && e.Timestamp.Before(since) {
				continue
			}
			if !until.IsZero() && e.Timestamp.After(until) {
				continue
			}
			out = append(out, e)
		}
	}
	return out, nil
}

func readJSONL(path string) ([]orcaops.AuditEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []orcaops.AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e orcaops.AuditEvent
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, scanner.Err()
}
