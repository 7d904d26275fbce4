package anomaly

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

// Store persists anomalies as one JSONL file per day under
// root/anomalies/YYYY-MM-DD.jsonl (§4.9). A single store-level lock
// guards acknowledgement rewrites, mirroring the atomic-rewrite pattern
// used elsewhere in this package family.
type Store struct {
	mu   sync.Mutex
	root string
}

// NewStore returns a Store rooted at root/anomalies.
func NewStore(root string) *Store {
	return &Store{root: filepath.Join(root, "anomalies")}
}

func (s *Store) dayFile(t time.Time) string {
	return filepath.Join(s.root, t.Format("2006-01-02")+".jsonl")
}

// Append writes a newly detected anomaly to the day's file.
func (s *Store) Append(a orcaops.AnomalyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return orcaops.AppendFileLine(s.dayFile(a.DetectedAt), data)
}

// Query scans every JSONL file under root/anomalies (one per day) and
// returns anomalies matching the optional filters. Malformed lines are
// skipped.
func (s *Store) Query(fingerprint string, onlyUnacknowledged bool) ([]orcaops.AnomalyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read anomalies dir: %w", err)
	}

	var out []orcaops.AnomalyRecord
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		records, err := readJSONL(filepath.Join(s.root, entry.Name()))
		if err != nil {
			continue
		}
		for _, a := range records {
			if fingerprint != "" && a.Fingerprint != fingerprint {
				continue
			}
			if onlyUnacknowledged && a.Acknowledged {
				continue
			}
			out = append(out, a)
		}
	}
	return out, nil
}

// Acknowledge marks the anomaly with the given id as acknowledged,
// rewriting the containing day's file in place. It scans every day file
// because the caller does not know which day an id belongs to.
func (s *Store) Acknowledge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return orcaops.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read anomalies dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.root, entry.Name())
		records, err := readJSONL(path)
		if err != nil {
			continue
		}

		found := false
		for i := range records {
			if records[i].ID == id {
				records[i].Acknowledged = true
				found = true
				break
			}
		}
		if !found {
			continue
		}

		return rewriteJSONL(path, records)
	}

	return orcaops.ErrNotFound
}

func readJSONL(path string) ([]orcaops.AnomalyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []orcaops.AnomalyRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var a orcaops.AnomalyRecord
		if err := json.Unmarshal(line, &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, scanner.Err()
}

func rewriteJSONL(path string, records []orcaops.AnomalyRecord) error {
	var data []byte
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return err
		}
		data = append(data, line...)
		data = append(data, '\n')
	}
	return orcaops.WriteFileAtomic(path, data, 0o644)
}
