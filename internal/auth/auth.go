// Package auth implements API key issuance/verification and agent
// session tracking (§3, §6, SPEC_FULL §2). Wire authentication (an HTTP
// middleware, a header scheme) is explicitly out of core scope per §1;
// this package is the storage and verification layer a thin transport
// would call into. One JSON file per key under
// root/workspaces/<ws_id>/keys/<key_id>.json, one per session under
// root/sessions/<sess_id>.json — grounded on registry.Registry's
// one-file-per-entity idiom.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

// secretBytes is the length of the random secret portion of an issued
// key, before base64 encoding.
const secretBytes = 32

// KeyStore persists APIKeys under root/workspaces/<ws_id>/keys/<key_id>.json.
type KeyStore struct {
	mu   sync.RWMutex
	root string
}

// NewKeyStore returns a KeyStore rooted at root/workspaces.
func NewKeyStore(root string) *KeyStore {
	return &KeyStore{root: filepath.Join(root, "workspaces")}
}

func (s *KeyStore) path(workspaceID, keyID string) string {
	return filepath.Join(s.root, workspaceID, "keys", keyID+".json")
}

// Issue generates a new plaintext key, persists its bcrypt hash, and
// returns both the record and the plaintext (which is never stored and
// cannot be recovered afterwards).
func (s *KeyStore) Issue(workspaceID, name string) (*orcaops.APIKey, string, error) {
	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, "", fmt.Errorf("generate key secret: %w", err)
	}
	plaintext := base64.RawURLEncoding.EncodeToString(secret)

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash key secret: %w", err)
	}

	key := &orcaops.APIKey{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		Name:        name,
		Hash:        string(hash),
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(key); err != nil {
		return nil, "", err
	}
	return key, plaintext, nil
}

func (s *KeyStore) write(key *orcaops.APIKey) error {
	data, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal api key: %w", err)
	}
	return orcaops.WriteFileAtomic(s.path(key.WorkspaceID, key.ID), data, 0o600)
}

// Get loads a key by workspace and id.
func (s *KeyStore) Get(workspaceID, keyID string) (*orcaops.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(workspaceID, keyID)
}

func (s *KeyStore) read(workspaceID, keyID string) (*orcaops.APIKey, error) {
	data, err := os.ReadFile(s.path(workspaceID, keyID))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: key %q", orcaops.ErrNotFound, keyID)
	}
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", keyID, err)
	}
	var key orcaops.APIKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("%w: key %s: %v", orcaops.ErrCorruptRecord, keyID, err)
	}
	return &key, nil
}

// List returns every key under a workspace, skipping malformed entries.
func (s *KeyStore) List(workspaceID string) ([]*orcaops.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.root, workspaceID, "keys")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keys dir: %w", err)
	}

	var out []*orcaops.APIKey
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var key orcaops.APIKey
		if err := json.Unmarshal(data, &key); err != nil {
			continue
		}
		out = append(out, &key)
	}
	return out, nil
}

// Revoke marks a key revoked in place; revoked keys fail Verify but are
// retained for audit history.
func (s *KeyStore) Revoke(workspaceID, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.read(workspaceID, keyID)
	if err != nil {
		return err
	}
	key.Revoked = true
	return s.write(key)
}

// Verify checks plaintext against every non-revoked key in workspaceID,
// returning the matching key. Bcrypt comparison is constant-time per
// candidate but the scan itself is linear in key count, which is
// acceptable at the expected per-workspace key cardinality.
func (s *KeyStore) Verify(workspaceID, plaintext string) (*orcaops.APIKey, error) {
	keys, err := s.List(workspaceID)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if key.Revoked {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(key.Hash), []byte(plaintext)) == nil {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: no matching key in workspace %q", orcaops.ErrNotFound, workspaceID)
}

// SessionStore persists AgentSessions under root/sessions/<sess_id>.json.
type SessionStore struct {
	mu   sync.Mutex
	root string
}

// NewSessionStore returns a SessionStore rooted at root/sessions.
func NewSessionStore(root string) *SessionStore {
	return &SessionStore{root: filepath.Join(root, "sessions")}
}

func (s *SessionStore) path(id string) string {
	return filepath.Join(s.root, id+".json")
}

// Open starts a new session scoped to workspaceID.
func (s *SessionStore) Open(workspaceID string) (*orcaops.AgentSession, error) {
	now := time.Now().UTC()
	sess := &orcaops.AgentSession{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		CreatedAt:   now,
		LastSeenAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SessionStore) write(sess *orcaops.AgentSession) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return orcaops.WriteFileAtomic(s.path(sess.ID), data, 0o644)
}

// Touch updates a session's LastSeenAt to now.
func (s *SessionStore) Touch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.LastSeenAt = time.Now().UTC()
	return s.write(sess)
}

// Get loads a session by id.
func (s *SessionStore) Get(id string) (*orcaops.AgentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *SessionStore) get(id string) (*orcaops.AgentSession, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: session %q", orcaops.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	var sess orcaops.AgentSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: session %s: %v", orcaops.ErrCorruptRecord, id, err)
	}
	return &sess, nil
}

// Expire removes sessions whose LastSeenAt is older than maxAge,
// returning how many were removed.
func (s *SessionStore) Expire(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read sessions dir: %w", err)
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.root, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var sess orcaops.AgentSession
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		if sess.LastSeenAt.Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
