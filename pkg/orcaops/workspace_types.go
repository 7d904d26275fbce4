package orcaops

import "time"

// Workspace is a multi-tenant scoping boundary (§3).
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Owner     string    `json:"owner,omitempty"`
}

// APIKey authorizes a caller within a Workspace (§3). Hash is the
// bcrypt digest of the secret; the plaintext key is never persisted.
type APIKey struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
	Revoked     bool      `json:"revoked"`
}

// AuditEvent records a single security-relevant action (§3, §6, SPEC_FULL §2).
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	Actor       string         `json:"actor"`
	Action      string         `json:"action"`
	ResourceID  string         `json:"resource_id,omitempty"`
	WorkspaceID string         `json:"workspace_id,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// AgentSession tracks an interactive or automated caller session (§3).
type AgentSession struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}
