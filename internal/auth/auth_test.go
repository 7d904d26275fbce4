package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orcaops/orcaops/pkg/orcaops"
)

func TestKeyStore_IssueAndVerify(t *testing.T) {
	store := NewKeyStore(t.TempDir())

	key, plaintext, err := store.Issue("ws-1", "ci-bot")
	require.NoError(t, err)
	assert.NotEmpty(t, plaintext)
	assert.NotEqual(t, plaintext, key.Hash)

	verified, err := store.Verify("ws-1", plaintext)
	require.NoError(t, err)
	assert.Equal(t, key.ID, verified.ID)
}

func TestKeyStore_VerifyRejectsWrongSecret(t *testing.T) {
	store := NewKeyStore(t.TempDir())
	_, _, err := store.Issue("ws-1", "ci-bot")
	require.NoError(t, err)

	_, err = store.Verify("ws-1", "not-the-secret")
	assert.ErrorIs(t, err, orcaops.ErrNotFound)
}

func TestKeyStore_RevokedKeyFailsVerify(t *testing.T) {
	store := NewKeyStore(t.TempDir())
	key, plaintext, err := store.Issue("ws-1", "ci-bot")
	require.NoError(t, err)

	require.NoError(t, store.Revoke("ws-1", key.ID))

	_, err = store.Verify("ws-1", plaintext)
	assert.ErrorIs(t, err, orcaops.ErrNotFound)

	got, err := store.Get("ws-1", key.ID)
	require.NoError(t, err)
	assert.True(t, got.Revoked)
}

func TestKeyStore_VerifyScopedToWorkspace(t *testing.T) {
	store := NewKeyStore(t.TempDir())
	_, plaintext, err := store.Issue("ws-1", "ci-bot")
	require.NoError(t, err)

	_, err = store.Verify("ws-2", plaintext)
	assert.ErrorIs(t, err, orcaops.ErrNotFound)
}

func TestKeyStore_List(t *testing.T) {
	store := NewKeyStore(t.TempDir())
	_, _, err := store.Issue("ws-1", "a")
	require.NoError(t, err)
	_, _, err = store.Issue("ws-1", "b")
	require.NoError(t, err)

	keys, err := store.List("ws-1")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestSessionStore_OpenTouchGet(t *testing.T) {
	store := NewSessionStore(t.TempDir())

	sess, err := store.Open("ws-1")
	require.NoError(t, err)
	firstSeen := sess.LastSeenAt

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Touch(sess.ID))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.True(t, got.LastSeenAt.After(firstSeen))
}

func TestSessionStore_ExpireRemovesStaleSessions(t *testing.T) {
	store := NewSessionStore(t.TempDir())

	sess, err := store.Open("ws-1")
	require.NoError(t, err)

	stale := *sess
	stale.LastSeenAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.write(&stale))

	removed, err := store.Expire(1 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(sess.ID)
	assert.ErrorIs(t, err, orcaops.ErrNotFound)
}

func TestSessionStore_GetUnknownFails(t *testing.T) {
	store := NewSessionStore(t.TempDir())
	_, err := store.Get("ghost")
	assert.ErrorIs(t, err, orcaops.ErrNotFound)
}
