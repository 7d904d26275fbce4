package orcaops

import "errors"

// Error kinds returned by core operations (§7). Callers should check
// with errors.Is rather than type assertions.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrRuntimeUnavailable = errors.New("runtime unavailable")
	ErrImageNotFound      = errors.New("image not found")
	ErrTransientRuntime   = errors.New("transient runtime error")
	ErrTimeout            = errors.New("timeout")
	ErrCancelled          = errors.New("cancelled")
	ErrCleanupFailed      = errors.New("cleanup failed")
	ErrPersistenceFailed  = errors.New("persistence failed")
	ErrCorruptRecord      = errors.New("corrupt record")
)
