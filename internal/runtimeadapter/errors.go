package runtimeadapter

import (
	"fmt"
	"strings"

	"github.com/docker/docker/errdefs"
	"github.com/orcaops/orcaops/pkg/orcaops"
)

// classify maps a raw Docker client error onto the §7 error kinds the
// rest of the system understands: not_found, image_not_found, and a
// catch-all transient api_error. Anything else collapses to
// ErrTransientRuntime, matching §4.1's "all other errors collapse into
// api_error" rule.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errdefs.IsNotFound(err):
		return fmt.Errorf("%s: %w: %v", op, orcaops.ErrNotFound, err)
	case isImageNotFound(err):
		return fmt.Errorf("%s: %w: %v", op, orcaops.ErrImageNotFound, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, orcaops.ErrTransientRuntime, err)
	}
}

func isImageNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such image") || strings.Contains(msg, "pull access denied")
}
