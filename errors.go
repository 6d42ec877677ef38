package tagcache

import (
	"fmt"
)

// FlushError reports a tag whose version token could not be rotated.
// An unrotated token means entries under that tag are still reachable, so
// callers that depend on invalidation must check FlushTags errors.
type FlushError struct {
	Tag string
	Err error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush tag %q: token rotation failed: %v", e.Tag, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }
