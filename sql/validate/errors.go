// Package validate implements the post-parse structural checker: arity
// per node type, RELATION catalog lookups, JOIN value checking, and
// PROJECT non-emptiness.
package validate

import errors "gopkg.in/src-d/go-errors.v1"

// ErrQueryValidation is the validator's single error kind, carrying a
// human-readable message naming the offending node.
var ErrQueryValidation = errors.NewKind("query validation failed: %s")
