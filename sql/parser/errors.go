// Package parser implements the SQL parser: recursive descent with
// one-token lookahead, producing a plan.Node tree that honors the node
// arity and shape invariants the validator and the rule library rely on.
package parser

import errors "gopkg.in/src-d/go-errors.v1"

// ErrParse reports bad SQL syntax with the failing line and column.
var ErrParse = errors.NewKind("parse error at line %d, column %d: %s")

// ErrEmptyInput is raised when the source text contains no statement.
var ErrEmptyInput = errors.NewKind("empty input")

// ErrUnterminatedTransaction is raised when a BEGIN TRANSACTION block is
// not terminated by COMMIT.
var ErrUnterminatedTransaction = errors.NewKind("transaction block starting at line %d not terminated by COMMIT")
