package token

import errors "gopkg.in/src-d/go-errors.v1"

// ErrLexical is raised on any unmatched character, with line/column.
var ErrLexical = errors.NewKind("lexical error at line %d, column %d: %s")

// ErrUnterminatedString is raised when a quoted literal never closes.
var ErrUnterminatedString = errors.NewKind("unterminated string literal starting at line %d, column %d")
