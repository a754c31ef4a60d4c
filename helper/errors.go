package helper

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories from the service's error
// taxonomy. Handlers map a Kind to an HTTP status; callers match it with
// errors.Is against the package-level sentinels below.
type Kind string

const (
	InvalidUserId     Kind = "invalid_user_id"
	UserAbsent        Kind = "user_absent"
	UserExists        Kind = "user_exists"
	EmptyContent      Kind = "empty_content"
	ExtractFailed     Kind = "extract_failed"
	EmbedFailed       Kind = "embed_failed"
	DimensionMismatch Kind = "dimension_mismatch"
	ConnectFailed     Kind = "connect_failed"
	Timeout           Kind = "timeout"
	IngestBusy        Kind = "ingest_busy"
	ConflictingSchema Kind = "conflicting_schema"
	NodeAbsent        Kind = "node_absent"
)

// sentinel is the comparable error each Kind wraps, so errors.Is(err, helper.ErrUserAbsent)
// works regardless of how many times the error has been wrapped with %w.
type sentinel struct{ kind Kind }

func (s *sentinel) Error() string { return string(s.kind) }

var sentinels = map[Kind]*sentinel{
	InvalidUserId:     {InvalidUserId},
	UserAbsent:        {UserAbsent},
	UserExists:        {UserExists},
	EmptyContent:      {EmptyContent},
	ExtractFailed:     {ExtractFailed},
	EmbedFailed:       {EmbedFailed},
	DimensionMismatch: {DimensionMismatch},
	ConnectFailed:     {ConnectFailed},
	Timeout:           {Timeout},
	IngestBusy:        {IngestBusy},
	ConflictingSchema: {ConflictingSchema},
	NodeAbsent:        {NodeAbsent},
}

// Exported sentinels for errors.Is comparisons at call sites.
var (
	ErrInvalidUserId     = sentinels[InvalidUserId]
	ErrUserAbsent        = sentinels[UserAbsent]
	ErrUserExists        = sentinels[UserExists]
	ErrEmptyContent      = sentinels[EmptyContent]
	ErrExtractFailed     = sentinels[ExtractFailed]
	ErrEmbedFailed       = sentinels[EmbedFailed]
	ErrDimensionMismatch = sentinels[DimensionMismatch]
	ErrConnectFailed     = sentinels[ConnectFailed]
	ErrTimeout           = sentinels[Timeout]
	ErrIngestBusy        = sentinels[IngestBusy]
	ErrConflictingSchema = sentinels[ConflictingSchema]
	ErrNodeAbsent        = sentinels[NodeAbsent]
)

// Error is the base wrapper used throughout the storage and pipeline
// packages: an operation name, an optional Kind, and the underlying cause.
type Error struct {
	Op    string
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	if e.Kind == "" {
		return e.Cause
	}
	return errors.Join(sentinels[e.Kind], e.Cause)
}

// NewError wraps cause with the operation name op, no Kind attached.
func NewError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Op: op, Cause: cause}
}

// NewKindError wraps cause with both an operation name and a taxonomy Kind.
func NewKindError(op string, kind Kind, cause error) error {
	if cause == nil {
		cause = sentinels[kind]
	}
	return &Error{Op: op, Kind: kind, Cause: cause}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	s, ok := sentinels[kind]
	if !ok {
		return false
	}
	return errors.Is(err, s)
}
