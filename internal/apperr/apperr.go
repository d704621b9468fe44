// Package apperr defines the error taxonomy shared by the ingestion and query paths.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the stage that produced it.
type Kind string

const (
	// KindValidation marks empty or malformed input rejected before any processing.
	KindValidation Kind = "validation"
	// KindNormalization marks markup that could not be parsed or converted.
	KindNormalization Kind = "normalization"
	// KindEmbedding marks a failure of the embedding model.
	KindEmbedding Kind = "embedding"
	// KindStore marks a failure of the relational mirror or the vector store.
	KindStore Kind = "store"
)

// Error is a classified error. Transient is only meaningful for KindStore.
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s error in %s: %s", e.Kind, e.Op, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error for the given field.
func Validation(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Op:      field,
		Message: message,
	}
}

// Normalization wraps a markup parsing or conversion failure.
func Normalization(op string, err error) *Error {
	return &Error{Kind: KindNormalization, Op: op, Err: err}
}

// Embedding wraps an embedding model failure.
func Embedding(op string, err error) *Error {
	return &Error{Kind: KindEmbedding, Op: op, Err: err}
}

// Store wraps a storage failure. Transient failures may be retried by the caller
// when the operation is idempotent.
func Store(op string, err error, transient bool) *Error {
	return &Error{Kind: KindStore, Op: op, Err: err, Transient: transient}
}

// IsKind reports whether err (or anything it wraps) is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsTransient reports whether err is a transient store error.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindStore && e.Transient
	}
	return false
}

// KindOf returns the kind of err, or the empty string for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
