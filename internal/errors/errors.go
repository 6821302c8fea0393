// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages. Query-time kinds are caller mistakes and carry enough
// structure for the caller to self-correct; DatabaseError and ConfigurationError are
// operator concerns.
//
// The package supports wrapping underlying errors while maintaining error kind information,
// making it easier to map failures onto HTTP status codes and CLI exit paths.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// InvalidInput indicates the SQL field is missing, empty, or not text.
	InvalidInput Kind = "invalid_input"
	// NotSelect indicates the statement's leading keyword is not SELECT.
	NotSelect Kind = "not_select"
	// SchemaNotPermitted indicates the statement cannot be scoped to an authorized schema.
	SchemaNotPermitted Kind = "schema_not_permitted"
	// TableNotFound indicates a referenced table is absent from every searched schema.
	TableNotFound Kind = "table_not_found"
	// DatabaseError indicates an execution or catalog failure.
	DatabaseError Kind = "database_error"
	// ConfigurationError indicates required settings are missing at startup.
	ConfigurationError Kind = "configuration_error"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// MissingTable is the TableNotFound variant. Searched preserves the order in
// which schemas were consulted; Available maps each searched schema to its
// table names sorted ascending.
type MissingTable struct {
	Role      string
	Table     string
	Searched  []string
	Available map[string][]string
	Message   string
}

func (e *MissingTable) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: %s (table %q, searched %s)", TableNotFound, e.Message, e.Table, strings.Join(e.Searched, ", "))
	}
	return fmt.Sprintf("%s: %s (searched %s)", TableNotFound, e.Message, strings.Join(e.Searched, ", "))
}

// AmbiguousTable reports an unqualified table name defined in more than one
// authorized schema. It is a SchemaNotPermitted error: the caller has to
// qualify the name.
type AmbiguousTable struct {
	Table   string
	Schemas []string
}

func (e *AmbiguousTable) Error() string {
	return fmt.Sprintf("%s: %s", SchemaNotPermitted, e.Message())
}

// Message is the caller-facing explanation.
func (e *AmbiguousTable) Message() string {
	return fmt.Sprintf("Table %q exists in schemas %s; qualify it explicitly.", e.Table, strings.Join(e.Schemas, ", "))
}

// Configuration reports every missing setting at once.
type Configuration struct {
	Missing []string
	Hint    string
}

func (e *Configuration) Error() string {
	msg := fmt.Sprintf("%s: missing required settings: %s", ConfigurationError, strings.Join(e.Missing, ", "))
	if e.Hint != "" {
		msg += ". " + e.Hint
	}
	return msg
}

// KindOf returns the category of err, or "" when err carries none.
func KindOf(err error) Kind {
	var mt *MissingTable
	if stderrors.As(err, &mt) {
		return TableNotFound
	}
	var at *AmbiguousTable
	if stderrors.As(err, &at) {
		return SchemaNotPermitted
	}
	var ce *Configuration
	if stderrors.As(err, &ce) {
		return ConfigurationError
	}
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsCallerError reports whether err belongs to a kind the caller can fix by
// changing the request.
func IsCallerError(err error) bool {
	switch KindOf(err) {
	case InvalidInput, NotSelect, SchemaNotPermitted, TableNotFound:
		return true
	}
	return false
}
