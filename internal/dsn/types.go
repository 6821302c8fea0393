// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import "fmt"

// DefaultPort is used when neither the DSN nor DB_PORT names one.
const DefaultPort = "5432"

// DefaultSSLMode is applied when the connection settings carry no sslmode.
const DefaultSSLMode = "require"

// Info contains the parts of a PostgreSQL connection string.
type Info struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Params   map[string]string
	Original string
}

// SSLMode returns the sslmode parameter, or "" when unset.
func (i *Info) SSLMode() string {
	return i.Params["sslmode"]
}

// Fields are discrete connection settings, as read from DB_HOST, DB_PORT,
// DB_NAME, DB_USER, DB_PASSWORD and DB_SSLMODE.
type Fields struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
}

// ParseError represents an error that occurred during DSN parsing
type ParseError struct {
	DSN    string
	Reason string
	Hint   string
}

func (e *ParseError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("invalid DSN format: %s\nHint: %s", e.Reason, e.Hint)
	}
	return fmt.Sprintf("invalid DSN format: %s", e.Reason)
}

// NewParseError creates a new ParseError
func NewParseError(dsn, reason, hint string) *ParseError {
	return &ParseError{
		DSN:    dsn,
		Reason: reason,
		Hint:   hint,
	}
}
