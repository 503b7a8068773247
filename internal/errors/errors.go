package errors

import (
	"fmt"
	"time"
)

// Error types for the smart lookup engine
type ErrorType string

const (
	// File errors raised while registering or force-loading a source
	ErrorTypeLoad         ErrorType = "load"
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"

	// Index build errors (per column, non-fatal)
	ErrorTypeIndexBuild ErrorType = "index_build"

	// Lookup execution errors on the hot read path
	ErrorTypeLookup ErrorType = "lookup"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// LoadError reports that a file could not be read, stat'd or probed.
// Registration propagates it to the caller; a lookup that triggers a lazy
// load catches it and degrades to a not-found result instead.
type LoadError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewLoadError creates a load error with context
func NewLoadError(op, path string, err error) *LoadError {
	return &LoadError{
		Type:       ErrorTypeLoad,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *LoadError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *LoadError) Unwrap() error {
	return e.Underlying
}

// IndexBuildError reports that a single column could not be indexed.
// It never aborts the surrounding load; the column falls back to scans.
type IndexBuildError struct {
	Type       ErrorType
	Path       string
	Column     string
	Underlying error
	Timestamp  time.Time
}

// NewIndexBuildError creates an index build error for one column
func NewIndexBuildError(path, column string, err error) *IndexBuildError {
	return &IndexBuildError{
		Type:       ErrorTypeIndexBuild,
		Path:       path,
		Column:     column,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *IndexBuildError) Error() string {
	return fmt.Sprintf("index build failed for column %q in %s: %v", e.Column, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *IndexBuildError) Unwrap() error {
	return e.Underlying
}

// LookupError reports an unexpected failure during an index probe or row
// scan. The resolver catches it, logs it, reports it to the tracker and
// returns null to the caller.
type LookupError struct {
	Type         ErrorType
	Path         string
	SearchColumn string
	ReturnColumn string
	Underlying   error
	Timestamp    time.Time
}

// NewLookupError creates a lookup execution error
func NewLookupError(path, searchCol, returnCol string, err error) *LookupError {
	return &LookupError{
		Type:         ErrorTypeLookup,
		Path:         path,
		SearchColumn: searchCol,
		ReturnColumn: returnCol,
		Underlying:   err,
		Timestamp:    time.Now(),
	}
}

// Error implements the error interface
func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s->%s failed in %s: %v", e.SearchColumn, e.ReturnColumn, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *LookupError) Unwrap() error {
	return e.Underlying
}

// ConfigError reports an invalid configuration field
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}
