// Package pgerrors defines stable error codes for all failure modes of the
// detection engine. Soft failures (per-file parse errors, cache mismatches,
// scan timeouts) are recorded as warnings by their callers and never surface
// as errors of this type; the codes here cover the fatal paths plus the
// machine-readable names the soft paths log under.
package pgerrors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// RootUnreadable indicates the scan root does not exist or cannot be read
	RootUnreadable ErrorCode = "ROOT_UNREADABLE"
	// ParseFailed indicates a single file failed structural parsing (soft)
	ParseFailed ErrorCode = "PARSE_FAILED"
	// CorpusInvalid indicates the ground-truth corpus failed validation
	CorpusInvalid ErrorCode = "CORPUS_INVALID"
	// CacheMismatch indicates a cache entry could not be decoded (soft, treated as miss)
	CacheMismatch ErrorCode = "CACHE_MISMATCH"
	// ScanTimeout indicates the scan budget elapsed (soft, partial result)
	ScanTimeout ErrorCode = "SCAN_TIMEOUT"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Command     string `json:"command,omitempty"`
	Safe        bool   `json:"safe,omitempty"`
	Description string `json:"description,omitempty"`
}

// ScanError represents an engine error with code, message, and suggestions
type ScanError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new ScanError
func New(code ErrorCode, message string, cause error) *ScanError {
	return &ScanError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *ScanError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ScanError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *ScanError) WithDetails(details interface{}) *ScanError {
	e.Details = details
	return e
}

// CodeOf extracts the error code from an error, or InternalError if it is
// not a ScanError.
func CodeOf(err error) ErrorCode {
	if se, ok := err.(*ScanError); ok {
		return se.Code
	}
	return InternalError
}

// errorActions maps error codes to suggested fix actions
var errorActions = map[ErrorCode][]FixAction{
	RootUnreadable: {
		{
			Command:     "ls <root>",
			Safe:        true,
			Description: "Verify the project root exists and is readable",
		},
	},
	CorpusInvalid: {
		{
			Command:     "patternguard eval --corpus <corpus>",
			Safe:        true,
			Description: "Fix the offending case; labels must come from the fixed vocabulary",
		},
	},
	ScanTimeout: {
		{
			Command:     "patternguard scan --timeout 60s <root>",
			Safe:        true,
			Description: "Re-run with a larger scan budget",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := errorActions[code]; ok {
		return fixes
	}
	return nil
}
