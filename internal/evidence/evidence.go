// Package evidence defines the data model shared by the extraction, scoring,
// and evaluation layers: categories, the pattern-label vocabulary, per-file
// evidence items, and resolved verdicts.
package evidence

import (
	"time"
)

// Category is one of the cross-cutting concerns the engine detects.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryAPIResponses   Category = "apiResponses"
	CategoryErrorHandling  Category = "errorHandling"
)

// Categories returns all categories in a fixed order.
func Categories() []Category {
	return []Category{CategoryAuthentication, CategoryAPIResponses, CategoryErrorHandling}
}

// LabelUnknown is the universal no-signal label. A category with zero
// evidence always yields (LabelUnknown, confidence 0), never a missing
// verdict.
const LabelUnknown = "unknown"

// Authentication pattern labels.
const (
	LabelCookieToken       = "cookie-token"
	LabelLocalStorageToken = "localstorage-token"
	LabelAuthHeader        = "authorization-header"
	LabelSessionMiddleware = "session-middleware"
	LabelJWTVerify         = "jwt-verify"
)

// API response pattern labels.
const (
	LabelEnvelopeSuccessError = "envelope-success-error"
	LabelDataWrapper          = "data-wrapper"
	LabelStatusJSON           = "status-json"
	LabelBarePayload          = "bare-payload"
)

// Error handling pattern labels.
const (
	LabelCatchLog        = "catch-log"
	LabelCatchRethrow    = "catch-rethrow"
	LabelErrorMiddleware = "error-middleware"
	LabelResultReturn    = "result-return"
)

// Vocabulary returns the full set of labels the engine can emit, per
// category, excluding LabelUnknown. The accuracy evaluator validates
// ground-truth corpora against this set at load time.
func Vocabulary() map[Category][]string {
	return map[Category][]string{
		CategoryAuthentication: {
			LabelCookieToken, LabelLocalStorageToken, LabelAuthHeader,
			LabelSessionMiddleware, LabelJWTVerify,
		},
		CategoryAPIResponses: {
			LabelEnvelopeSuccessError, LabelDataWrapper, LabelStatusJSON,
			LabelBarePayload,
		},
		CategoryErrorHandling: {
			LabelCatchLog, LabelCatchRethrow, LabelErrorMiddleware,
			LabelResultReturn,
		},
	}
}

// KnownLabel reports whether label is in the engine vocabulary for the
// category. LabelUnknown is not a measurable label and returns false.
func KnownLabel(cat Category, label string) bool {
	for _, l := range Vocabulary()[cat] {
		if l == label {
			return true
		}
	}
	return false
}

// Evidence is a single, file-located, labeled observation supporting a
// candidate pattern. Excerpts always carry a file+line reference so every
// verdict is independently auditable.
type Evidence struct {
	Category Category  `json:"category"`
	Label    string    `json:"label"`
	Excerpt  string    `json:"excerpt"`
	File     string    `json:"file"`
	Line     int       `json:"line"`
	Strength float64   `json:"strength"` // 0-1, fixed by construct shape
	ModTime  time.Time `json:"modTime"`  // source file mtime, recency signal
}

// RejectedLabel records an alternative the conflict resolver did not pick.
// It is retained on the verdict so a caller can surface "project is
// inconsistent" instead of a false single answer.
type RejectedLabel struct {
	Label         string     `json:"label"`
	Confidence    int        `json:"confidence"`
	EvidenceCount int        `json:"evidenceCount"`
	Evidence      []Evidence `json:"evidence,omitempty"`
}

// ConfidenceTier is a coarse banding of the 0-100 confidence score, for the
// assistant-facing threshold decision.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

// TierForConfidence converts a 0-100 confidence score to a tier.
//
// Tier mapping:
//   - 70+ -> high
//   - 40-69 -> medium
//   - <40 -> low
func TierForConfidence(score int) ConfidenceTier {
	switch {
	case score >= 70:
		return TierHigh
	case score >= 40:
		return TierMedium
	default:
		return TierLow
	}
}

// PatternVerdict is the resolved, confidence-scored claim for one category.
// Recomputed fully on each scan; never mutated incrementally.
type PatternVerdict struct {
	Category   Category        `json:"category"`
	Label      string          `json:"label"`
	Confidence int             `json:"confidence"` // 0-100
	Tier       ConfidenceTier  `json:"tier"`
	Evidence   []Evidence      `json:"evidence,omitempty"` // strongest first, capped
	Rejected   []RejectedLabel `json:"rejected,omitempty"`
}

// UnknownVerdict is the well-formed zero-evidence verdict for a category.
func UnknownVerdict(cat Category) PatternVerdict {
	return PatternVerdict{
		Category:   cat,
		Label:      LabelUnknown,
		Confidence: 0,
		Tier:       TierLow,
	}
}
