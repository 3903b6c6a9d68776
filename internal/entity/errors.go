package entity

import "errors"

// Domain errors
var (
	// Configuration errors
	ErrConfiguration = errors.New("invalid configuration")

	// Gateway errors
	ErrEmbeddingUnavailable  = errors.New("embedding gateway unavailable")
	ErrGenerationUnavailable = errors.New("generation gateway unavailable")
	ErrGenerationRefused     = errors.New("generation refused by content policy")

	// Vector index errors
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")
	ErrVectorIndexCorruption  = errors.New("vector index corruption")
	ErrDimensionMismatch      = errors.New("embedding dimension mismatch")

	// Document errors
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentExists   = errors.New("document already exists")
	ErrEmptyDocument    = errors.New("document has no text")

	// File errors
	ErrInvalidFile      = errors.New("invalid file")
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidExtension = errors.New("invalid file extension")

	// Session errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrTurnCancelled       = errors.New("turn cancelled")
	ErrApplicationNotFound = errors.New("application not found")

	// Validation errors
	ErrMissingField     = errors.New("required field is missing")
	ErrInvalidFormat    = errors.New("invalid format")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// IsRetryable reports whether err is a transient upstream failure the caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrGenerationUnavailable) ||
		errors.Is(err, ErrVectorIndexUnavailable)
}
