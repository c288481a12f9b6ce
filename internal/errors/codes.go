// Package errors provides structured error handling for Scholia.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Provider errors (embedding, rerank, LLM backends)
//   - 3XX: Parse errors (LaTeX, front matter, LLM output)
//   - 4XX: Validation errors
//   - 5XX: Consistency and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors (missing key, model).
	CategoryConfig Category = "CONFIG"
	// CategoryProvider indicates embedding/rerank/LLM provider failures.
	CategoryProvider Category = "PROVIDER"
	// CategoryParse indicates input or model-output parse failures.
	CategoryParse Category = "PARSE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryConsistency indicates cross-index consistency faults.
	CategoryConsistency Category = "CONSISTENCY"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound  = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid   = "ERR_102_CONFIG_INVALID"
	ErrCodeMissingAPIKey   = "ERR_103_MISSING_API_KEY"
	ErrCodeNoProvider      = "ERR_104_NO_PROVIDER_CONFIGURED"
	ErrCodeMissingModel    = "ERR_105_MISSING_MODEL"

	// Provider errors (200-299)
	ErrCodeProviderTimeout     = "ERR_201_PROVIDER_TIMEOUT"
	ErrCodeProviderUnavailable = "ERR_202_PROVIDER_UNAVAILABLE"
	ErrCodeEmbeddingFailed     = "ERR_203_EMBEDDING_FAILED"
	ErrCodeRerankFailed        = "ERR_204_RERANK_FAILED"
	ErrCodeCompletionFailed    = "ERR_205_COMPLETION_FAILED"

	// Parse errors (300-399)
	ErrCodeMalformedLLMOutput = "ERR_301_MALFORMED_LLM_OUTPUT"
	ErrCodeFrontMatterInvalid = "ERR_302_FRONT_MATTER_INVALID"
	ErrCodeBibTeXInvalid      = "ERR_303_BIBTEX_INVALID"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidPath       = "ERR_403_INVALID_PATH"
	ErrCodeLibraryNotFound   = "ERR_404_LIBRARY_NOT_FOUND"
	ErrCodeQueryEmpty        = "ERR_405_QUERY_EMPTY"

	// Consistency and internal errors (500-599)
	ErrCodeIndexDrift   = "ERR_501_INDEX_DRIFT"
	ErrCodeCorruptIndex = "ERR_502_CORRUPT_INDEX"
	ErrCodeInternal     = "ERR_503_INTERNAL"
	ErrCodeIndexFailed  = "ERR_504_INDEX_FAILED"
	ErrCodeSearchFailed = "ERR_505_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryProvider
	case '3':
		return CategoryParse
	case '4':
		return CategoryValidation
	case '5':
		if code == ErrCodeIndexDrift || code == ErrCodeCorruptIndex {
			return CategoryConsistency
		}
		return CategoryInternal
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Provider timeouts and transient unavailability are retryable; config,
// parse, and validation faults are not.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderTimeout,
		ErrCodeProviderUnavailable,
		ErrCodeEmbeddingFailed,
		ErrCodeRerankFailed:
		return true
	}
	return false
}
