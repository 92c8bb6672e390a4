// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Asset ID generation taxonomy
const (
	ErrCodeMappingInvalid       ErrorCode = "MAPPING_INVALID"
	ErrCodeMappingColumnMissing ErrorCode = "MAPPING_COLUMN_MISSING"
	ErrCodeAttributeMissing     ErrorCode = "ATTRIBUTE_MISSING"
	ErrCodeCollisionExhausted   ErrorCode = "COLLISION_EXHAUSTED"

	ErrCodeAbbreviationUnavailable ErrorCode = "ABBREVIATION_SERVICE_UNAVAILABLE"
	ErrCodeAbbreviationTimeout     ErrorCode = "ABBREVIATION_SERVICE_TIMEOUT"

	ErrCodeInputValidationFailed ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeSpreadsheetReadFailed ErrorCode = "SPREADSHEET_READ_FAILED"
	ErrCodeGenerationCancelled   ErrorCode = "GENERATION_CANCELLED"
)

// Infrastructure
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeCodeTableLoadFailed      ErrorCode = "CODE_TABLE_LOAD_FAILED"
	ErrCodeCodeTableSaveFailed      ErrorCode = "CODE_TABLE_SAVE_FAILED"
	ErrCodeAssetIndexFailed         ErrorCode = "ASSET_INDEX_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.Cause }

// WithMetadata attaches a metadata entry and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewMappingInvalidError is fatal for a run: nothing is processed.
func NewMappingInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMappingInvalid,
		Message:   "Invalid column mapping",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMappingColumnMissingError describes a declared column absent from the headers.
func NewMappingColumnMissingError(field, column string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMappingColumnMissing,
		Message:   fmt.Sprintf("Column %q mapped to %s not found in headers", column, field),
		Details:   fmt.Sprintf("field: %s, column: %s", field, column),
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field, "column": column},
		Timestamp: time.Now().UTC(),
	}
}

// NewAttributeMissingError fails a single row under the strict policy.
func NewAttributeMissingError(field, level string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAttributeMissing,
		Message:   fmt.Sprintf("Required attribute %s is empty", field),
		Details:   fmt.Sprintf("field: %s, level: %s", field, level),
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field, "level": level},
		Timestamp: time.Now().UTC(),
	}
}

// NewCollisionExhaustedError fails a single row when no free suffix remains.
func NewCollisionExhaustedError(level, parent, candidate string, limit int) *StandardError {
	return &StandardError{
		Code:      ErrCodeCollisionExhausted,
		Message:   fmt.Sprintf("No unused code left for %q at level %s", candidate, level),
		Details:   fmt.Sprintf("parent: %s, limit: %d", parent, limit),
		Retryable: false,
		Metadata:  map[string]interface{}{"level": level, "parent": parent, "candidate": candidate},
		Timestamp: time.Now().UTC(),
	}
}

// NewAbbreviationServiceError is recorded as a warning; the resolver never propagates it.
func NewAbbreviationServiceError(timeout bool, err error) *StandardError {
	code := ErrCodeAbbreviationUnavailable
	msg := "Abbreviation service unavailable"
	if timeout {
		code = ErrCodeAbbreviationTimeout
		msg = "Abbreviation service timeout"
	}
	return &StandardError{
		Code:      code,
		Message:   msg,
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInputValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputValidationFailed,
		Message:   "Job input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSpreadsheetReadError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSpreadsheetReadFailed,
		Message:   "Spreadsheet could not be read",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewGenerationCancelledError(processed int, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationCancelled,
		Message:   fmt.Sprintf("Generation cancelled after %d rows", processed),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewCodeTableLoadFailedError(project string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCodeTableLoadFailed,
		Message:   "Code table could not be loaded",
		Details:   fmt.Sprintf("project: %s, error: %s", project, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewCodeTableSaveFailedError(project string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCodeTableSaveFailed,
		Message:   "Code table could not be saved",
		Details:   fmt.Sprintf("project: %s, error: %s", project, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewAssetIndexFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssetIndexFailed,
		Message:   "Asset IDs could not be indexed",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeMappingInvalid:           "MAPPING_INVALID",
	ErrCodeInputValidationFailed:    "INPUT_VALIDATION_FAILED",
	ErrCodeSpreadsheetReadFailed:    "SPREADSHEET_READ_FAILED",
	ErrCodeGenerationCancelled:      "GENERATION_CANCELLED",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeCodeTableLoadFailed:      "CODE_TABLE_LOAD_FAILED",
	ErrCodeCodeTableSaveFailed:      "CODE_TABLE_SAVE_FAILED",
	ErrCodeAssetIndexFailed:         "ASSET_INDEX_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeCodeTableLoadFailed,
		ErrCodeCodeTableSaveFailed,
		ErrCodeAssetIndexFailed,
		ErrCodeNotificationSendFailed,
		"EXTERNAL_SERVICE_ERROR",
		"TIMEOUT_ERROR":
		return 3

	case ErrCodeGenerationCancelled,
		ErrCodeAbbreviationTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars["error_"+k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard unwraps err to a *StandardError when one is in the chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "MAPPING"):
		return "MAPPING"
	case strings.Contains(codeStr, "ATTRIBUTE") || strings.Contains(codeStr, "COLLISION"):
		return "ROW"
	case strings.Contains(codeStr, "ABBREVIATION"):
		return "AI"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "CODE_TABLE"):
		return "DATABASE"
	case strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "SPREADSHEET"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
