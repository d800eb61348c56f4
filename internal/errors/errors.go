package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError carries an operator-facing message plus a locale key the bot
// resolves into the reply the user actually sees.
type AppError struct {
	Code      string
	Message   string
	UserKey   string
	Severity  Severity
	Retryable bool
	cause     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewStorageError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:      "E200",
		Message:   fmt.Sprintf("storage error: %s", underlyingMsg),
		UserKey:   "internal_error",
		Severity:  SeverityHigh,
		Retryable: true,
		cause:     cause,
	}
}

func NewCompletionError(cause error) *AppError {
	return &AppError{
		Code:      "E300",
		Message:   "chat completion failed",
		UserKey:   "completion_failed",
		Severity:  SeverityMedium,
		Retryable: true,
		cause:     cause,
	}
}

func NewTranscriptionError(cause error) *AppError {
	return &AppError{
		Code:      "E301",
		Message:   "audio transcription failed",
		UserKey:   "voice_failed",
		Severity:  SeverityLow,
		Retryable: true,
		cause:     cause,
	}
}

func NewVisionError(cause error) *AppError {
	return &AppError{
		Code:      "E302",
		Message:   "image analysis failed",
		UserKey:   "photo_failed",
		Severity:  SeverityLow,
		Retryable: true,
		cause:     cause,
	}
}

func NewInvoiceError(cause error) *AppError {
	return &AppError{
		Code:      "E310",
		Message:   "invoice creation failed",
		UserKey:   "invoice_failed",
		Severity:  SeverityMedium,
		Retryable: true,
		cause:     cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:      "E400",
		Message:   msg,
		UserKey:   "internal_error",
		Severity:  SeverityMedium,
		Retryable: false,
		cause:     nil,
	}
}
