package auth

// ValidationError represents a specific type of credential validation failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeMissing indicates one or both secrets are not configured.
	ErrTypeMissing ValidationErrorType = iota
	// ErrTypeTooShort indicates a secret is shorter than any issued credential.
	ErrTypeTooShort
	// ErrTypeInvalidChars indicates a secret contains characters never issued.
	ErrTypeInvalidChars
)

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
