package activation

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

const (
	// TextCodeTokenExpired marks a redemption attempt with a stale token.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenNotFound marks a token that never existed or was consumed.
	TextCodeTokenNotFound = "TOKEN_NOT_FOUND"
	// TextCodeEmailTaken marks a duplicate registration.
	TextCodeEmailTaken = "EMAIL_TAKEN"
	// TextCodeInconsistentState marks a token whose account is missing.
	TextCodeInconsistentState = "INCONSISTENT_STATE"
	// TextCodePublishFailed marks a broker publish that never got acknowledged.
	TextCodePublishFailed = "PUBLISH_FAILED"
)

// NewTokenNotFoundError distinguishes "never existed / already consumed" from
// other not-found conditions so callers can answer 404.
func NewTokenNotFoundError(token string) *goerrors.Error {
	return goerrors.New("validation token not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(TextCodeTokenNotFound).
		WithMetadata(map[string]any{
			"token": token,
		})
}

// NewTokenExpiredError is a BadRequest-class rejection; the row stays in place
// so a later attempt re-rejects instead of reporting not-found.
func NewTokenExpiredError(email string) *goerrors.Error {
	return goerrors.New("validation token expired", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeTokenExpired).
		WithMetadata(map[string]any{
			"email": email,
		})
}

// NewEmailTakenError reports a duplicate registration attempt.
func NewEmailTakenError(email string) *goerrors.Error {
	return goerrors.New("email already exists", goerrors.CategoryConflict).
		WithCode(goerrors.CodeConflict).
		WithTextCode(TextCodeEmailTaken).
		WithMetadata(map[string]any{
			"email": email,
		})
}

// NewInconsistentStateError reports a token whose owning account cannot be
// resolved. This should never happen under correct operation; it indicates a
// bug or manual data tampering and must stay distinct from a normal not-found.
func NewInconsistentStateError(email string) *goerrors.Error {
	return goerrors.New("validation token has no matching account", goerrors.CategoryInternal).
		WithTextCode(TextCodeInconsistentState).
		WithMetadata(map[string]any{
			"email": email,
		})
}

// NewValidationError aggregates field-level problems into one error. All
// messages are always reported together, not just the first.
func NewValidationError(messages []string) *goerrors.Error {
	return goerrors.New("validation failed", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{
			"errors": messages,
		})
}

// wrapValidationResult converts an ozzo validation result into the aggregated
// validation error shape, keyed messages sorted for stable output.
func wrapValidationResult(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		messages := make([]string, 0, len(fieldErrs))
		fields := make([]string, 0, len(fieldErrs))
		for field := range fieldErrs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			messages = append(messages, field+": "+fieldErrs[field].Error())
		}
		return NewValidationError(messages)
	}

	return NewValidationError([]string{err.Error()})
}

// ValidationMessages extracts the aggregated messages from a validation error,
// or nil when err carries none.
func ValidationMessages(err error) []string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return nil
	}
	raw, ok := richErr.Metadata["errors"]
	if !ok {
		return nil
	}
	messages, ok := raw.([]string)
	if !ok {
		return nil
	}
	return messages
}

// IsTokenExpiredError checks for the expired-token rejection.
func IsTokenExpiredError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeTokenExpired
}

// IsInconsistentStateError checks for the token-without-account condition.
func IsInconsistentStateError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeInconsistentState
}
