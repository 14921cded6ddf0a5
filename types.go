package activation

import "fmt"

// Logger is the minimal logging surface the workflow needs
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// PasswordAuthenticator hashes and verifies passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// PasswordPolicy validates password strength. The format rule is a
// deployment decision; DefaultPasswordPolicy is the fallback.
type PasswordPolicy interface {
	Validate(password string) error
}

// PasswordPolicyFunc adapts a function to the PasswordPolicy interface.
type PasswordPolicyFunc func(password string) error

// Validate implements PasswordPolicy.
func (f PasswordPolicyFunc) Validate(password string) error {
	if f == nil {
		return nil
	}
	return f(password)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACTIVATION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACTIVATION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACTIVATION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACTIVATION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
