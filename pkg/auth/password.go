// pkg/auth/password.go
package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWeakPassword     = errors.New("password does not meet requirements")
	ErrPasswordMismatch = errors.New("password does not match")
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)
)

// PasswordPolicy lists the character classes a password must contain
type PasswordPolicy struct {
	MinLength int
	Upper     bool
	Lower     bool
	Digit     bool
	Symbol    bool
}

// DefaultPolicy requires eight characters with mixed case and a digit
var DefaultPolicy = PasswordPolicy{MinLength: 8, Upper: true, Lower: true, Digit: true}

// PasswordManager hashes credentials and enforces a PasswordPolicy
type PasswordManager struct {
	policy PasswordPolicy
	cost   int
}

// DefaultCost is the bcrypt cost used for stored credentials
const DefaultCost = 12

// NewPasswordManager creates a password manager with DefaultPolicy and DefaultCost
func NewPasswordManager() *PasswordManager {
	return NewPasswordManagerWithCost(DefaultCost)
}

// NewPasswordManagerWithCost creates a password manager hashing with the given bcrypt cost.
// Costs outside bcrypt's accepted range fall back to DefaultCost.
func NewPasswordManagerWithCost(cost int) *PasswordManager {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordManager{policy: DefaultPolicy, cost: cost}
}

// HashPassword hashes a password using bcrypt
func (pm *PasswordManager) HashPassword(password string) (string, error) {
	// Validate password strength
	if err := pm.ValidatePassword(password); err != nil {
		return "", err
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), pm.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hashedBytes), nil
}

// ComparePassword compares a password with a hash
func (pm *PasswordManager) ComparePassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}

// ValidatePassword checks password against the policy. Errors wrap ErrWeakPassword.
func (pm *PasswordManager) ValidatePassword(password string) error {
	if len(password) < pm.policy.MinLength {
		return fmt.Errorf("%w: minimum length is %d characters", ErrWeakPassword, pm.policy.MinLength)
	}

	rules := []struct {
		required bool
		matches  func(rune) bool
		name     string
	}{
		{pm.policy.Upper, unicode.IsUpper, "uppercase letter"},
		{pm.policy.Lower, unicode.IsLower, "lowercase letter"},
		{pm.policy.Digit, unicode.IsDigit, "number"},
		{pm.policy.Symbol, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }, "special character"},
	}
	for _, rule := range rules {
		if rule.required && strings.IndexFunc(password, rule.matches) < 0 {
			return fmt.Errorf("%w: must contain at least one %s", ErrWeakPassword, rule.name)
		}
	}
	return nil
}

// ValidateEmail validates an email address format
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}

	if len(email) > 255 {
		return errors.New("email address too long")
	}

	return nil
}

// ValidateUsername validates a username
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return errors.New("username must be at least 3 characters")
	}

	if len(username) > 50 {
		return errors.New("username must not exceed 50 characters")
	}

	if !usernameRegex.MatchString(username) {
		return errors.New("username can only contain letters, numbers, underscore, and hyphen")
	}

	return nil
}
