// Package validation performs stateless checks on raw credential input.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/dtroode/authkeeper-server/internal/model"
)

// PasswordPolicy describes what a new password must contain.
type PasswordPolicy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// DefaultPasswordPolicy only asks for eight characters.
var DefaultPasswordPolicy = PasswordPolicy{MinLength: 8}

// Field is a named raw input value.
type Field struct {
	Name  string
	Value string
}

// Validator checks credential input against a password policy.
type Validator struct {
	validate *validator.Validate
	policy   PasswordPolicy
}

// New creates a Validator. A non-positive MinLength falls back to 1 so an
// empty password never satisfies the policy.
func New(policy PasswordPolicy) *Validator {
	if policy.MinLength < 1 {
		policy.MinLength = 1
	}
	return &Validator{
		validate: validator.New(),
		policy:   policy,
	}
}

// ValidateRequiredFields fails on the first field that is empty or whitespace.
func (v *Validator) ValidateRequiredFields(fields ...Field) error {
	for _, f := range fields {
		if err := v.validate.Var(strings.TrimSpace(f.Value), "required"); err != nil {
			return model.NewValidationError(model.ReasonMissingField, f.Name, fmt.Sprintf("%s is required", f.Name))
		}
	}
	return nil
}

// ValidateEmailFormat fails when email is not a well-formed address.
func (v *Validator) ValidateEmailFormat(email string) error {
	if err := v.validate.Var(email, "required,email"); err != nil {
		return model.NewValidationError(model.ReasonMalformedEmail, "email", "email must be a valid email address")
	}
	return nil
}

// ValidatePassword checks password against the configured policy and lists
// every rule it breaks.
func (v *Validator) ValidatePassword(password string) error {
	var unmet []string

	if len([]rune(password)) < v.policy.MinLength {
		unmet = append(unmet, fmt.Sprintf("at least %d characters", v.policy.MinLength))
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	if v.policy.RequireUpper && !upper {
		unmet = append(unmet, "an uppercase letter")
	}
	if v.policy.RequireLower && !lower {
		unmet = append(unmet, "a lowercase letter")
	}
	if v.policy.RequireDigit && !digit {
		unmet = append(unmet, "a digit")
	}
	if v.policy.RequireSymbol && !symbol {
		unmet = append(unmet, "a symbol")
	}

	if len(unmet) > 0 {
		return model.NewValidationError(model.ReasonWeakPassword, "password",
			"password must contain "+strings.Join(unmet, ", "))
	}
	return nil
}

// ValidateRequiredLoginFields requires a username or an email, and a password.
func (v *Validator) ValidateRequiredLoginFields(username, email, password string) error {
	if strings.TrimSpace(username) == "" && strings.TrimSpace(email) == "" {
		return model.NewValidationError(model.ReasonMissingField, "username", "username or email is required")
	}
	return v.ValidateRequiredFields(Field{Name: "password", Value: password})
}

// ValidateEmailAndPasswordFormat checks the login subset. The strength policy
// is not applied here because it may have changed since registration.
func (v *Validator) ValidateEmailAndPasswordFormat(email, password string) error {
	if strings.TrimSpace(email) != "" {
		if err := v.ValidateEmailFormat(email); err != nil {
			return err
		}
	}
	if password == "" {
		return model.NewValidationError(model.ReasonMissingField, "password", "password is required")
	}
	return nil
}
