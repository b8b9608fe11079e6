package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/authkeeper-server/internal/model"
)

func TestValidator_ValidateRequiredFields(t *testing.T) {
	t.Parallel()

	v := New(DefaultPasswordPolicy)

	tests := []struct {
		name      string
		fields    []Field
		wantField string
	}{
		{
			name: "all present",
			fields: []Field{
				{Name: "username", Value: "alice"},
				{Name: "email", Value: "a@x.com"},
			},
		},
		{
			name: "empty value",
			fields: []Field{
				{Name: "username", Value: "alice"},
				{Name: "fullname", Value: ""},
			},
			wantField: "fullname",
		},
		{
			name: "whitespace only",
			fields: []Field{
				{Name: "username", Value: "   "},
				{Name: "fullname", Value: ""},
			},
			wantField: "username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := v.ValidateRequiredFields(tt.fields...)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, model.ErrMissingField)
			e, ok := model.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantField, e.Field)
		})
	}
}

func TestValidator_ValidateEmailFormat(t *testing.T) {
	t.Parallel()

	v := New(DefaultPasswordPolicy)

	tests := []struct {
		email string
		valid bool
	}{
		{email: "a@x.com", valid: true},
		{email: "first.last+tag@example.co.uk", valid: true},
		{email: "not-an-email", valid: false},
		{email: "a@", valid: false},
		{email: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			t.Parallel()

			err := v.ValidateEmailFormat(tt.email)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, model.ErrMalformedEmail)
			}
		})
	}
}

func TestValidator_ValidatePassword(t *testing.T) {
	t.Parallel()

	strict := New(PasswordPolicy{
		MinLength:     8,
		RequireUpper:  true,
		RequireLower:  true,
		RequireDigit:  true,
		RequireSymbol: true,
	})

	tests := []struct {
		name        string
		validator   *Validator
		password    string
		wantErr     bool
		wantMessage string
	}{
		{name: "default policy accepts eight chars", validator: New(DefaultPasswordPolicy), password: "abcdefgh"},
		{name: "default policy rejects short", validator: New(DefaultPasswordPolicy), password: "abc", wantErr: true, wantMessage: "at least 8 characters"},
		{name: "zero policy rejects empty", validator: New(PasswordPolicy{}), password: "", wantErr: true},
		{name: "strict accepts complex", validator: strict, password: "Secret123!"},
		{name: "strict missing symbol", validator: strict, password: "Secret123", wantErr: true, wantMessage: "a symbol"},
		{name: "strict missing upper and digit", validator: strict, password: "secret!!!", wantErr: true, wantMessage: "an uppercase letter, a digit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.validator.ValidatePassword(tt.password)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, model.ErrWeakPassword)
			if tt.wantMessage != "" {
				assert.Contains(t, err.Error(), tt.wantMessage)
			}
		})
	}
}

func TestValidator_LoginFields(t *testing.T) {
	t.Parallel()

	v := New(PasswordPolicy{MinLength: 12, RequireSymbol: true})

	t.Run("username only", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, v.ValidateRequiredLoginFields("alice", "", "pw"))
	})

	t.Run("email only", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, v.ValidateRequiredLoginFields("", "a@x.com", "pw"))
	})

	t.Run("neither username nor email", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, v.ValidateRequiredLoginFields("", "", "pw"), model.ErrMissingField)
	})

	t.Run("missing password", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, v.ValidateRequiredLoginFields("alice", "", ""), model.ErrMissingField)
	})

	t.Run("format ignores strength policy", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, v.ValidateEmailAndPasswordFormat("", "short"))
	})

	t.Run("format rejects malformed email", func(t *testing.T) {
		t.Parallel()
		err := v.ValidateEmailAndPasswordFormat("bad", "pw")
		assert.True(t, errors.Is(err, model.ErrMalformedEmail))
	})
}
