package auth

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"med-lab/errors"
)

var validate = validator.New()

// RegisterRequest carries the account fields checked before any hashing
// work starts. The 72 byte cap keeps the hashing cost bounded.
type RegisterRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=12,max=72"`
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if missing := missingPasswordClasses(req.Password); len(missing) > 0 {
		return fmt.Errorf("%w: add %s", errors.ErrInvalidPassword, strings.Join(missing, ", "))
	}
	return nil
}

// missingPasswordClasses names the character classes a password still
// needs, so the rejection tells the user what to change.
func missingPasswordClasses(password string) []string {
	classes := []struct {
		name string
		has  func(rune) bool
	}{
		{"an upper case letter", unicode.IsUpper},
		{"a lower case letter", unicode.IsLower},
		{"a digit", unicode.IsDigit},
		{"a special character", func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }},
	}

	var missing []string
	for _, class := range classes {
		if !strings.ContainsFunc(password, class.has) {
			missing = append(missing, class.name)
		}
	}
	return missing
}
