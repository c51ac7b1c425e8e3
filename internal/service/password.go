package service

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minPasswordLength = 8
	passwordSpecials  = `!@#$%^&*(),.?":{}|<>`
)

var weakPasswords = map[string]struct{}{
	"password":  {},
	"12345678":  {},
	"qwertyui":  {},
	"admin1234": {},
}

// ValidatePassword проверяет сложность пароля и возвращает ErrWeakPassword с причиной
func ValidatePassword(password string) error {
	if len([]rune(password)) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrWeakPassword, minPasswordLength)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	switch {
	case !upper:
		return fmt.Errorf("%w: password must contain an uppercase letter", ErrWeakPassword)
	case !lower:
		return fmt.Errorf("%w: password must contain a lowercase letter", ErrWeakPassword)
	case !digit:
		return fmt.Errorf("%w: password must contain a digit", ErrWeakPassword)
	case !special:
		return fmt.Errorf("%w: password must contain a special character", ErrWeakPassword)
	}

	if _, weak := weakPasswords[strings.ToLower(password)]; weak {
		return fmt.Errorf("%w: password is too common", ErrWeakPassword)
	}
	return nil
}
