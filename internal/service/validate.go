package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	cfPattern    = regexp.MustCompile(`^[A-Z]{6}[0-9]{2}[A-Z][0-9]{2}[A-Z][0-9]{3}[A-Z]$`)
	podPattern   = regexp.MustCompile(`^IT\d{3}E\d{8,9}$`)
	zipPattern   = regexp.MustCompile(`^[0-9]{5}$`)
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// validatePassword aplica la política mínima: 8 caracteres, una mayúscula,
// una minúscula y un número.
func validatePassword(password string) error {
	if len(password) < 8 {
		return &ValidationError{Field: "password", Message: "Password troppo corta (minimo 8 caratteri)"}
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		return &ValidationError{Field: "password", Message: "Password deve contenere almeno una lettera maiuscola"}
	}
	if !hasLower {
		return &ValidationError{Field: "password", Message: "Password deve contenere almeno una lettera minuscola"}
	}
	if !hasDigit {
		return &ValidationError{Field: "password", Message: "Password deve contenere almeno un numero"}
	}
	return nil
}

func validateLength(value string, min, max int, field string) error {
	n := len(strings.TrimSpace(value))
	if n < min {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s troppo corto (minimo %d caratteri)", field, min)}
	}
	if n > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s troppo lungo (massimo %d caratteri)", field, max)}
	}
	return nil
}

func validateCodiceFiscale(cf string) error {
	cf = strings.ToUpper(strings.TrimSpace(cf))
	if len(cf) != 16 {
		return &ValidationError{Field: "cf", Message: "Codice Fiscale deve essere di 16 caratteri"}
	}
	if !cfPattern.MatchString(cf) {
		return &ValidationError{Field: "cf", Message: "Formato Codice Fiscale non valido"}
	}
	return nil
}

func validatePOD(pod string) error {
	if !podPattern.MatchString(strings.TrimSpace(pod)) {
		return &ValidationError{Field: "pod", Message: "Codice POD non valido"}
	}
	return nil
}

func validateZipCode(zip string) error {
	if !zipPattern.MatchString(strings.TrimSpace(zip)) {
		return &ValidationError{Field: "zip_code", Message: "CAP deve essere di 5 cifre"}
	}
	return nil
}

// isNumericCode exige exactamente length dígitos; los ceros a la izquierda
// son significativos y forman parte del código.
func isNumericCode(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
