package services

import (
	"errors"
	"fmt"
)

// ValidationError representa un input inválido del cliente. Los
// controllers responden 400
type ValidationError struct {
	Message string
}

// Error implementa la interfaz error
func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation indica si err es (o envuelve) un ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	// ErrInvalidCredentials se devuelve en el login ante usuario o
	// contraseña incorrectos, sin decir cuál
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenRevoked se devuelve para tokens cerrados con logout
	ErrTokenRevoked = errors.New("token revoked")
)
