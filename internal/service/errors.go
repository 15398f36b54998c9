package service

import (
	"errors"
)

// Ошибки сервиса. NotFound и Forbidden намеренно не различают причину:
// клиент не должен узнать, существовала ли ссылка и почему доступ закрыт.
var (
	ErrNotFound          = errors.New("shared resource not found")
	ErrForbidden         = errors.New("access to shared resource denied")
	ErrResourceExhausted = errors.New("failed to allocate a unique locator")
)

// ValidationError ошибка входных данных с указанием поля
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError проверяет, что err (или обёрнутая ошибка) это ValidationError
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
