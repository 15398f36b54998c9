package service

import (
	"crypto/rand"
	"math/big"
)

const (
	locatorLength  = 8
	locatorCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Попыток вставки при коллизии локатора до ErrResourceExhausted
	maxLocatorAttempts = 5
)

// LocatorGenerator источник локаторов; подменяется в тестах
type LocatorGenerator func() (string, error)

// GenerateLocator генерирует случайный локатор из 8 символов [a-zA-Z0-9]
// (~47.6 бит энтропии)
func GenerateLocator() (string, error) {
	result := make([]byte, locatorLength)
	n := big.NewInt(int64(len(locatorCharset)))
	for i := 0; i < locatorLength; i++ {
		num, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		result[i] = locatorCharset[num.Int64()]
	}
	return string(result), nil
}

// ValidLocator отсекает заведомо невалидные локаторы до похода в хранилище
func ValidLocator(locator string) bool {
	if len(locator) != locatorLength {
		return false
	}
	for i := 0; i < len(locator); i++ {
		c := locator[i]
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
