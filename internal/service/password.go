package service

import (
	"golang.org/x/crypto/bcrypt"
)

// bcrypt обрезает всё, что длиннее 72 байт
const maxPasswordBytes = 72

// PasswordHasher медленное солёное хэширование паролей ссылок
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Matches сравнивает за постоянное время
	Matches(hash, password string) bool
}

type bcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *bcryptHasher) Matches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
