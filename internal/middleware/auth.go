package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Ключи контекста gin
const (
	ContextOwnerID   = "owner_id"
	ContextOwnerRole = "owner_role"
)

// Роли, которым разрешено публиковать ресурсы
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// OwnerClaims claims токена, выданного сервисом авторизации
type OwnerClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// OwnerAuthConfig конфигурация аутентификации владельца ресурсов
type OwnerAuthConfig struct {
	// Secret ключ HMAC для подписи токенов
	Secret []byte
	// Issuer если задан, токены других издателей отклоняются
	Issuer string
	// Roles роли с доступом; по умолчанию teacher и admin
	Roles []string
}

// OwnerAuth middleware проверки bearer JWT владельца
type OwnerAuth struct {
	config OwnerAuthConfig
	parser *jwt.Parser
}

// NewOwnerAuth создаёт middleware аутентификации
func NewOwnerAuth(config OwnerAuthConfig) *OwnerAuth {
	if len(config.Roles) == 0 {
		config.Roles = []string{RoleTeacher, RoleAdmin}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}

	return &OwnerAuth{config: config, parser: jwt.NewParser(opts...)}
}

// Middleware возвращает Gin middleware handler
func (a *OwnerAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_token",
				"message": "Authorization: Bearer <token> is required",
			})
			return
		}

		claims, err := a.parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Invalid or expired access token",
			})
			return
		}

		if !a.allowedRole(claims.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Only teachers can manage shared links",
			})
			return
		}

		// Устанавливаем значения в контекст для последующих handlers
		c.Set(ContextOwnerID, claims.Subject)
		c.Set(ContextOwnerRole, claims.Role)

		c.Next()
	}
}

func (a *OwnerAuth) parse(raw string) (*OwnerClaims, error) {
	claims := &OwnerClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func (a *OwnerAuth) allowedRole(role string) bool {
	for _, r := range a.config.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IssueToken подписывает токен владельца; используется в тестах и утилитах
func IssueToken(secret []byte, claims OwnerClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// GetOwnerIDFromContext извлекает id владельца из контекста
func GetOwnerIDFromContext(c *gin.Context) (string, bool) {
	id, exists := c.Get(ContextOwnerID)
	if !exists {
		return "", false
	}
	s, ok := id.(string)
	return s, ok && s != ""
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
