package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// Аудитории, которые проверяют бэкенды.
var BackendAudience = []string{"nl-sql", "rag", "ts-forecast", "agent-coordinator"}

// Claims - полезная нагрузка токена для бэкендов и для входящих запросов консоли.
type Claims struct {
	jwt.RegisteredClaims
}
