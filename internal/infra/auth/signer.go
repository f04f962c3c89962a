package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// Signer выпускает короткоживущие токены для бэкендов.
// Новый токен на каждый вызов, кэширования нет.
type Signer struct {
	method  jwt.SigningMethod
	key     any
	subject string
	ttl     time.Duration
	now     func() time.Time
}

// NewHMACSigner - HS256 на общем секрете (режим по умолчанию у бэкендов).
func NewHMACSigner(secret, subject string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret is empty")
	}
	return &Signer{
		method:  jwt.SigningMethodHS256,
		key:     []byte(secret),
		subject: subject,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// NewRSASigner - RS256, когда бэкенды настроены на публичный ключ.
func NewRSASigner(key *rsa.PrivateKey, subject string, ttl time.Duration) *Signer {
	return &Signer{
		method:  jwt.SigningMethodRS256,
		key:     key,
		subject: subject,
		ttl:     ttl,
		now:     time.Now,
	}
}

// NewSigner выбирает RS256, если задан приватный ключ, иначе HS256.
func NewSigner(secret string, privateKeyPEM []byte, subject string, ttl time.Duration) (*Signer, error) {
	if len(privateKeyPEM) > 0 {
		key, err := ParseRSAPrivateKey(privateKeyPEM)
		if err != nil {
			return nil, err
		}
		return NewRSASigner(key, subject, ttl), nil
	}
	return NewHMACSigner(secret, subject, ttl)
}

// Token реализует connectors.TokenSource.
func (s *Signer) Token() (string, error) {
	now := s.now()
	claims := domain.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.subject,
			Audience:  jwt.ClaimStrings(domain.BackendAudience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Algorithm - имя алгоритма подписи (для логов при старте).
func (s *Signer) Algorithm() string {
	return s.method.Alg()
}
